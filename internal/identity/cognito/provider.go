// Package cognito implements the identity provider over Amazon Cognito user pools.
package cognito

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/smallbiznis/portal/internal/config"
	"github.com/smallbiznis/portal/internal/identity/domain"
	awsprovider "github.com/smallbiznis/portal/internal/providers/aws"
	"go.uber.org/zap"
)

var ErrNotConfigured = errors.New("cognito_not_configured")

type Provider struct {
	client       *lazyClient
	userPoolID   string
	clientID     string
	clientSecret string
	log          *zap.Logger
}

func New(cfg config.Config, loader *awsprovider.Loader, log *zap.Logger) (*Provider, error) {
	if cfg.Cognito.UserPoolID == "" || cfg.Cognito.ClientID == "" {
		return nil, ErrNotConfigured
	}
	return &Provider{
		client:       newLazyClient(loader),
		userPoolID:   cfg.Cognito.UserPoolID,
		clientID:     cfg.Cognito.ClientID,
		clientSecret: cfg.Cognito.ClientSecret,
		log:          log.Named("identity.cognito"),
	}, nil
}

// NewWithClient is used by tests to inject a fake API.
func NewWithClient(api API, cfg config.CognitoConfig, log *zap.Logger) *Provider {
	return &Provider{
		client:       staticClient(api),
		userPoolID:   cfg.UserPoolID,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		log:          log.Named("identity.cognito"),
	}
}

// SecretHash is base64(HMAC-SHA256(clientSecret, username+clientID)).
func SecretHash(clientSecret, username, clientID string) string {
	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(username + clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (p *Provider) secretHash(username string) *string {
	if p.clientSecret == "" {
		return nil
	}
	return aws.String(SecretHash(p.clientSecret, username, p.clientID))
}

func (p *Provider) api(ctx context.Context, op string) (API, error) {
	api, err := p.client.get(ctx)
	if err != nil {
		return nil, domain.NewError(op, domain.KindUnknown, err)
	}
	return api, nil
}

func (p *Provider) fail(op string, err error) error {
	mapped := mapError(op, err)
	kind := domain.KindOf(mapped)
	if kind == domain.KindUnknown {
		p.log.Error("cognito call failed", zap.String("op", op), zap.Error(err))
	} else {
		p.log.Debug("cognito call rejected", zap.String("op", op), zap.String("kind", string(kind)))
	}
	return mapped
}

func (p *Provider) SignUp(ctx context.Context, in domain.SignUpInput) (*domain.SignUpResult, error) {
	api, err := p.api(ctx, "sign_up")
	if err != nil {
		return nil, err
	}
	attrs := []types.AttributeType{{Name: aws.String(domain.AttrEmail), Value: aws.String(in.Email)}}
	if in.Locale != "" {
		attrs = append(attrs, types.AttributeType{Name: aws.String(domain.AttrLocale), Value: aws.String(in.Locale)})
	}
	out, err := api.SignUp(ctx, &cip.SignUpInput{
		ClientId:       aws.String(p.clientID),
		Username:       aws.String(in.Email),
		Password:       aws.String(in.Password),
		SecretHash:     p.secretHash(in.Email),
		UserAttributes: attrs,
	})
	if err != nil {
		return nil, p.fail("sign_up", err)
	}
	return &domain.SignUpResult{UserSub: aws.ToString(out.UserSub), Confirmed: out.UserConfirmed}, nil
}

func (p *Provider) ConfirmSignUp(ctx context.Context, email, code string) error {
	api, err := p.api(ctx, "confirm_sign_up")
	if err != nil {
		return err
	}
	_, err = api.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(p.clientID),
		Username:         aws.String(email),
		ConfirmationCode: aws.String(code),
		SecretHash:       p.secretHash(email),
	})
	if err != nil {
		return p.fail("confirm_sign_up", err)
	}
	return nil
}

func (p *Provider) ResendConfirmationCode(ctx context.Context, email string) error {
	api, err := p.api(ctx, "resend_code")
	if err != nil {
		return err
	}
	_, err = api.ResendConfirmationCode(ctx, &cip.ResendConfirmationCodeInput{
		ClientId:   aws.String(p.clientID),
		Username:   aws.String(email),
		SecretHash: p.secretHash(email),
	})
	if err != nil {
		return p.fail("resend_code", err)
	}
	return nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	api, err := p.api(ctx, "sign_in")
	if err != nil {
		return nil, err
	}
	params := map[string]string{
		"USERNAME": email,
		"PASSWORD": password,
	}
	if hash := p.secretHash(email); hash != nil {
		params["SECRET_HASH"] = *hash
	}
	out, err := api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeUserPasswordAuth,
		ClientId:       aws.String(p.clientID),
		AuthParameters: params,
	})
	if err != nil {
		return nil, p.fail("sign_in", err)
	}
	if out.ChallengeName != "" {
		return &domain.AuthResult{Challenge: &domain.Challenge{
			Name:    string(out.ChallengeName),
			Session: aws.ToString(out.Session),
		}}, nil
	}
	return &domain.AuthResult{Tokens: tokensFrom(out.AuthenticationResult, "")}, nil
}

func (p *Provider) RespondToMFAChallenge(ctx context.Context, in domain.MFAInput) (*domain.Tokens, error) {
	api, err := p.api(ctx, "respond_mfa")
	if err != nil {
		return nil, err
	}
	challenge := in.ChallengeName
	if challenge == "" {
		challenge = domain.ChallengeSoftwareToken
	}
	codeKey := "SOFTWARE_TOKEN_MFA_CODE"
	if challenge == domain.ChallengeSMS {
		codeKey = "SMS_MFA_CODE"
	}
	responses := map[string]string{
		"USERNAME": in.Email,
		codeKey:    in.Code,
	}
	if hash := p.secretHash(in.Email); hash != nil {
		responses["SECRET_HASH"] = *hash
	}
	out, err := api.RespondToAuthChallenge(ctx, &cip.RespondToAuthChallengeInput{
		ChallengeName:      types.ChallengeNameType(challenge),
		ClientId:           aws.String(p.clientID),
		Session:            aws.String(in.Session),
		ChallengeResponses: responses,
	})
	if err != nil {
		return nil, p.fail("respond_mfa", err)
	}
	if out.AuthenticationResult == nil {
		return nil, domain.NewError("respond_mfa", domain.KindMFARequired, nil)
	}
	return tokensFrom(out.AuthenticationResult, ""), nil
}

// RefreshTokens keeps the caller's refresh token; Cognito does not rotate it.
func (p *Provider) RefreshTokens(ctx context.Context, refreshToken, username string) (*domain.Tokens, error) {
	api, err := p.api(ctx, "refresh")
	if err != nil {
		return nil, err
	}
	params := map[string]string{"REFRESH_TOKEN": refreshToken}
	if hash := p.secretHash(username); hash != nil {
		params["SECRET_HASH"] = *hash
	}
	out, err := api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeRefreshTokenAuth,
		ClientId:       aws.String(p.clientID),
		AuthParameters: params,
	})
	if err != nil {
		return nil, p.fail("refresh", err)
	}
	if out.AuthenticationResult == nil {
		return nil, domain.NewError("refresh", domain.KindNotAuthorized, nil)
	}
	return tokensFrom(out.AuthenticationResult, refreshToken), nil
}

func (p *Provider) ForgotPassword(ctx context.Context, email string) error {
	api, err := p.api(ctx, "forgot_password")
	if err != nil {
		return err
	}
	_, err = api.ForgotPassword(ctx, &cip.ForgotPasswordInput{
		ClientId:   aws.String(p.clientID),
		Username:   aws.String(email),
		SecretHash: p.secretHash(email),
	})
	if err != nil {
		return p.fail("forgot_password", err)
	}
	return nil
}

func (p *Provider) ConfirmForgotPassword(ctx context.Context, email, code, newPassword string) error {
	api, err := p.api(ctx, "confirm_forgot_password")
	if err != nil {
		return err
	}
	_, err = api.ConfirmForgotPassword(ctx, &cip.ConfirmForgotPasswordInput{
		ClientId:         aws.String(p.clientID),
		Username:         aws.String(email),
		ConfirmationCode: aws.String(code),
		Password:         aws.String(newPassword),
		SecretHash:       p.secretHash(email),
	})
	if err != nil {
		return p.fail("confirm_forgot_password", err)
	}
	return nil
}

func (p *Provider) GetUser(ctx context.Context, accessToken string) (*domain.User, error) {
	api, err := p.api(ctx, "get_user")
	if err != nil {
		return nil, err
	}
	out, err := api.GetUser(ctx, &cip.GetUserInput{AccessToken: aws.String(accessToken)})
	if err != nil {
		return nil, p.fail("get_user", err)
	}
	return userFrom(aws.ToString(out.Username), out.UserAttributes), nil
}

func (p *Provider) UpdateUserAttributes(ctx context.Context, accessToken string, attrs map[string]string) error {
	api, err := p.api(ctx, "update_attributes")
	if err != nil {
		return err
	}
	_, err = api.UpdateUserAttributes(ctx, &cip.UpdateUserAttributesInput{
		AccessToken:    aws.String(accessToken),
		UserAttributes: attributeList(attrs),
	})
	if err != nil {
		return p.fail("update_attributes", err)
	}
	return nil
}

func (p *Provider) AdminGetUser(ctx context.Context, username string) (*domain.User, error) {
	api, err := p.api(ctx, "admin_get_user")
	if err != nil {
		return nil, err
	}
	out, err := api.AdminGetUser(ctx, &cip.AdminGetUserInput{
		UserPoolId: aws.String(p.userPoolID),
		Username:   aws.String(username),
	})
	if err != nil {
		return nil, p.fail("admin_get_user", err)
	}
	return userFrom(aws.ToString(out.Username), out.UserAttributes), nil
}

func (p *Provider) AdminUpdateUserAttributes(ctx context.Context, username string, attrs map[string]string) error {
	api, err := p.api(ctx, "admin_update_attributes")
	if err != nil {
		return err
	}
	_, err = api.AdminUpdateUserAttributes(ctx, &cip.AdminUpdateUserAttributesInput{
		UserPoolId:     aws.String(p.userPoolID),
		Username:       aws.String(username),
		UserAttributes: attributeList(attrs),
	})
	if err != nil {
		return p.fail("admin_update_attributes", err)
	}
	return nil
}

func (p *Provider) AdminDeleteUserAttributes(ctx context.Context, username string, names []string) error {
	api, err := p.api(ctx, "admin_delete_attributes")
	if err != nil {
		return err
	}
	_, err = api.AdminDeleteUserAttributes(ctx, &cip.AdminDeleteUserAttributesInput{
		UserPoolId:         aws.String(p.userPoolID),
		Username:           aws.String(username),
		UserAttributeNames: names,
	})
	if err != nil {
		return p.fail("admin_delete_attributes", err)
	}
	return nil
}

func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	api, err := p.api(ctx, "sign_out")
	if err != nil {
		return err
	}
	_, err = api.GlobalSignOut(ctx, &cip.GlobalSignOutInput{AccessToken: aws.String(accessToken)})
	if err != nil {
		return p.fail("sign_out", err)
	}
	return nil
}

func tokensFrom(res *types.AuthenticationResultType, refreshToken string) *domain.Tokens {
	if res == nil {
		return &domain.Tokens{RefreshToken: refreshToken}
	}
	tokens := &domain.Tokens{
		AccessToken:  aws.ToString(res.AccessToken),
		RefreshToken: aws.ToString(res.RefreshToken),
		IDToken:      aws.ToString(res.IdToken),
		ExpiresIn:    time.Duration(res.ExpiresIn) * time.Second,
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}
	return tokens
}

func userFrom(username string, attrs []types.AttributeType) *domain.User {
	raw := make(map[string]string, len(attrs))
	for _, attr := range attrs {
		raw[aws.ToString(attr.Name)] = aws.ToString(attr.Value)
	}
	return &domain.User{
		Username:   username,
		Attributes: domain.AttributesFromMap(username, raw),
		Raw:        raw,
	}
}

// attributeList orders by name so request payloads are deterministic.
func attributeList(attrs map[string]string) []types.AttributeType {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]types.AttributeType, 0, len(names))
	for _, name := range names {
		out = append(out, types.AttributeType{
			Name:  aws.String(strings.TrimSpace(name)),
			Value: aws.String(attrs[name]),
		})
	}
	return out
}

var _ domain.Provider = (*Provider)(nil)
