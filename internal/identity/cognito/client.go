package cognito

import (
	"context"
	"sync"

	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	awsprovider "github.com/smallbiznis/portal/internal/providers/aws"
)

// API is the subset of the Cognito client used by the provider.
type API interface {
	SignUp(ctx context.Context, in *cip.SignUpInput, opts ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, in *cip.ConfirmSignUpInput, opts ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	ResendConfirmationCode(ctx context.Context, in *cip.ResendConfirmationCodeInput, opts ...func(*cip.Options)) (*cip.ResendConfirmationCodeOutput, error)
	InitiateAuth(ctx context.Context, in *cip.InitiateAuthInput, opts ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	RespondToAuthChallenge(ctx context.Context, in *cip.RespondToAuthChallengeInput, opts ...func(*cip.Options)) (*cip.RespondToAuthChallengeOutput, error)
	ForgotPassword(ctx context.Context, in *cip.ForgotPasswordInput, opts ...func(*cip.Options)) (*cip.ForgotPasswordOutput, error)
	ConfirmForgotPassword(ctx context.Context, in *cip.ConfirmForgotPasswordInput, opts ...func(*cip.Options)) (*cip.ConfirmForgotPasswordOutput, error)
	GetUser(ctx context.Context, in *cip.GetUserInput, opts ...func(*cip.Options)) (*cip.GetUserOutput, error)
	UpdateUserAttributes(ctx context.Context, in *cip.UpdateUserAttributesInput, opts ...func(*cip.Options)) (*cip.UpdateUserAttributesOutput, error)
	AdminGetUser(ctx context.Context, in *cip.AdminGetUserInput, opts ...func(*cip.Options)) (*cip.AdminGetUserOutput, error)
	AdminUpdateUserAttributes(ctx context.Context, in *cip.AdminUpdateUserAttributesInput, opts ...func(*cip.Options)) (*cip.AdminUpdateUserAttributesOutput, error)
	AdminDeleteUserAttributes(ctx context.Context, in *cip.AdminDeleteUserAttributesInput, opts ...func(*cip.Options)) (*cip.AdminDeleteUserAttributesOutput, error)
	GlobalSignOut(ctx context.Context, in *cip.GlobalSignOutInput, opts ...func(*cip.Options)) (*cip.GlobalSignOutOutput, error)
}

// lazyClient builds the SDK client on first use and shares it afterwards.
type lazyClient struct {
	build func(ctx context.Context) (API, error)

	once   sync.Once
	client API
	err    error
}

func newLazyClient(loader *awsprovider.Loader) *lazyClient {
	return &lazyClient{
		build: func(ctx context.Context) (API, error) {
			cfg, err := loader.Load(ctx)
			if err != nil {
				return nil, err
			}
			endpoint := loader.Endpoint()
			return cip.NewFromConfig(cfg, func(o *cip.Options) {
				if endpoint != nil {
					o.BaseEndpoint = endpoint
				}
			}), nil
		},
	}
}

func staticClient(api API) *lazyClient {
	return &lazyClient{build: func(context.Context) (API, error) { return api, nil }}
}

func (l *lazyClient) get(ctx context.Context) (API, error) {
	l.once.Do(func() {
		l.client, l.err = l.build(ctx)
	})
	return l.client, l.err
}
