// Package memory is an in-process identity provider for local development
// and end-to-end tests. Access tokens are HS256 JWTs so the session accessor
// treats them like provider-issued tokens.
package memory

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/smallbiznis/portal/internal/clock"
	"github.com/smallbiznis/portal/internal/identity/domain"
	"github.com/smallbiznis/portal/internal/identity/password"
)

const accessTokenTTL = time.Hour

type user struct {
	username     string
	passwordHash string
	confirmed    bool
	mfaEnabled   bool
	attrs        map[string]string
	generation   int
	pendingCode  string
}

type challenge struct {
	username string
	code     string
}

type Provider struct {
	mu         sync.Mutex
	clock      clock.Clock
	secret     []byte
	codes      func() string
	users      map[string]*user
	refresh    map[string]string
	challenges map[string]challenge
	lastCodes  map[string]string
}

type Option func(*Provider)

// WithCodes replaces the random 6-digit code generator.
func WithCodes(gen func() string) Option {
	return func(p *Provider) { p.codes = gen }
}

func New(clk clock.Clock, opts ...Option) *Provider {
	p := &Provider{
		clock:      clk,
		secret:     []byte(uuid.NewString()),
		codes:      randomCode,
		users:      make(map[string]*user),
		refresh:    make(map[string]string),
		challenges: make(map[string]challenge),
		lastCodes:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Seed registers a confirmed user and returns its username.
func (p *Provider) Seed(email, pw string, attrs map[string]string) (string, error) {
	hash, err := password.Hash(pw)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	key := normalize(email)
	u := &user{
		username:     key,
		passwordHash: hash,
		confirmed:    true,
		attrs:        map[string]string{domain.AttrSub: uuid.NewString(), domain.AttrEmail: key},
	}
	for k, v := range attrs {
		u.attrs[k] = v
	}
	p.users[key] = u
	return key, nil
}

// EnableMFA makes sign-in for email return a software token challenge.
func (p *Provider) EnableMFA(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if u, ok := p.users[normalize(email)]; ok {
		u.mfaEnabled = true
	}
}

// LastCode returns the most recent code delivered to email.
func (p *Provider) LastCode(email string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastCodes[normalize(email)]
}

// Attributes returns a copy of the stored attributes for username.
func (p *Provider) Attributes(username string) map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[normalize(username)]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(u.attrs))
	for k, v := range u.attrs {
		out[k] = v
	}
	return out
}

func (p *Provider) SignUp(ctx context.Context, in domain.SignUpInput) (*domain.SignUpResult, error) {
	if err := password.CheckPolicy(in.Password); err != nil {
		return nil, domain.NewError("sign_up", domain.KindInvalidPassword, err)
	}
	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, domain.NewError("sign_up", domain.KindUnknown, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := normalize(in.Email)
	if _, exists := p.users[key]; exists {
		return nil, domain.NewError("sign_up", domain.KindUsernameExists, nil)
	}
	sub := uuid.NewString()
	u := &user{
		username:     key,
		passwordHash: hash,
		attrs:        map[string]string{domain.AttrSub: sub, domain.AttrEmail: key},
	}
	if in.Locale != "" {
		u.attrs[domain.AttrLocale] = in.Locale
	}
	u.pendingCode = p.deliverCode(key)
	p.users[key] = u
	return &domain.SignUpResult{UserSub: sub}, nil
}

func (p *Provider) ConfirmSignUp(ctx context.Context, email, code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.users[normalize(email)]
	if !ok {
		return domain.NewError("confirm_sign_up", domain.KindUserNotFound, nil)
	}
	if u.confirmed {
		return nil
	}
	if u.pendingCode == "" || u.pendingCode != strings.TrimSpace(code) {
		return domain.NewError("confirm_sign_up", domain.KindCodeMismatch, nil)
	}
	u.confirmed = true
	u.pendingCode = ""
	return nil
}

func (p *Provider) ResendConfirmationCode(ctx context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.users[normalize(email)]
	if !ok {
		return domain.NewError("resend_code", domain.KindUserNotFound, nil)
	}
	if u.confirmed {
		return domain.NewError("resend_code", domain.KindInvalidParameter, nil)
	}
	u.pendingCode = p.deliverCode(u.username)
	return nil
}

func (p *Provider) SignIn(ctx context.Context, email, pw string) (*domain.AuthResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.users[normalize(email)]
	if !ok || !password.Verify(pw, u.passwordHash) {
		return nil, domain.NewError("sign_in", domain.KindNotAuthorized, nil)
	}
	if !u.confirmed {
		return nil, domain.NewError("sign_in", domain.KindUserNotConfirmed, nil)
	}
	if u.mfaEnabled {
		session := uuid.NewString()
		p.challenges[session] = challenge{username: u.username, code: p.deliverCode(u.username)}
		return &domain.AuthResult{Challenge: &domain.Challenge{
			Name:    domain.ChallengeSoftwareToken,
			Session: session,
		}}, nil
	}
	tokens, err := p.issue(u, "")
	if err != nil {
		return nil, err
	}
	return &domain.AuthResult{Tokens: tokens}, nil
}

func (p *Provider) RespondToMFAChallenge(ctx context.Context, in domain.MFAInput) (*domain.Tokens, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, ok := p.challenges[in.Session]
	if !ok || ch.username != normalize(in.Email) {
		return nil, domain.NewError("respond_mfa", domain.KindNotAuthorized, nil)
	}
	if ch.code != strings.TrimSpace(in.Code) {
		return nil, domain.NewError("respond_mfa", domain.KindCodeMismatch, nil)
	}
	delete(p.challenges, in.Session)
	return p.issue(p.users[ch.username], "")
}

func (p *Provider) RefreshTokens(ctx context.Context, refreshToken, username string) (*domain.Tokens, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	owner, ok := p.refresh[refreshToken]
	if !ok {
		return nil, domain.NewError("refresh", domain.KindNotAuthorized, nil)
	}
	u, ok := p.users[owner]
	if !ok {
		return nil, domain.NewError("refresh", domain.KindNotAuthorized, nil)
	}
	return p.issue(u, refreshToken)
}

func (p *Provider) ForgotPassword(ctx context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.users[normalize(email)]
	if !ok {
		return domain.NewError("forgot_password", domain.KindUserNotFound, nil)
	}
	u.pendingCode = p.deliverCode(u.username)
	return nil
}

func (p *Provider) ConfirmForgotPassword(ctx context.Context, email, code, newPassword string) error {
	if err := password.CheckPolicy(newPassword); err != nil {
		return domain.NewError("confirm_forgot_password", domain.KindInvalidPassword, err)
	}
	hash, err := password.Hash(newPassword)
	if err != nil {
		return domain.NewError("confirm_forgot_password", domain.KindUnknown, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.users[normalize(email)]
	if !ok {
		return domain.NewError("confirm_forgot_password", domain.KindUserNotFound, nil)
	}
	if u.pendingCode == "" || u.pendingCode != strings.TrimSpace(code) {
		return domain.NewError("confirm_forgot_password", domain.KindCodeMismatch, nil)
	}
	u.passwordHash = hash
	u.pendingCode = ""
	u.confirmed = true
	return nil
}

func (p *Provider) GetUser(ctx context.Context, accessToken string) (*domain.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, err := p.verify(accessToken)
	if err != nil {
		return nil, domain.NewError("get_user", domain.KindNotAuthorized, err)
	}
	return snapshot(u), nil
}

func (p *Provider) UpdateUserAttributes(ctx context.Context, accessToken string, attrs map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, err := p.verify(accessToken)
	if err != nil {
		return domain.NewError("update_attributes", domain.KindNotAuthorized, err)
	}
	return setAttributes(u, attrs)
}

func (p *Provider) AdminGetUser(ctx context.Context, username string) (*domain.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.lookup(username)
	if !ok {
		return nil, domain.NewError("admin_get_user", domain.KindUserNotFound, nil)
	}
	return snapshot(u), nil
}

func (p *Provider) AdminUpdateUserAttributes(ctx context.Context, username string, attrs map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.lookup(username)
	if !ok {
		return domain.NewError("admin_update_attributes", domain.KindUserNotFound, nil)
	}
	return setAttributes(u, attrs)
}

func (p *Provider) AdminDeleteUserAttributes(ctx context.Context, username string, names []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.lookup(username)
	if !ok {
		return domain.NewError("admin_delete_attributes", domain.KindUserNotFound, nil)
	}
	for _, name := range names {
		if name == domain.AttrSub || name == domain.AttrEmail {
			return domain.NewError("admin_delete_attributes", domain.KindInvalidParameter, nil)
		}
		delete(u.attrs, name)
	}
	return nil
}

// SignOut revokes every token issued to the user so far.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, err := p.verify(accessToken)
	if err != nil {
		return domain.NewError("sign_out", domain.KindNotAuthorized, err)
	}
	u.generation++
	for token, owner := range p.refresh {
		if owner == u.username {
			delete(p.refresh, token)
		}
	}
	return nil
}

// lookup accepts either the username or the sub, as Cognito admin calls do
// for pools that alias by email.
func (p *Provider) lookup(username string) (*user, bool) {
	if u, ok := p.users[normalize(username)]; ok {
		return u, true
	}
	for _, u := range p.users {
		if u.attrs[domain.AttrSub] == username {
			return u, true
		}
	}
	return nil, false
}

func (p *Provider) issue(u *user, refreshToken string) (*domain.Tokens, error) {
	now := p.clock.Now()
	claims := jwt.MapClaims{
		"sub":       u.attrs[domain.AttrSub],
		"username":  u.username,
		"token_use": "access",
		"gen":       u.generation,
		"iat":       now.Unix(),
		"exp":       now.Add(accessTokenTTL).Unix(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return nil, domain.NewError("issue_tokens", domain.KindUnknown, err)
	}
	if refreshToken == "" {
		refreshToken = uuid.NewString()
		p.refresh[refreshToken] = u.username
	}
	return &domain.Tokens{
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresIn:    accessTokenTTL,
	}, nil
}

func (p *Provider) verify(accessToken string) (*user, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.clock.Now),
		jwt.WithExpirationRequired(),
	)
	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(accessToken, claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}); err != nil {
		return nil, err
	}
	username, _ := claims["username"].(string)
	u, ok := p.users[username]
	if !ok {
		return nil, fmt.Errorf("unknown user %q", username)
	}
	gen, _ := claims["gen"].(float64)
	if int(gen) != u.generation {
		return nil, fmt.Errorf("token revoked")
	}
	return u, nil
}

func (p *Provider) deliverCode(username string) string {
	code := p.codes()
	p.lastCodes[username] = code
	return code
}

func setAttributes(u *user, attrs map[string]string) error {
	for name, value := range attrs {
		if name == domain.AttrSub {
			return domain.NewError("update_attributes", domain.KindInvalidParameter, nil)
		}
		u.attrs[name] = value
	}
	return nil
}

func snapshot(u *user) *domain.User {
	raw := make(map[string]string, len(u.attrs))
	for k, v := range u.attrs {
		raw[k] = v
	}
	return &domain.User{
		Username:   u.username,
		Attributes: domain.AttributesFromMap(u.username, raw),
		Raw:        raw,
	}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "000000"
	}
	return fmt.Sprintf("%06d", n.Int64())
}

var _ domain.Provider = (*Provider)(nil)
