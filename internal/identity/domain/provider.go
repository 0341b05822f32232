package domain

import (
	"context"
	"time"
)

type Tokens struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	ExpiresIn    time.Duration
}

const (
	ChallengeSoftwareToken = "SOFTWARE_TOKEN_MFA"
	ChallengeSMS           = "SMS_MFA"
)

// Challenge is returned instead of tokens when sign-in needs a second factor.
type Challenge struct {
	Name    string
	Session string
}

type AuthResult struct {
	Tokens    *Tokens
	Challenge *Challenge
}

type SignUpInput struct {
	Email    string
	Password string
	Locale   string
}

type SignUpResult struct {
	UserSub   string
	Confirmed bool
}

type MFAInput struct {
	Email         string
	ChallengeName string
	Session       string
	Code          string
}

type User struct {
	Username   string
	Attributes Attributes
	Raw        map[string]string
}

// Provider is the identity service contract. Implementations must be safe
// for concurrent use.
type Provider interface {
	SignUp(ctx context.Context, in SignUpInput) (*SignUpResult, error)
	ConfirmSignUp(ctx context.Context, email, code string) error
	ResendConfirmationCode(ctx context.Context, email string) error
	SignIn(ctx context.Context, email, password string) (*AuthResult, error)
	RespondToMFAChallenge(ctx context.Context, in MFAInput) (*Tokens, error)
	RefreshTokens(ctx context.Context, refreshToken, username string) (*Tokens, error)
	ForgotPassword(ctx context.Context, email string) error
	ConfirmForgotPassword(ctx context.Context, email, code, newPassword string) error

	GetUser(ctx context.Context, accessToken string) (*User, error)
	UpdateUserAttributes(ctx context.Context, accessToken string, attrs map[string]string) error

	AdminGetUser(ctx context.Context, username string) (*User, error)
	AdminUpdateUserAttributes(ctx context.Context, username string, attrs map[string]string) error
	AdminDeleteUserAttributes(ctx context.Context, username string, names []string) error

	SignOut(ctx context.Context, accessToken string) error
}
