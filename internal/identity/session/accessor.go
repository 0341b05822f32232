package session

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/portal/internal/clock"
	"github.com/smallbiznis/portal/internal/identity/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	userContextKey  = "identity.user"
	tokenContextKey = "identity.access_token"
)

type Params struct {
	fx.In

	Provider domain.Provider
	Sessions *Manager
	Clock    clock.Clock
	Log      *zap.Logger
}

// Accessor resolves the signed-in user for a request, refreshing tokens when
// the access token has expired.
type Accessor struct {
	provider domain.Provider
	sessions *Manager
	clock    clock.Clock
	log      *zap.Logger
}

func NewAccessor(p Params) *Accessor {
	return &Accessor{
		provider: p.Provider,
		sessions: p.Sessions,
		clock:    p.Clock,
		log:      p.Log.Named("identity.session"),
	}
}

// Current returns the caller. The result is memoized on the gin context.
func (a *Accessor) Current(c *gin.Context) (*domain.User, error) {
	if cached, ok := c.Get(userContextKey); ok {
		if user, ok := cached.(*domain.User); ok {
			return user, nil
		}
	}

	access, refresh := a.sessions.ReadTokens(c)
	if access == "" && refresh == "" {
		return nil, domain.ErrNoSession
	}

	claims := readClaims(access)
	refreshed := false
	if refresh != "" && (access == "" || claims.expired(a.clock.Now())) {
		tokens, err := a.refresh(c, refresh, claims.username)
		if err != nil {
			return nil, err
		}
		access = tokens.AccessToken
		refreshed = true
	}

	ctx := c.Request.Context()
	user, err := a.provider.GetUser(ctx, access)
	if err != nil && !refreshed && refresh != "" && domain.KindOf(err) == domain.KindNotAuthorized {
		tokens, rerr := a.refresh(c, refresh, claims.username)
		if rerr != nil {
			return nil, rerr
		}
		access = tokens.AccessToken
		user, err = a.provider.GetUser(ctx, access)
	}
	if err != nil {
		if domain.KindOf(err) == domain.KindNotAuthorized {
			a.sessions.ClearTokens(c)
			return nil, domain.ErrSessionExpired
		}
		return nil, err
	}

	c.Set(userContextKey, user)
	c.Set(tokenContextKey, access)
	return user, nil
}

// AccessToken returns the token validated by Current.
func (a *Accessor) AccessToken(c *gin.Context) (string, bool) {
	if _, err := a.Current(c); err != nil {
		return "", false
	}
	token := c.GetString(tokenContextKey)
	return token, token != ""
}

// Forget drops the memoized user so the next Current call re-reads attributes.
func (a *Accessor) Forget(c *gin.Context) {
	c.Set(userContextKey, nil)
}

func (a *Accessor) refresh(c *gin.Context, refresh, username string) (*domain.Tokens, error) {
	tokens, err := a.provider.RefreshTokens(c.Request.Context(), refresh, username)
	if err != nil {
		a.log.Debug("token refresh failed", zap.String("kind", string(domain.KindOf(err))))
		a.sessions.ClearTokens(c)
		return nil, domain.ErrSessionExpired
	}
	a.sessions.SetTokens(c, tokens)
	return tokens, nil
}

type tokenClaims struct {
	username  string
	expiresAt time.Time
}

func (t tokenClaims) expired(now time.Time) bool {
	return !t.expiresAt.IsZero() && !now.Before(t.expiresAt)
}

// readClaims inspects the token without verifying it; verification is the
// provider's job in GetUser.
func readClaims(token string) tokenClaims {
	if token == "" {
		return tokenClaims{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return tokenClaims{}
	}
	out := tokenClaims{}
	if username, ok := claims["username"].(string); ok {
		out.username = username
	} else if username, ok := claims["cognito:username"].(string); ok {
		out.username = username
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.expiresAt = exp.Time
	}
	return out
}
