package session

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/portal/internal/config"
	"github.com/smallbiznis/portal/internal/identity/domain"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
	MFASessionCookie   = "mfaSession"

	refreshTTL    = 30 * 24 * time.Hour
	mfaSessionTTL = 3 * time.Minute
)

// Manager reads and writes the session cookies. All cookies are httpOnly and
// SameSite=Lax.
type Manager struct {
	secure bool
}

func NewManager(cfg config.Config) *Manager {
	return &Manager{secure: cfg.AuthCookieSecure}
}

func (m *Manager) ReadTokens(c *gin.Context) (access, refresh string) {
	return m.read(c, AccessTokenCookie), m.read(c, RefreshTokenCookie)
}

// SetTokens writes both token cookies. The access cookie outlives the token
// itself so an expired token can still be refreshed.
func (m *Manager) SetTokens(c *gin.Context, tokens *domain.Tokens) {
	maxAge := int(refreshTTL.Seconds())
	m.set(c, AccessTokenCookie, tokens.AccessToken, maxAge)
	if tokens.RefreshToken != "" {
		m.set(c, RefreshTokenCookie, tokens.RefreshToken, maxAge)
	}
}

func (m *Manager) ClearTokens(c *gin.Context) {
	m.set(c, AccessTokenCookie, "", -1)
	m.set(c, RefreshTokenCookie, "", -1)
}

// PendingMFA is the state carried between sign-in and the 2FA step.
type PendingMFA struct {
	Email         string
	ChallengeName string
	Session       string
}

func (m *Manager) SetMFASession(c *gin.Context, pending PendingMFA) {
	value := url.Values{
		"e": {pending.Email},
		"c": {pending.ChallengeName},
		"s": {pending.Session},
	}.Encode()
	m.set(c, MFASessionCookie, value, int(mfaSessionTTL.Seconds()))
}

func (m *Manager) ReadMFASession(c *gin.Context) (PendingMFA, bool) {
	raw := m.read(c, MFASessionCookie)
	if raw == "" {
		return PendingMFA{}, false
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return PendingMFA{}, false
	}
	pending := PendingMFA{
		Email:         values.Get("e"),
		ChallengeName: values.Get("c"),
		Session:       values.Get("s"),
	}
	if pending.Email == "" || pending.Session == "" {
		return PendingMFA{}, false
	}
	return pending, true
}

func (m *Manager) ClearMFASession(c *gin.Context) {
	m.set(c, MFASessionCookie, "", -1)
}

func (m *Manager) read(c *gin.Context, name string) string {
	value, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

func (m *Manager) set(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", m.secure, true)
}
