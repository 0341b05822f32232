package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/portal/internal/clock"
	"github.com/smallbiznis/portal/internal/config"
	"github.com/smallbiznis/portal/internal/identity/domain"
	"github.com/smallbiznis/portal/internal/identity/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAccessor(t *testing.T) (*Accessor, *memory.Provider, *clock.FakeClock) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	clk := clock.NewFakeClock(time.Now())
	provider := memory.New(clk)
	accessor := NewAccessor(Params{
		Provider: provider,
		Sessions: NewManager(config.Config{}),
		Clock:    clk,
		Log:      zap.NewNop(),
	})
	return accessor, provider, clk
}

func requestWithTokens(tokens *domain.Tokens) (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if tokens != nil {
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: tokens.AccessToken})
		req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: tokens.RefreshToken})
	}
	c.Request = req
	return c, rec
}

func signIn(t *testing.T, p *memory.Provider) *domain.Tokens {
	t.Helper()
	_, err := p.Seed("u@example.com", "Passw0rd", map[string]string{domain.AttrRole: "admin"})
	require.NoError(t, err)
	res, err := p.SignIn(context.Background(), "u@example.com", "Passw0rd")
	require.NoError(t, err)
	return res.Tokens
}

func TestCurrentWithoutCookies(t *testing.T) {
	accessor, _, _ := newAccessor(t)
	c, _ := requestWithTokens(nil)

	_, err := accessor.Current(c)
	assert.ErrorIs(t, err, domain.ErrNoSession)
}

func TestCurrentReadsAttributes(t *testing.T) {
	accessor, provider, _ := newAccessor(t)
	tokens := signIn(t, provider)
	c, rec := requestWithTokens(tokens)

	user, err := accessor.Current(c)
	require.NoError(t, err)
	assert.True(t, user.Attributes.IsAdmin())
	assert.Empty(t, rec.Header().Values("Set-Cookie"))

	token, ok := accessor.AccessToken(c)
	assert.True(t, ok)
	assert.Equal(t, tokens.AccessToken, token)
}

func TestCurrentRefreshesExpiredToken(t *testing.T) {
	accessor, provider, clk := newAccessor(t)
	tokens := signIn(t, provider)
	clk.Advance(2 * time.Hour)
	c, rec := requestWithTokens(tokens)

	user, err := accessor.Current(c)
	require.NoError(t, err)
	assert.Equal(t, "u@example.com", user.Username)

	cookies := strings.Join(rec.Header().Values("Set-Cookie"), "\n")
	assert.Contains(t, cookies, AccessTokenCookie+"=")
	assert.Contains(t, cookies, "HttpOnly")
	assert.Contains(t, cookies, "SameSite=Lax")

	token, ok := accessor.AccessToken(c)
	require.True(t, ok)
	assert.NotEqual(t, tokens.AccessToken, token)
}

func TestCurrentClearsCookiesWhenRefreshFails(t *testing.T) {
	accessor, provider, clk := newAccessor(t)
	tokens := signIn(t, provider)
	clk.Advance(2 * time.Hour)
	tokens.RefreshToken = "bogus"
	c, rec := requestWithTokens(tokens)

	_, err := accessor.Current(c)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.Contains(t, strings.Join(rec.Header().Values("Set-Cookie"), "\n"), "Max-Age=0")
}

func TestMFASessionCookieRoundTrip(t *testing.T) {
	m := NewManager(config.Config{})
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	m.SetMFASession(c, PendingMFA{Email: "u@example.com", ChallengeName: domain.ChallengeSoftwareToken, Session: "abc"})

	next := httptest.NewRequest(http.MethodPost, "/", nil)
	for _, cookie := range rec.Result().Cookies() {
		next.AddCookie(cookie)
	}
	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	c2.Request = next

	pending, ok := m.ReadMFASession(c2)
	require.True(t, ok)
	assert.Equal(t, "u@example.com", pending.Email)
	assert.Equal(t, "abc", pending.Session)
}
