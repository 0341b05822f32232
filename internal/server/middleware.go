package server

import (
	"crypto/subtle"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	deletiondomain "github.com/smallbiznis/portal/internal/deletion/domain"
	identitydomain "github.com/smallbiznis/portal/internal/identity/domain"
	obscontext "github.com/smallbiznis/portal/internal/observability/context"
	"github.com/smallbiznis/portal/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	rateLimitSignIn         = "sign_in"
	rateLimitVerifyMFA      = "verify_mfa"
	rateLimitForgotPassword = "forgot_password"

	rateLimitReasonClientIP = "client-ip"

	headerInternalToken = "X-Internal-Token"
)

// SessionRequired resolves the caller from the session cookies. The user is
// memoized on the context for later handlers.
func (s *Server) SessionRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.accessor.Current(c)
		if err != nil {
			s.AbortWithError(c, err)
			return
		}
		ctx := obscontext.WithCustomerID(c.Request.Context(), user.Attributes.CustomerID)
		ctx = obscontext.WithUserID(ctx, user.Attributes.Subject())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) CompanyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		attrs, ok := s.attributes(c)
		if !ok {
			s.AbortWithError(c, ErrUnauthorized)
			return
		}
		if !attrs.HasCompany() {
			s.AbortWithError(c, ErrCompanyRequired)
			return
		}
		c.Next()
	}
}

func (s *Server) authorize(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		attrs, ok := s.attributes(c)
		if !ok {
			s.AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), attrs.Role, object, action); err != nil {
			s.AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// MutationsAllowed blocks writes for a tenant awaiting deletion.
func (s *Server) MutationsAllowed() gin.HandlerFunc {
	return func(c *gin.Context) {
		attrs, ok := s.attributes(c)
		if !ok {
			s.AbortWithError(c, ErrUnauthorized)
			return
		}
		decision := deletiondomain.Gate(attrs, "", s.clock.Now(), s.graceDays())
		if !decision.MutationsAllowed {
			s.obsMetrics.RecordDeletionEvent(c.Request.Context(), "mutation_blocked")
			s.AbortWithError(c, ErrDeletionBlocked)
			return
		}
		c.Next()
	}
}

// AuthRateLimit throttles credential-bearing actions per client IP.
func (s *Server) AuthRateLimit(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.authLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		res, err := s.authLimiter.Allow(ctx, action, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("auth rate limit check failed", zap.String("action", action), zap.Error(err))
			s.AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			if res.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds()+0.5)))
			}
			s.obsMetrics.RecordRateLimitDenied(ctx, action, rateLimitReasonClientIP)
			s.AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

// InternalTokenRequired guards worker endpoints. An unset token disables them.
func (s *Server) InternalTokenRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := s.cfg.InternalAPIToken
		if expected == "" {
			s.AbortWithError(c, ErrNotFound)
			return
		}
		token := strings.TrimSpace(c.GetHeader(headerInternalToken))
		if token == "" {
			token = strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			s.AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// attributes returns the caller resolved by SessionRequired.
func (s *Server) attributes(c *gin.Context) (identitydomain.Attributes, bool) {
	user, err := s.accessor.Current(c)
	if err != nil || user == nil {
		return identitydomain.Attributes{}, false
	}
	return user.Attributes, true
}

func (s *Server) graceDays() int {
	return s.policy.Get().Deletion.GraceDays
}
