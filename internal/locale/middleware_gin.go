package locale

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obsctx "github.com/smallbiznis/portal/internal/observability/context"
)

const ContextKey = "locale"

// Middleware serves routes mounted under /:locale. Unsupported segments are
// redirected to the same path under the locale matched from Accept-Language.
func Middleware(r *Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		segment := c.Param("locale")
		if !r.IsSupported(segment) {
			target := "/" + r.Match(c.GetHeader("Accept-Language")) + trimFirstSegment(c.Request.URL.Path)
			if raw := c.Request.URL.RawQuery; raw != "" {
				target += "?" + raw
			}
			c.Redirect(http.StatusFound, target)
			c.Abort()
			return
		}

		code := r.Resolve(segment)
		c.Set(ContextKey, code)
		c.Request = c.Request.WithContext(obsctx.WithLocale(c.Request.Context(), code))
		c.Next()
	}
}

// FromGin returns the locale stored by Middleware, or fallback when absent.
func FromGin(c *gin.Context, fallback string) string {
	if code := c.GetString(ContextKey); code != "" {
		return code
	}
	return fallback
}

func trimFirstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	idx := strings.Index(path, "/")
	if idx < 0 {
		return ""
	}
	return path[idx:]
}
