package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/portal/internal/dictionary"
	"github.com/smallbiznis/portal/internal/locale"
)

// ActionResult is the body of every action response.
type ActionResult struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
	Data    any                 `json:"data,omitempty"`
}

func (s *Server) lang(c *gin.Context) string {
	return locale.FromGin(c, s.locales.Default())
}

func (s *Server) respond(c *gin.Context, messageKey string, data any) {
	s.respondStatus(c, http.StatusOK, messageKey, data)
}

func (s *Server) respondStatus(c *gin.Context, status int, messageKey string, data any) {
	message := ""
	if messageKey != "" {
		message = s.dict.Message(s.lang(c), messageKey)
	}
	c.JSON(status, ActionResult{Success: true, Message: message, Data: data})
}

// localizeFields resolves codes on the messages page first and falls back to
// the error kinds page.
func (s *Server) localizeFields(lang string, fields map[string][]string) map[string][]string {
	if len(fields) == 0 {
		return nil
	}
	messages := s.dict.Lookup(lang, dictionary.PageMessages)
	out := make(map[string][]string, len(fields))
	for field, codes := range fields {
		localized := make([]string, 0, len(codes))
		for _, code := range codes {
			if text, ok := messages.Get(code); ok {
				localized = append(localized, text)
				continue
			}
			localized = append(localized, s.dict.Error(lang, code))
		}
		out[field] = localized
	}
	return out
}

// ActionMetrics counts every action by route and outcome.
func (s *Server) ActionMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		action := strings.TrimPrefix(c.FullPath(), "/:locale/actions/")
		if action == "" {
			action = "unknown"
		}
		s.obsMetrics.RecordAction(c.Request.Context(), action, actionOutcome(c.Writer.Status()))
	}
}

func actionOutcome(status int) string {
	switch {
	case status < http.StatusBadRequest:
		return "success"
	case status == http.StatusUnprocessableEntity:
		return "invalid"
	case status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusTooManyRequests:
		return "denied"
	default:
		return "error"
	}
}
