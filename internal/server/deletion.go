package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	deletiondomain "github.com/smallbiznis/portal/internal/deletion/domain"
)

type restoreRequest struct {
	Expected string `json:"expected" form:"expected"`
}

func (s *Server) GetDeletionStatus(c *gin.Context) {
	attrs, _ := s.attributes(c)
	status, err := s.deletionSvc.Status(c.Request.Context(), attrs)
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.respond(c, "", status)
}

// RequestDeletion starts the grace period for the whole tenant.
func (s *Server) RequestDeletion(c *gin.Context) {
	attrs, _ := s.attributes(c)
	ctx := c.Request.Context()
	status, err := s.deletionSvc.RequestDeletion(ctx, attrs)
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.accessor.Forget(c)
	s.obsMetrics.RecordDeletionEvent(ctx, "requested")
	if len(status.Failed) > 0 {
		s.respondPartialDeletion(c, status.Failed, status)
		return
	}
	s.respond(c, "deletion_requested", status)
}

// RestoreAccount clears a pending deletion. Restoring an active tenant
// succeeds with restored=false. The redirect asks the client for a full reload.
func (s *Server) RestoreAccount(c *gin.Context) {
	var req restoreRequest
	if c.Request.ContentLength != 0 {
		if err := bindForm(c, &req); err != nil {
			s.AbortWithError(c, err)
			return
		}
	}
	attrs, _ := s.attributes(c)
	ctx := c.Request.Context()
	res, err := s.deletionSvc.Restore(ctx, attrs, strings.TrimSpace(req.Expected))
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.accessor.Forget(c)
	if res.Restored {
		s.obsMetrics.RecordDeletionEvent(ctx, "restored")
	}
	res.Redirect = "/" + s.lang(c) + res.Redirect
	if len(res.Failed) > 0 {
		s.respondPartialDeletion(c, res.Failed, res)
		return
	}
	s.respond(c, "deletion_restored", res)
}

// respondPartialDeletion reports users whose write failed. Errors are keyed by
// username; repeating the action retries them.
func (s *Server) respondPartialDeletion(c *gin.Context, failed []deletiondomain.UserFailure, data any) {
	lang := s.lang(c)
	fields := make(map[string][]string, len(failed))
	for _, f := range failed {
		fields[f.Username] = append(fields[f.Username], f.Kind)
	}
	c.JSON(http.StatusMultiStatus, ActionResult{
		Success: false,
		Message: s.dict.Message(lang, "deletion_partial"),
		Errors:  s.localizeFields(lang, fields),
		Data:    data,
	})
}
