package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	usagedomain "github.com/smallbiznis/portal/internal/usage/domain"
)

type usageLimitRequest struct {
	UsageLimitValue  *float64 `json:"usage_limit_value" form:"usage_limit_value" validate:"omitempty,gte=0"`
	UsageUnit        string   `json:"usage_unit" form:"usage_unit" validate:"omitempty,unit"`
	AmountLimitValue *float64 `json:"amount_limit_value" form:"amount_limit_value" validate:"omitempty,gte=0"`
	ExceedAction     string   `json:"exceed_action" form:"exceed_action" validate:"required,oneof=notify restrict"`
	Emails           []string `json:"emails" form:"emails" validate:"omitempty,dive,email"`
}

func (r usageLimitRequest) toDomain(customerID string) usagedomain.CreateLimitRequest {
	return usagedomain.CreateLimitRequest{
		CustomerID:       customerID,
		UsageLimitValue:  r.UsageLimitValue,
		UsageUnit:        strings.ToUpper(strings.TrimSpace(r.UsageUnit)),
		AmountLimitValue: r.AmountLimitValue,
		ExceedAction:     strings.TrimSpace(r.ExceedAction),
		Emails:           r.Emails,
	}
}

func (s *Server) ListUsageLimits(c *gin.Context) {
	attrs, _ := s.attributes(c)
	limits, err := s.usageSvc.ListLimits(c.Request.Context(), attrs.CustomerID)
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.respond(c, "", gin.H{"usage_limits": limits})
}

func (s *Server) GetUsageLimit(c *gin.Context) {
	attrs, _ := s.attributes(c)
	limit, err := s.usageSvc.GetLimit(c.Request.Context(), attrs.CustomerID, c.Param("id"))
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.respond(c, "", limit)
}

func (s *Server) CreateUsageLimit(c *gin.Context) {
	var req usageLimitRequest
	if err := bindForm(c, &req); err != nil {
		s.AbortWithError(c, err)
		return
	}
	attrs, _ := s.attributes(c)
	limit, err := s.usageSvc.CreateLimit(c.Request.Context(), req.toDomain(attrs.CustomerID))
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.respond(c, "usage_limit_saved", limit)
}

func (s *Server) UpdateUsageLimit(c *gin.Context) {
	var req usageLimitRequest
	if err := bindForm(c, &req); err != nil {
		s.AbortWithError(c, err)
		return
	}
	attrs, _ := s.attributes(c)
	limit, err := s.usageSvc.UpdateLimit(c.Request.Context(), usagedomain.UpdateLimitRequest{
		ID:                 c.Param("id"),
		CreateLimitRequest: req.toDomain(attrs.CustomerID),
	})
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.respond(c, "usage_limit_saved", limit)
}

func (s *Server) DeleteUsageLimit(c *gin.Context) {
	attrs, _ := s.attributes(c)
	if err := s.usageSvc.DeleteLimit(c.Request.Context(), attrs.CustomerID, c.Param("id")); err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.respond(c, "usage_limit_deleted", nil)
}

func (s *Server) GetMonthlyUsage(c *gin.Context) {
	attrs, _ := s.attributes(c)
	summary, err := s.usageSvc.MonthlyUsage(c.Request.Context(), attrs.CustomerID)
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.respond(c, "", summary)
}

// EvaluateUsage reports which limits this month's processing volume exceeds.
func (s *Server) EvaluateUsage(c *gin.Context) {
	attrs, _ := s.attributes(c)
	evaluation, err := s.usageSvc.Evaluate(c.Request.Context(), attrs.CustomerID)
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.respond(c, "", gin.H{
		"evaluation": evaluation,
		"summary":    usagedomain.FormatExceedingLimits(evaluation.Exceeded),
	})
}

// RecordUsage ingests a processing or storage event from the pipeline.
func (s *Server) RecordUsage(c *gin.Context) {
	var req usagedomain.RecordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.AbortWithError(c, newValidationError("request", "invalid_value"))
		return
	}
	res, err := s.usageSvc.RecordUsage(c.Request.Context(), req)
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.respond(c, "usage_recorded", res)
}
