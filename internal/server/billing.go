package server

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultInvoiceLimit = 12
	maxInvoiceLimit     = 100
)

func (s *Server) ListInvoices(c *gin.Context) {
	limit := defaultInvoiceLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.AbortWithError(c, newValidationError("limit", "invalid_value"))
			return
		}
		limit = min(parsed, maxInvoiceLimit)
	}

	attrs, _ := s.attributes(c)
	invoices, err := s.payments.ListInvoices(c.Request.Context(), attrs.CustomerID, limit)
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.respond(c, "", gin.H{"invoices": invoices})
}

func (s *Server) ListPaymentMethods(c *gin.Context) {
	attrs, _ := s.attributes(c)
	methods, err := s.payments.ListPaymentMethods(c.Request.Context(), attrs.CustomerID)
	if err != nil {
		s.AbortWithError(c, err)
		return
	}
	s.respond(c, "", gin.H{"payment_methods": methods})
}
