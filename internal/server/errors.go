package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/portal/internal/authorization"
	deletiondomain "github.com/smallbiznis/portal/internal/deletion/domain"
	identitydomain "github.com/smallbiznis/portal/internal/identity/domain"
	paymentdomain "github.com/smallbiznis/portal/internal/payment/domain"
	profiledomain "github.com/smallbiznis/portal/internal/profile/domain"
	uploaddomain "github.com/smallbiznis/portal/internal/upload/domain"
	usagedomain "github.com/smallbiznis/portal/internal/usage/domain"
	"github.com/smallbiznis/portal/internal/wizard"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrCompanyRequired    = errors.New("company_required")
	ErrAlreadyRegistered  = errors.New("already_registered")
	ErrDeletionBlocked    = errors.New("deletion_blocked")
	ErrRateLimited        = errors.New("rate_limited")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not_found")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// ValidationErrors collects message codes per form field. Codes are
// localized when the response is written.
type ValidationErrors struct {
	Fields map[string][]string
}

func (v *ValidationErrors) Error() string {
	return "validation error"
}

func (v *ValidationErrors) Add(field, code string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]string)
	}
	v.Fields[field] = append(v.Fields[field], code)
}

func (v *ValidationErrors) Empty() bool {
	return v == nil || len(v.Fields) == 0
}

func newValidationError(field, code string) error {
	v := &ValidationErrors{}
	v.Add(field, code)
	return v
}

// errorClass is how one failure is reported: the HTTP status, the key on the
// messages page, and for adapter failures the error kind localized on the
// errors page instead.
type errorClass struct {
	status  int
	message string
	kind    string
	logType string
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

// fieldError maps domain validation sentinels to the form field they belong to.
func fieldError(err error) (field, code string, ok bool) {
	switch {
	case errors.Is(err, usagedomain.ErrInvalidThreshold):
		return "threshold", "invalid_amount", true
	case errors.Is(err, usagedomain.ErrInvalidUnit):
		return "usage_unit", "invalid_unit", true
	case errors.Is(err, usagedomain.ErrInvalidExceedAction):
		return "exceed_action", "invalid_value", true
	case errors.Is(err, usagedomain.ErrInvalidEmails):
		return "emails", "invalid_email", true
	case errors.Is(err, usagedomain.ErrInvalidUsageType):
		return "usage_type", "invalid_value", true
	case errors.Is(err, usagedomain.ErrInvalidUsageAmount):
		return "usage_amount_bytes", "invalid_amount", true
	case errors.Is(err, usagedomain.ErrInvalidID):
		return "id", "invalid_value", true
	case errors.Is(err, usagedomain.ErrInvalidUser):
		return "user_id", "field_required", true
	case errors.Is(err, usagedomain.ErrInvalidCustomer):
		return "customer_id", "field_required", true
	case errors.Is(err, profiledomain.ErrInvalidUser):
		return "user_id", "field_required", true
	case errors.Is(err, profiledomain.ErrInvalidUserName):
		return "user_name", "field_required", true
	case errors.Is(err, profiledomain.ErrInvalidEmail):
		return "email", "invalid_email", true
	case errors.Is(err, profiledomain.ErrInvalidRole):
		return "role", "invalid_value", true
	case errors.Is(err, uploaddomain.ErrNoFiles):
		return "files", string(uploaddomain.KindNoFiles), true
	case errors.Is(err, uploaddomain.ErrTooManyFiles):
		return "files", string(uploaddomain.KindTooManyFiles), true
	case errors.Is(err, uploaddomain.ErrInvalidRequestID):
		return "request_id", "invalid_value", true
	case errors.Is(err, uploaddomain.ErrInvalidReplyID):
		return "reply_id", "invalid_value", true
	case errors.Is(err, uploaddomain.ErrInvalidFileType):
		return "file_type", "invalid_value", true
	case errors.Is(err, uploaddomain.ErrInvalidProcessingHistory):
		return "processing_history_id", "invalid_value", true
	case errors.Is(err, paymentdomain.ErrInvalidPaymentMethod):
		return "payment_method_id", "invalid_value", true
	case errors.Is(err, wizard.ErrInvalidTransition):
		return "step", "invalid_value", true
	}
	return "", "", false
}

func classify(err error) errorClass {
	if err == nil {
		return errorClass{status: http.StatusInternalServerError, message: "internal_error", logType: "internal_error"}
	}

	if asValidationErrors(err) != nil {
		return errorClass{status: http.StatusUnprocessableEntity, message: "validation_failed", logType: "validation_error"}
	}
	if _, _, ok := fieldError(err); ok {
		return errorClass{status: http.StatusUnprocessableEntity, message: "validation_failed", logType: "validation_error"}
	}

	var identityErr *identitydomain.Error
	if errors.As(err, &identityErr) {
		return classifyIdentity(identityErr.Kind)
	}
	var paymentErr *paymentdomain.Error
	if errors.As(err, &paymentErr) {
		return classifyPayment(paymentErr.Kind)
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, identitydomain.ErrNoSession),
		errors.Is(err, identitydomain.ErrSessionExpired):
		return errorClass{status: http.StatusUnauthorized, message: "unauthorized", logType: "unauthorized"}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, deletiondomain.ErrForbidden):
		return errorClass{status: http.StatusForbidden, message: "forbidden", logType: "forbidden"}
	case errors.Is(err, ErrCompanyRequired),
		errors.Is(err, deletiondomain.ErrNoCompany),
		errors.Is(err, paymentdomain.ErrInvalidCustomer),
		errors.Is(err, uploaddomain.ErrInvalidCustomer),
		errors.Is(err, profiledomain.ErrInvalidCustomer):
		return errorClass{status: http.StatusForbidden, message: "company_required", logType: "forbidden"}
	case errors.Is(err, ErrDeletionBlocked):
		return errorClass{status: http.StatusForbidden, message: "deletion_blocked", logType: "deletion_blocked"}
	case errors.Is(err, usagedomain.ErrUsageRestricted):
		return errorClass{status: http.StatusForbidden, message: "usage_restricted", logType: "usage_restricted"}
	case errors.Is(err, ErrAlreadyRegistered),
		errors.Is(err, profiledomain.ErrAlreadyExists):
		return errorClass{status: http.StatusConflict, message: "already_registered", logType: "conflict"}
	case errors.Is(err, ErrConflict),
		errors.Is(err, deletiondomain.ErrConflict),
		errors.Is(err, deletiondomain.ErrBusy):
		return errorClass{status: http.StatusConflict, message: "conflict", logType: "conflict"}
	case errors.Is(err, ErrNotFound),
		errors.Is(err, usagedomain.ErrNotFound),
		errors.Is(err, profiledomain.ErrNotFound):
		return errorClass{status: http.StatusNotFound, message: "not_found", logType: "not_found"}
	case errors.Is(err, ErrRateLimited):
		return errorClass{status: http.StatusTooManyRequests, message: "rate_limited", logType: "rate_limited"}
	case errors.Is(err, uploaddomain.ErrStorage):
		return errorClass{status: http.StatusBadGateway, kind: string(uploaddomain.KindStorageUnavailable), logType: "storage"}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, paymentdomain.ErrNotConfigured):
		return errorClass{status: http.StatusServiceUnavailable, message: "service_unavailable", logType: "service_unavailable"}
	default:
		return errorClass{status: http.StatusInternalServerError, message: "internal_error", logType: "internal_error"}
	}
}

func classifyIdentity(kind identitydomain.ErrorKind) errorClass {
	class := errorClass{kind: string(kind), logType: "identity"}
	switch kind {
	case identitydomain.KindNotAuthorized, identitydomain.KindMFARequired:
		class.status = http.StatusUnauthorized
	case identitydomain.KindUserNotConfirmed:
		class.status = http.StatusForbidden
	case identitydomain.KindUserNotFound:
		class.status = http.StatusNotFound
	case identitydomain.KindUsernameExists:
		class.status = http.StatusConflict
	case identitydomain.KindCodeMismatch,
		identitydomain.KindExpiredCode,
		identitydomain.KindInvalidPassword,
		identitydomain.KindInvalidParameter:
		class.status = http.StatusUnprocessableEntity
	case identitydomain.KindLimitExceeded:
		class.status = http.StatusTooManyRequests
	default:
		class.status = http.StatusBadGateway
		class.kind = string(identitydomain.KindUnknown)
	}
	return class
}

func classifyPayment(kind paymentdomain.ErrorKind) errorClass {
	class := errorClass{kind: string(kind), logType: "payment"}
	switch kind {
	case paymentdomain.KindCardDeclined:
		class.status = http.StatusPaymentRequired
	case paymentdomain.KindInvalidRequest:
		class.status = http.StatusUnprocessableEntity
	case paymentdomain.KindRateLimited:
		class.status = http.StatusTooManyRequests
	default:
		class.status = http.StatusBadGateway
	}
	return class
}

// classifyErrorForLog feeds the request logger's error_type and error_code.
func classifyErrorForLog(err error) (string, string) {
	class := classify(err)
	code := class.kind
	if code == "" {
		code = class.message
	}
	return class.logType, code
}

// AbortWithError records err on the context and writes the localized failure.
func (s *Server) AbortWithError(c *gin.Context, err error) {
	s.abortWith(c, err, nil)
}

// abortWith is AbortWithError with a data payload, used by multi-step flows
// to return the wizard state alongside the failure.
func (s *Server) abortWith(c *gin.Context, err error, data any) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	class := classify(err)
	lang := s.lang(c)

	result := ActionResult{Success: false, Message: s.classMessage(lang, class), Data: data}
	if vErr := asValidationErrors(err); vErr != nil {
		result.Errors = s.localizeFields(lang, vErr.Fields)
	} else if field, code, ok := fieldError(err); ok {
		result.Errors = s.localizeFields(lang, map[string][]string{field: {code}})
	}

	c.AbortWithStatusJSON(class.status, result)
}

func (s *Server) errorMessage(c *gin.Context, err error) string {
	return s.classMessage(s.lang(c), classify(err))
}

func (s *Server) classMessage(lang string, class errorClass) string {
	if class.kind != "" {
		return s.dict.Error(lang, class.kind)
	}
	return s.dict.Message(lang, class.message)
}
