package cognito

import (
	"errors"

	"github.com/aws/smithy-go"
	"github.com/smallbiznis/portal/internal/identity/domain"
)

var exceptionKinds = map[string]domain.ErrorKind{
	"NotAuthorizedException":            domain.KindNotAuthorized,
	"UserNotConfirmedException":         domain.KindUserNotConfirmed,
	"UserNotFoundException":             domain.KindUserNotFound,
	"UsernameExistsException":           domain.KindUsernameExists,
	"AliasExistsException":              domain.KindUsernameExists,
	"CodeMismatchException":             domain.KindCodeMismatch,
	"ExpiredCodeException":              domain.KindExpiredCode,
	"InvalidPasswordException":          domain.KindInvalidPassword,
	"LimitExceededException":            domain.KindLimitExceeded,
	"TooManyRequestsException":          domain.KindLimitExceeded,
	"TooManyFailedAttemptsException":    domain.KindLimitExceeded,
	"InvalidParameterException":         domain.KindInvalidParameter,
	"PasswordResetRequiredException":    domain.KindNotAuthorized,
	"SoftwareTokenMFANotFoundException": domain.KindMFARequired,
}

// mapError converts an SDK failure into a domain error carrying the kind.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if kind, ok := exceptionKinds[apiErr.ErrorCode()]; ok {
			return domain.NewError(op, kind, err)
		}
	}
	return domain.NewError(op, domain.KindUnknown, err)
}
