package server

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/portal/internal/identity/password"
	"github.com/smallbiznis/portal/internal/locale"
)

var (
	validate = newValidator()
	otpRe    = regexp.MustCompile(`^[0-9]{6}$`)
)

// tagCodes maps validator tags to message codes. Unlisted tags read as
// invalid_value.
var tagCodes = map[string]string{
	"required": "field_required",
	"email":    "invalid_email",
	"password": "invalid_password",
	"otp":      "invalid_code",
	"eqfield":  "password_mismatch",
	"locale":   "invalid_locale",
	"gte":      "invalid_amount",
	"unit":     "invalid_unit",
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return password.CheckPolicy(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("otp", func(fl validator.FieldLevel) bool {
		return otpRe.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	_ = v.RegisterValidation("locale", func(fl validator.FieldLevel) bool {
		value := strings.TrimSpace(fl.Field().String())
		for _, code := range locale.Supported {
			if strings.EqualFold(code, value) {
				return true
			}
		}
		return false
	})
	_ = v.RegisterValidation("unit", func(fl validator.FieldLevel) bool {
		switch strings.ToUpper(strings.TrimSpace(fl.Field().String())) {
		case "KB", "MB", "GB", "TB":
			return true
		}
		return false
	})
	return v
}

// bindForm decodes a JSON or form body into dst and validates it. Nothing
// external is called when this fails.
func bindForm(c *gin.Context, dst any) error {
	if err := c.ShouldBind(dst); err != nil {
		return newValidationError("request", "invalid_value")
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationErrors{}
	for _, fe := range verrs {
		code, ok := tagCodes[fe.Tag()]
		if !ok {
			code = "invalid_value"
		}
		out.Add(fe.Field(), code)
	}
	return out
}
