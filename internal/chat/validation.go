package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/eion/tenantgate/internal/zerrors"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// parseRequest decodes and validates the body. Every failure is a ValidationError whose message is
// safe to return to the caller.
func parseRequest(v *validator.Validate, body []byte) (*Request, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, zerrors.NewValidationError("body", "request body is required")
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, zerrors.NewValidationErrorWithCause("body", "request body must be a valid JSON object", err)
	}

	if err := v.Struct(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, translate(verrs[0])
		}
		return nil, zerrors.NewValidationErrorWithCause("body", "request body is invalid", err)
	}
	return &req, nil
}

// translate turns a validator failure into a caller-facing message such as "model is required".
func translate(fe validator.FieldError) *zerrors.ValidationError {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.Slice {
			msg = fmt.Sprintf("%s must contain at least one message", field)
		} else {
			msg = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
	case "oneof":
		msg = fmt.Sprintf("%s must be one of %s", field, fe.Param())
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return zerrors.NewValidationError(field, msg)
}
