package apperr

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	// Field errors carry JSON names so messages match the request payload.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// ValidateStruct checks the binding rules declared on v, outside of any request.
func ValidateStruct(v any) error {
	if err := binding.Validator.ValidateStruct(v); err != nil {
		return Binding(err, "invalid payload")
	}
	return nil
}

// Binding classifies a bind or validation failure. Rule violations name the first
// offending field; anything else (malformed JSON) gets fallback as its message.
func Binding(err error, fallback string) *Error {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		return &Error{Kind: KindValidation, Message: fieldMessage(fields[0]), Err: err}
	}
	return &Error{Kind: KindValidation, Message: fallback, Err: err}
}

func fieldMessage(fe validator.FieldError) string {
	field := fieldPath(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "uuid", "mongodb":
		return field + " must be a valid id"
	case "gt":
		return field + " must be greater than " + fe.Param()
	case "min":
		u := unit(fe.Kind())
		switch {
		case u != "" && fe.Param() == "1":
			return field + " must not be empty"
		case u == " items":
			return field + " must contain at least " + fe.Param() + " items"
		}
		return field + " must be at least " + fe.Param() + u
	case "max":
		return field + " must be at most " + fe.Param() + unit(fe.Kind())
	default:
		return field + " is invalid"
	}
}

func unit(k reflect.Kind) string {
	switch k {
	case reflect.String:
		return " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		return " items"
	default:
		return ""
	}
}

// fieldPath drops the root struct name and embedded struct names from a namespace,
// e.g. "CreateOrderCommand.ShippingAddress.city" becomes "city".
func fieldPath(ns string) string {
	parts := strings.Split(ns, ".")
	var kept []string
	for _, p := range parts[1:] {
		if p != "" && unicode.IsUpper(rune(p[0])) {
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return parts[len(parts)-1]
	}
	return strings.Join(kept, ".")
}
