package http

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"installment-subledger/internal/domain/subloan"
)

// Reusable error payload
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
type ErrorResponse struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details,omitempty"`
}

var reHex32 = regexp.MustCompile(`^[a-f0-9]{32}$`)

type CustomValidator struct{ v *validator.Validate }

func NewValidator() *CustomValidator {
	v := validator.New()

	// borrower id / loan ref = 32-char lowercase hex
	_ = v.RegisterValidation("hex32", func(fl validator.FieldLevel) bool {
		return reHex32.MatchString(fl.Field().String())
	})
	// operation kind must be one of the accepted identifiers
	_ = v.RegisterValidation("opkind", func(fl validator.FieldLevel) bool {
		return subloan.ValidKind(subloan.Kind(fl.Field().String()))
	})
	// rates are fixed-point with 1e9 == 100%
	_ = v.RegisterValidation("rate", func(fl validator.FieldLevel) bool {
		return fl.Field().Uint() <= subloan.RateFactor
	})

	return &CustomValidator{v: v}
}

func (cv *CustomValidator) Validate(i any) error { return cv.v.Struct(i) }

// Map validator.ValidationErrors → []FieldError with readable messages.
func ToFieldErrors(err error) []FieldError {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "_", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, e := range ve {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out = append(out, FieldError{Field: field, Message: "is required"})
		case "hex32":
			out = append(out, FieldError{Field: field, Message: "must be 32-char lowercase hex"})
		case "opkind":
			out = append(out, FieldError{Field: field, Message: "is not a known operation kind"})
		case "rate":
			out = append(out, FieldError{Field: field, Message: "must not exceed 1000000000 (100%)"})
		case "gte":
			out = append(out, FieldError{Field: field, Message: "must be greater than or equal to " + e.Param()})
		case "lte":
			out = append(out, FieldError{Field: field, Message: "must be less than or equal to " + e.Param()})
		case "gt":
			out = append(out, FieldError{Field: field, Message: "must be greater than " + e.Param()})
		case "min":
			out = append(out, FieldError{Field: field, Message: "must have at least " + e.Param() + " items"})
		case "max":
			out = append(out, FieldError{Field: field, Message: "must have at most " + e.Param() + " items"})
		case "dive":
			out = append(out, FieldError{Field: field, Message: "has invalid items"})
		default:
			out = append(out, FieldError{Field: field, Message: e.Tag() + " validation failed"})
		}
	}
	return out
}
