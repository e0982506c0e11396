package dto

import (
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator with the strongpwd rule registered:
// at least 8 runes, one upper-case letter and one digit, at most 72 bytes.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("strongpwd", StrongPassword)
	return v
}

func StrongPassword(fl validator.FieldLevel) bool {
	pwd := fl.Field().String()
	if len(pwd) > 72 || utf8.RuneCountInString(pwd) < 8 {
		return false
	}
	var hasUpper, hasDigit bool
	for _, r := range pwd {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if unicode.IsDigit(r) {
			hasDigit = true
		}
	}
	return hasUpper && hasDigit
}
