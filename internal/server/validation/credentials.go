// Package validation implements the pure credential checks applied before
// any signup or login touches the user repository.
package validation

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/voicedrop/internal/common"
)

// MinPasswordLength is the shortest accepted password, in bytes.
const MinPasswordLength = 6

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateEmail accepts addresses that pass the RFC 5322 style "email" rule
// and whose domain has at least a name and a top-level label.
func ValidateEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return common.ErrorInvalidEmail
	}

	at := strings.LastIndexByte(email, '@')
	domain := email[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	if dot <= 0 || dot == len(domain)-1 {
		return common.ErrorInvalidEmail
	}

	return nil
}

// ValidatePassword enforces the password policy: at least MinPasswordLength
// long and free of whitespace.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return common.ErrorPasswordTooShort
	}
	if strings.IndexFunc(password, unicode.IsSpace) >= 0 {
		return common.ErrorPasswordWhitespace
	}
	return nil
}

// ValidateSignup checks the signup form fields in order: email, password
// policy, confirmation. The first failure is returned.
func ValidateSignup(email, password, retypePassword string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}
	if password != retypePassword {
		return common.ErrorPasswordMismatch
	}
	return nil
}
