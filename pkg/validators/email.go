// Package validators contains validators found throughout the application
// that have been abstracted away from the main code
package validators

import (
	"errors"
	"net/mail"
	"strings"
)

var (
	ErrEmailEmpty   = errors.New("no email address provided")
	ErrEmailInvalid = errors.New("invalid email address provided")
	ErrEmailTooLong = errors.New("email address is too long")
)

func EmailValidator(e string) error {
	if e == "" {
		return ErrEmailEmpty
	}

	if len(e) > 254 {
		return ErrEmailTooLong
	}

	// ParseAddress also accepts "Name <addr>", only a bare address is allowed
	a, err := mail.ParseAddress(e)
	if err != nil || a.Address != e {
		return ErrEmailInvalid
	}

	return nil
}

// NormalizeEmail is applied before an address is stored or looked up, so
// accounts don't differ by case or stray spaces
func NormalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
