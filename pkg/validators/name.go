package validators

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrNameEmpty   = errors.New("no name provided")
	ErrNameTooLong = errors.New("name is too long")
	ErrNameInvalid = errors.New("name contains invalid characters")
)

const maxNameLen = 255

// NameValidator checks user names and file display names
func NameValidator(n string) error {
	if strings.TrimSpace(n) == "" {
		return ErrNameEmpty
	}

	if utf8.RuneCountInString(n) > maxNameLen {
		return ErrNameTooLong
	}

	if !utf8.ValidString(n) || strings.IndexFunc(n, unicode.IsControl) >= 0 {
		return ErrNameInvalid
	}

	return nil
}

// FileNameValidator is NameValidator plus the rule that a file name can't
// contain a path separator, since the path is where folders come from
func FileNameValidator(n string) error {
	if err := NameValidator(n); err != nil {
		return err
	}

	if strings.ContainsAny(n, `/\`) || n == "." || n == ".." {
		return ErrNameInvalid
	}

	return nil
}
