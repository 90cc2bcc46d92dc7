package validators

import (
	"errors"
	"mime"
	"net/http"
)

var (
	ErrContentTypeEmpty   = errors.New("no content type provided")
	ErrContentTypeInvalid = errors.New("invalid content type provided")
	ErrFileEmpty          = errors.New("file is empty")
	ErrFileTooLarge       = errors.New("file too large")
)

// ContentTypeValidator accepts any well formed media type. Files aren't
// restricted by type, the value is only signed into the upload URL.
func ContentTypeValidator(ct string) error {
	if ct == "" {
		return ErrContentTypeEmpty
	}

	if _, _, err := mime.ParseMediaType(ct); err != nil {
		return ErrContentTypeInvalid
	}

	return nil
}

// SizeValidator checks a declared upload size against the per file limit
// and returns the status code to respond with
func SizeValidator(size, maxSize int64) (int, error) {
	if size <= 0 {
		return http.StatusBadRequest, ErrFileEmpty
	}

	if size > maxSize {
		return http.StatusRequestEntityTooLarge, ErrFileTooLarge
	}

	return 0, nil
}
