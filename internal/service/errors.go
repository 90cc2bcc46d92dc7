package service

import "errors"

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrSlotNotFound  = errors.New("invalid upload slot")
	ErrSlotExpired   = errors.New("upload slot expired")
	ErrObjectMissing = errors.New("uploaded object not found")
	ErrPathTaken     = errors.New("a file already exists at this path")
	ErrFileNotFound  = errors.New("file not found")
	ErrDirNotFound   = errors.New("folder not found")
	ErrFileTooLarge  = errors.New("file too large")
	ErrQuotaExceeded = errors.New("not enough storage space left")
	ErrShareNotFound = errors.New("share link expired or doesn't exist")
)

// InputError carries a validation failure. It matches ErrInvalidInput and
// the underlying validator error, but prints only the latter.
type InputError struct {
	Err error
}

func (e *InputError) Error() string { return e.Err.Error() }

func (e *InputError) Unwrap() []error { return []error{ErrInvalidInput, e.Err} }

func invalid(err error) error {
	return &InputError{Err: err}
}
