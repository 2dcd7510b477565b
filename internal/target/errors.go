package target

import "errors"

// ErrValidation is wrapped by every target construction failure.
var ErrValidation = errors.New("invalid execution target")

// Construction errors.
var (
	ErrEmptyPattern    = validationError("pattern is required")
	ErrEmptyPath       = validationError("path is required")
	ErrEmptyImportPath = validationError("import path is required")
	ErrInvalidPath     = validationError("path contains invalid characters")
	ErrInvalidTestName = validationError("test name contains whitespace")
)

type targetError struct {
	msg string
}

func validationError(msg string) error {
	return &targetError{msg: msg}
}

func (e *targetError) Error() string { return e.msg }

func (e *targetError) Unwrap() error { return ErrValidation }
