package timeline

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that a stored file does not exist. The row-append
// path treats it as an empty baseline; every other caller must surface it.
var ErrNotFound = errors.New("file not found")

// ErrConflict reports that a write carried a stale revision token and was
// rejected by the hosting platform. The read-modify-write cycle may be
// retried against a fresh revision.
var ErrConflict = errors.New("revision conflict")

// ValidationError reports missing or malformed submission input. It is
// returned before any side effect has happened.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
