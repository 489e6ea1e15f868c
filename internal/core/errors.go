package core

import (
	"errors"
	"fmt"
)

// Upload error classes. Callers match them with errors.Is; the concrete cause
// is wrapped alongside.
var (
	ErrUnsupportedType  = errors.New("unsupported file type")
	ErrKindNotAccepted  = errors.New("file kind not accepted")
	ErrFileTooLarge     = errors.New("file exceeds maximum allowed size")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNetwork          = errors.New("network error")
	ErrStorage          = errors.New("storage error")
	ErrDatabase         = errors.New("database error")
	ErrCanceled         = errors.New("upload canceled")
	ErrOrphanedObject   = errors.New("stored object left without a record")
)

// ValidationError reports a bad command line argument.
type ValidationError struct {
	Arg   string
	Cause string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Arg, e.Cause)
}

// IsValidation reports whether err is a pre-network rejection that is always
// safe to retry after fixing the input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrKindNotAccepted) ||
		errors.Is(err, ErrFileTooLarge)
}
