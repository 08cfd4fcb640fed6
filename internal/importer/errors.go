package importer

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when a run or item does not exist for the tenant.
var ErrNotFound = eris.New("importer: not found")

// ErrConflict is returned when an operation arrives in a run state that does
// not permit it, e.g. reviewing a run that is no longer review_ready.
var ErrConflict = eris.New("importer: conflicting run state")

// ValidationError reports a payload that failed schema validation. Callers
// surface it to the reviewer without changing any state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("importer: invalid payload: %s", e.Reason)
	}
	return fmt.Sprintf("importer: invalid payload: %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return eris.As(err, &ve)
}
