package finalize

import (
	"errors"
	"fmt"
)

var (
	ErrHoldNotFound = errors.New("hold not found")
	// ErrHoldExpired is distinct from generic validation so the UI can say
	// "your hold timed out" instead of a vague failure.
	ErrHoldExpired = errors.New("hold expired before finalization")
)

// ValidationError carries the malformed-input message verbatim to the caller.
// The hold is left untouched so the guest can correct and resubmit.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid reservation request: %s", e.Msg)
}
