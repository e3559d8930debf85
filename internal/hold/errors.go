package hold

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("hold not found")
	ErrForbidden = errors.New("hold belongs to another session")
	ErrExpired   = errors.New("hold is expired")
)

// ConflictError reports the table ids that were already held or reserved when
// an acquire was attempted, so the caller can recompute a suggestion.
type ConflictError struct {
	TableIDs []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("tables already taken: %v", e.TableIDs)
}

// InvalidTableError reports requested table ids that are unknown to the active
// catalog or flagged inactive.
type InvalidTableError struct {
	TableIDs []string
}

func (e *InvalidTableError) Error() string {
	return fmt.Sprintf("unknown or inactive tables: %v", e.TableIDs)
}

// BlackoutError rejects holds for a slot that is closed for booking.
type BlackoutError struct {
	Date string
}

func (e *BlackoutError) Error() string {
	return fmt.Sprintf("slot date %s is not open for booking", e.Date)
}
