package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TableStatus is the client-facing status of a single table within a slot.
type TableStatus string

const (
	TableAvailable   TableStatus = "available"
	TableSelected    TableStatus = "selected"
	TableHeld        TableStatus = "held"
	TableUnavailable TableStatus = "unavailable"
)

// SeatStatus is the wire-level status carried by a SeatUpdateEvent.
type SeatStatus string

const (
	SeatHeld      SeatStatus = "held"
	SeatAvailable SeatStatus = "available"
)

// UpdateReason names the hold transition that produced a SeatUpdateEvent.
type UpdateReason string

const (
	ReasonHoldCreated  UpdateReason = "hold.created"
	ReasonHoldExtended UpdateReason = "hold.extended"
	ReasonHoldReleased UpdateReason = "hold.released"
	ReasonHoldExpired  UpdateReason = "hold.expired"
)

// Slot is the (date, time) partition under which table exclusivity applies.
// Date is "2006-01-02", Time is "15:04". Comparable, usable as a map key.
type Slot struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

func (s Slot) String() string {
	return s.Date + " " + s.Time
}

// Validate checks that both parts of the slot key are well-formed.
func (s Slot) Validate() error {
	if _, err := time.Parse("2006-01-02", s.Date); err != nil {
		return fmt.Errorf("invalid date %q", s.Date)
	}
	if _, err := time.Parse("15:04", s.Time); err != nil {
		return fmt.Errorf("invalid time %q", s.Time)
	}
	return nil
}

type Position struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
}

// DiningTable is catalog reference data, immutable from the hold system's
// point of view.
type DiningTable struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Capacity int      `json:"capacity"`
	Position Position `json:"position"`
	Zone     string   `json:"zone,omitempty"`
	Active   bool     `json:"active"`
}

// HoldRecord is a time-bounded exclusive claim on a set of tables within one
// slot. TableIDs is kept sorted and deduplicated.
type HoldRecord struct {
	ID        uuid.UUID `json:"hold_id"`
	Slot      Slot      `json:"slot"`
	TableIDs  []string  `json:"table_ids"`
	OwnerID   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the hold is past its TTL at the given instant.
func (h *HoldRecord) Expired(now time.Time) bool {
	return !h.ExpiresAt.After(now)
}

type Guest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
	Notes string `json:"notes,omitempty"`
}

type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Reservation is the persisted outcome of a finalized hold.
type Reservation struct {
	ID        uuid.UUID         `json:"id"`
	UserID    string            `json:"user_id"`
	Slot      Slot              `json:"slot"`
	PartySize int               `json:"party_size"`
	TableIDs  []string          `json:"table_ids"`
	Status    ReservationStatus `json:"status"`
	Guest     Guest             `json:"guest"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// AvailabilityPayload is derived on demand from live holds plus confirmed
// reservations; it is never stored.
type AvailabilityPayload struct {
	AvailableTableIDs []string   `json:"available_table_ids"`
	SuggestedCombos   [][]string `json:"suggested_combos"`
}

// SeatUpdateEvent is the sole channel through which hold-state changes become
// visible outside the lifecycle manager. For status "available" the HoldID and
// ExpiresAt fields are omitted.
type SeatUpdateEvent struct {
	Slot
	TableIDs  []string     `json:"table_ids"`
	Status    SeatStatus   `json:"status"`
	HoldID    string       `json:"hold_id,omitempty"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
	Reason    UpdateReason `json:"reason"`
}
