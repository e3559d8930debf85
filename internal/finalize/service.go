package finalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tably/tably-go/internal/domain"
	"github.com/tably/tably-go/internal/hold"
	"github.com/tably/tably-go/internal/metrics"
	postgresrepo "github.com/tably/tably-go/internal/repository/postgres"
	"github.com/tably/tably-go/internal/uow"
)

// HoldAccessor is the slice of the hold lifecycle the finalizer needs: read
// the hold, pin its tables as reserved, release it.
type HoldAccessor interface {
	Get(holdID uuid.UUID) (*domain.HoldRecord, error)
	MarkReserved(slot domain.Slot, tableIDs []string)
	Release(ctx context.Context, ownerID string, holdID uuid.UUID) error
}

// CapacityReader supplies the active catalog for the capacity check.
type CapacityReader interface {
	ActiveTables(ctx context.Context) (map[string]domain.DiningTable, error)
}

// Persister commits a reservation durably. The after hook runs only once the
// row is committed.
type Persister interface {
	Persist(ctx context.Context, res *domain.Reservation, after func(ctx context.Context)) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
}

// Service converts a live hold into a persisted reservation. The hold is
// released only after the reservation row is durably committed; a crash in
// between leaves the tables held until the TTL runs out, never double-booked.
type Service struct {
	persister Persister
	holds     HoldAccessor
	catalog   CapacityReader
	logger    *slog.Logger
}

func New(p Persister, holds HoldAccessor, cat CapacityReader, logger *slog.Logger) *Service {
	return &Service{
		persister: p,
		holds:     holds,
		catalog:   cat,
		logger:    logger,
	}
}

// Finalize validates guest details and party size against the hold, persists
// the reservation, then releases the hold through the normal lifecycle path.
// Before the release the hold's tables are pinned as reserved, so no acquire
// can slip in between the release and the next reservation read.
//
// Returns:
//   - ErrHoldNotFound / ErrHoldExpired: stale hold id; expiry is checked here,
//     not only at sweep time.
//   - hold.ErrForbidden: the hold belongs to another session.
//   - *ValidationError: malformed input; the hold stays intact.
func (s *Service) Finalize(
	ctx context.Context,
	ownerID string,
	holdID uuid.UUID,
	partySize int,
	guest domain.Guest,
) (*domain.Reservation, error) {
	const op = "finalize.Service.Finalize"

	rec, err := s.holds.Get(holdID)
	if err != nil {
		switch {
		case errors.Is(err, hold.ErrExpired):
			return nil, ErrHoldExpired
		case errors.Is(err, hold.ErrNotFound):
			return nil, ErrHoldNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if ownerID != "" && rec.OwnerID != ownerID {
		return nil, hold.ErrForbidden
	}

	if err := validate(guest, partySize); err != nil {
		return nil, err
	}

	capacity, err := s.combinedCapacity(ctx, rec.TableIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if capacity < partySize {
		return nil, &ValidationError{
			Msg: fmt.Sprintf("tables seat %d, party is %d", capacity, partySize),
		}
	}

	now := time.Now()
	res := &domain.Reservation{
		ID:        uuid.New(),
		UserID:    ownerID,
		Slot:      rec.Slot,
		PartySize: partySize,
		TableIDs:  rec.TableIDs,
		Status:    domain.ReservationConfirmed,
		Guest:     guest,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.persister.Persist(ctx, res, func(ctx context.Context) {
		metrics.IncReservationFinalized()
		s.holds.MarkReserved(rec.Slot, rec.TableIDs)
		if err := s.holds.Release(ctx, rec.OwnerID, holdID); err != nil {
			// the sweep will reclaim the tables at TTL
			s.logger.Warn("post-commit hold release failed",
				"hold_id", holdID, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

// Get fetches a persisted reservation.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	return s.persister.GetByID(ctx, id)
}

func (s *Service) combinedCapacity(ctx context.Context, tableIDs []string) (int, error) {
	active, err := s.catalog.ActiveTables(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, id := range tableIDs {
		t, ok := active[id]
		if !ok {
			// deactivated mid-hold; its seats no longer count
			continue
		}
		total += t.Capacity
	}

	return total, nil
}

func validate(guest domain.Guest, partySize int) error {
	if partySize < 1 {
		return &ValidationError{Msg: "party size must be at least 1"}
	}
	if guest.Name == "" {
		return &ValidationError{Msg: "guest name is required"}
	}
	if guest.Phone == "" {
		return &ValidationError{Msg: "guest phone is required"}
	}
	return nil
}

// PostgresPersister backs Persister with the reservation repository inside a
// unit-of-work transaction.
type PostgresPersister struct {
	store *postgresrepo.Store
	uow   *uow.UoW
}

func NewPostgresPersister(store *postgresrepo.Store) *PostgresPersister {
	return &PostgresPersister{
		store: store,
		uow:   uow.NewUoW(store),
	}
}

func (p *PostgresPersister) Persist(
	ctx context.Context,
	res *domain.Reservation,
	after func(ctx context.Context),
) error {
	return p.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		hook func(uow.AfterCommit),
	) error {
		if err := p.store.Reservations().With(tx).Insert(ctx, res); err != nil {
			return err
		}
		hook(uow.AfterCommit(after))
		return nil
	})
}

func (p *PostgresPersister) GetByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	return p.store.Reservations().GetByID(ctx, id)
}
