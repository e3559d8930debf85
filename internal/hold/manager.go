package hold

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tably/tably-go/internal/domain"
	"github.com/tably/tably-go/internal/metrics"
)

// CatalogReader supplies the active table catalog used to validate requests.
type CatalogReader interface {
	ActiveTables(ctx context.Context) (map[string]domain.DiningTable, error)
}

// ReservationReader reports tables with a confirmed reservation for a slot.
type ReservationReader interface {
	TableIDsForSlot(ctx context.Context, slot domain.Slot) ([]string, error)
}

type Config struct {
	SweepInterval time.Duration
	BlackoutDates []string
	EventBuffer   int
}

// Manager is the orchestration layer in front of the Store: it validates
// input against the catalog and the blackout list, enforces session-scoped
// ownership, and publishes exactly one SeatUpdateEvent per successful
// transition onto its event channel. The broadcaster is the channel's single
// consumer; the manager itself carries no networking concern.
type Manager struct {
	store        *Store
	catalog      CatalogReader
	reservations ReservationReader
	logger       *slog.Logger
	cfg          Config
	blackout     map[string]struct{}

	// emitMu serializes store mutation + event send so the channel carries
	// events in the order the store committed them.
	emitMu sync.Mutex
	events chan domain.SeatUpdateEvent
}

func NewManager(
	store *Store,
	catalog CatalogReader,
	reservations ReservationReader,
	logger *slog.Logger,
	cfg Config,
) *Manager {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Second
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}

	blackout := make(map[string]struct{}, len(cfg.BlackoutDates))
	for _, d := range cfg.BlackoutDates {
		blackout[d] = struct{}{}
	}

	return &Manager{
		store:        store,
		catalog:      catalog,
		reservations: reservations,
		logger:       logger,
		cfg:          cfg,
		blackout:     blackout,
		events:       make(chan domain.SeatUpdateEvent, cfg.EventBuffer),
	}
}

// Events is the lifecycle event stream consumed by the broadcaster.
func (m *Manager) Events() <-chan domain.SeatUpdateEvent {
	return m.events
}

// Create validates and acquires a hold on every requested table at once.
//
// Returns:
//   - *BlackoutError when the slot date is closed for booking.
//   - *InvalidTableError when a table id is unknown or inactive.
//   - *ConflictError naming the already-taken table ids.
func (m *Manager) Create(
	ctx context.Context,
	ownerID string,
	slot domain.Slot,
	tableIDs []string,
) (*domain.HoldRecord, error) {
	const op = "hold.Manager.Create"

	if err := slot.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, ok := m.blackout[slot.Date]; ok {
		return nil, &BlackoutError{Date: slot.Date}
	}

	active, err := m.catalog.ActiveTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var invalid []string
	for _, id := range tableIDs {
		if _, ok := active[id]; !ok {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return nil, &InvalidTableError{TableIDs: invalid}
	}

	reservedIDs, err := m.reservations.TableIDsForSlot(ctx, slot)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	reserved := make(map[string]struct{}, len(reservedIDs))
	for _, id := range reservedIDs {
		reserved[id] = struct{}{}
	}

	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	rec, err := m.store.TryAcquire(slot, tableIDs, ownerID, reserved, time.Now())
	if err != nil {
		metrics.IncHoldConflict()
		return nil, err
	}

	metrics.IncHoldCreated()
	m.emitLocked(rec, domain.SeatHeld, domain.ReasonHoldCreated)

	return rec, nil
}

// Extend pushes the hold's expiry forward by one full TTL from now. Only the
// owning session may extend.
func (m *Manager) Extend(ctx context.Context, ownerID string, holdID uuid.UUID) (*domain.HoldRecord, error) {
	now := time.Now()

	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	rec, err := m.store.Extend(holdID, ownerID, now.Add(m.store.TTL()), now)
	if err != nil {
		return nil, err
	}

	m.emitLocked(rec, domain.SeatHeld, domain.ReasonHoldExtended)

	return rec, nil
}

// Release drops the hold explicitly; its tables become acquirable at once.
func (m *Manager) Release(ctx context.Context, ownerID string, holdID uuid.UUID) error {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	rec, err := m.store.Release(holdID, ownerID, time.Now())
	if err != nil {
		return err
	}

	metrics.IncHoldReleased()
	m.emitLocked(rec, domain.SeatAvailable, domain.ReasonHoldReleased)

	return nil
}

// Get returns a live hold, checking expiry at call time rather than waiting
// for the sweep.
func (m *Manager) Get(holdID uuid.UUID) (*domain.HoldRecord, error) {
	return m.store.Get(holdID, time.Now())
}

// Snapshot returns the tables currently held within a slot.
func (m *Manager) Snapshot(slot domain.Slot) map[string]uuid.UUID {
	return m.store.Snapshot(slot, time.Now())
}

// MarkReserved pins tables as confirmed-reserved so an acquire racing a fresh
// finalization cannot win on a stale reservation read. Called by the
// finalizer before it releases the finalized hold.
func (m *Manager) MarkReserved(slot domain.Slot, tableIDs []string) {
	m.store.MarkReserved(slot, tableIDs)
}

// TTL returns the configured hold lifetime.
func (m *Manager) TTL() time.Duration { return m.store.TTL() }

// RunSweeper expires overdue holds on a fixed interval until ctx is done, so
// availability stays accurate even with no incoming requests. Expiry is an
// expected transition: logged, never escalated.
func (m *Manager) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			m.sweep(now)
		}
	}
}

func (m *Manager) sweep(now time.Time) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	for _, rec := range m.store.SweepExpired(now) {
		metrics.IncHoldExpired()
		m.logger.Info("hold expired",
			"hold_id", rec.ID,
			"slot", rec.Slot.String(),
			"tables", rec.TableIDs,
		)
		m.emitLocked(rec, domain.SeatAvailable, domain.ReasonHoldExpired)
	}
}

func (m *Manager) emitLocked(rec *domain.HoldRecord, status domain.SeatStatus, reason domain.UpdateReason) {
	ev := domain.SeatUpdateEvent{
		Slot:     rec.Slot,
		TableIDs: rec.TableIDs,
		Status:   status,
		Reason:   reason,
	}
	if status == domain.SeatHeld {
		ev.HoldID = rec.ID.String()
		expires := rec.ExpiresAt
		ev.ExpiresAt = &expires
	}

	select {
	case m.events <- ev:
	default:
		// the broadcaster has stalled; clients recover from the next snapshot
		m.logger.Warn("event channel full, dropping seat update",
			"slot", rec.Slot.String(), "reason", reason)
	}
}
