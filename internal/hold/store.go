package hold

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tably/tably-go/internal/domain"
)

// Store is the authoritative in-memory set of active holds. A single mutex is
// the serialization point for every acquire/extend/release/sweep, which gives
// tryAcquire its linearizability: two overlapping acquires can never both
// observe an empty conflict set.
//
// Holds are ephemeral: the store does not survive a process restart.
type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	byID     map[uuid.UUID]*domain.HoldRecord
	seats    map[domain.Slot]map[string]uuid.UUID
	reserved map[domain.Slot]map[string]struct{}
}

// DefaultTTL is the fallback hold lifetime when the config supplies none.
const DefaultTTL = 5 * time.Minute

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:      ttl,
		byID:     make(map[uuid.UUID]*domain.HoldRecord),
		seats:    make(map[domain.Slot]map[string]uuid.UUID),
		reserved: make(map[domain.Slot]map[string]struct{}),
	}
}

// TTL returns the configured hold lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// TryAcquire creates a hold covering every requested table or fails with
// *ConflictError naming each table that is already held or confirmed-reserved.
// No partial hold is ever created. The reserved set is the durable
// confirmed-reservation set as read before the call; it can be stale by the
// time the lock is taken, so the store additionally checks the tables pinned
// via MarkReserved, which the finalizer updates before it releases a
// finalized hold.
func (s *Store) TryAcquire(
	slot domain.Slot,
	tableIDs []string,
	ownerID string,
	reserved map[string]struct{},
	now time.Time,
) (*domain.HoldRecord, error) {
	const op = "hold.Store.TryAcquire"

	if len(tableIDs) == 0 {
		return nil, fmt.Errorf("%s: empty table set", op)
	}

	ids := normalizeIDs(tableIDs)

	s.mu.Lock()
	defer s.mu.Unlock()

	taken := s.seats[slot]
	pinned := s.reserved[slot]

	var conflicts []string
	for _, id := range ids {
		if _, ok := reserved[id]; ok {
			conflicts = append(conflicts, id)
			continue
		}
		if _, ok := pinned[id]; ok {
			conflicts = append(conflicts, id)
			continue
		}
		hid, ok := taken[id]
		if !ok {
			continue
		}
		rec := s.byID[hid]
		if rec == nil || rec.Expired(now) {
			// expired but not yet swept; treat as free
			continue
		}
		conflicts = append(conflicts, id)
	}
	if len(conflicts) > 0 {
		return nil, &ConflictError{TableIDs: conflicts}
	}

	rec := &domain.HoldRecord{
		ID:        uuid.New(),
		Slot:      slot,
		TableIDs:  ids,
		OwnerID:   ownerID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if taken == nil {
		taken = make(map[string]uuid.UUID, len(ids))
		s.seats[slot] = taken
	}
	for _, id := range ids {
		taken[id] = rec.ID
	}
	s.byID[rec.ID] = rec

	cp := *rec
	return &cp, nil
}

// Extend pushes the hold's expiry forward. It fails with ErrNotFound once the
// hold has been released or already expired, and with ErrForbidden when the
// caller is not the hold's owner. Holds are not transferable.
func (s *Store) Extend(
	holdID uuid.UUID,
	ownerID string,
	newExpiresAt time.Time,
	now time.Time,
) (*domain.HoldRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[holdID]
	if !ok || rec.Expired(now) {
		return nil, ErrNotFound
	}
	if ownerID != "" && rec.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	if newExpiresAt.After(rec.ExpiresAt) {
		rec.ExpiresAt = newExpiresAt
	}

	cp := *rec
	return &cp, nil
}

// Release removes the hold; its tables become acquirable immediately. An empty
// ownerID skips the ownership check (internal callers such as the finalizer).
func (s *Store) Release(holdID uuid.UUID, ownerID string, now time.Time) (*domain.HoldRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[holdID]
	if !ok || rec.Expired(now) {
		return nil, ErrNotFound
	}
	if ownerID != "" && rec.OwnerID != ownerID {
		return nil, ErrForbidden
	}

	s.removeLocked(rec)

	cp := *rec
	return &cp, nil
}

// Get returns a copy of a live hold, ErrExpired when the record exists but its
// TTL has elapsed (even before the sweep runs), and ErrNotFound otherwise.
func (s *Store) Get(holdID uuid.UUID, now time.Time) (*domain.HoldRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[holdID]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Expired(now) {
		return nil, ErrExpired
	}

	cp := *rec
	return &cp, nil
}

// SweepExpired removes every hold whose TTL elapsed at or before now and
// returns the removed records for event emission.
func (s *Store) SweepExpired(now time.Time) []*domain.HoldRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*domain.HoldRecord
	for _, rec := range s.byID {
		if rec.Expired(now) {
			expired = append(expired, rec)
		}
	}
	for _, rec := range expired {
		s.removeLocked(rec)
	}

	return expired
}

// Snapshot returns the tables currently held within the slot, mapped to their
// hold ids. Expired-but-unswept holds are excluded.
func (s *Store) Snapshot(slot domain.Slot, now time.Time) map[string]uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]uuid.UUID)
	for id, hid := range s.seats[slot] {
		rec := s.byID[hid]
		if rec == nil || rec.Expired(now) {
			continue
		}
		out[id] = hid
	}

	return out
}

// MarkReserved pins tables as confirmed-reserved within the slot. The
// finalizer calls this before releasing the finalized hold, so a concurrent
// acquire that read the durable reservation set before the commit still
// conflicts here instead of grabbing a just-reserved table.
func (s *Store) MarkReserved(slot domain.Slot, tableIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.reserved[slot]
	if set == nil {
		set = make(map[string]struct{}, len(tableIDs))
		s.reserved[slot] = set
	}
	for _, id := range tableIDs {
		set[id] = struct{}{}
	}
}

// Len reports the number of active records, swept or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *Store) removeLocked(rec *domain.HoldRecord) {
	delete(s.byID, rec.ID)
	taken := s.seats[rec.Slot]
	for _, id := range rec.TableIDs {
		if taken[id] == rec.ID {
			delete(taken, id)
		}
	}
	if len(taken) == 0 {
		delete(s.seats, rec.Slot)
	}
}

func normalizeIDs(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
