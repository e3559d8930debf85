package hold

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tably/tably-go/internal/domain"
)

var testSlot = domain.Slot{Date: "2024-05-01", Time: "19:00"}

func TestTryAcquireExclusive(t *testing.T) {
	s := NewStore(5 * time.Minute)
	now := time.Now()

	rec, err := s.TryAcquire(testSlot, []string{"T1", "T2"}, "alice", nil, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"T1", "T2"}, rec.TableIDs)
	assert.Equal(t, now.Add(5*time.Minute), rec.ExpiresAt)

	// overlapping set fails all-or-nothing, naming only the taken tables
	_, err = s.TryAcquire(testSlot, []string{"T2", "T3"}, "bob", nil, now)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"T2"}, conflict.TableIDs)

	// no partial hold was created: T3 is still free
	free, err := s.TryAcquire(testSlot, []string{"T3"}, "bob", nil, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"T3"}, free.TableIDs)
}

func TestTryAcquireConcurrentOverlap(t *testing.T) {
	s := NewStore(5 * time.Minute)
	now := time.Now()

	// two requests arrive near-simultaneously for the same single table
	const attempts = 2
	results := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.TryAcquire(testSlot, []string{"T7"}, "session", nil, now)
		}(i)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, []string{"T7"}, conflict.TableIDs)
		conflicts++
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)
}

func TestTryAcquireManyConcurrentOverlappingSets(t *testing.T) {
	s := NewStore(5 * time.Minute)
	now := time.Now()

	// every request wants T5 plus a private table; at most one can win
	sets := [][]string{
		{"T5", "A1"},
		{"A2", "T5"},
		{"T5", "A3"},
		{"A4", "T5", "A5"},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(sets))
	for i, set := range sets {
		wg.Add(1)
		go func(i int, set []string) {
			defer wg.Done()
			_, errs[i] = s.TryAcquire(testSlot, set, "session", nil, now)
		}(i, set)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		}
	}
	assert.Equal(t, 1, successes)
}

func TestTryAcquireRespectsReserved(t *testing.T) {
	s := NewStore(5 * time.Minute)
	now := time.Now()

	reserved := map[string]struct{}{"T3": {}, "T4": {}}

	_, err := s.TryAcquire(testSlot, []string{"T3", "T5"}, "alice", reserved, now)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"T3"}, conflict.TableIDs)
}

func TestTryAcquireRespectsMarkedReserved(t *testing.T) {
	s := NewStore(5 * time.Minute)
	now := time.Now()

	rec, err := s.TryAcquire(testSlot, []string{"T1"}, "alice", nil, now)
	require.NoError(t, err)

	// finalizer order: pin the tables, then release the hold
	s.MarkReserved(testSlot, rec.TableIDs)
	_, err = s.Release(rec.ID, "alice", now)
	require.NoError(t, err)

	// a caller holding a reservation read from before the commit sees an
	// empty reserved set, but the pin still blocks the acquire
	_, err = s.TryAcquire(testSlot, []string{"T1"}, "bob", nil, now)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"T1"}, conflict.TableIDs)

	// other tables and other slots stay acquirable
	_, err = s.TryAcquire(testSlot, []string{"T2"}, "bob", nil, now)
	require.NoError(t, err)
	otherSlot := domain.Slot{Date: "2024-05-02", Time: "19:00"}
	_, err = s.TryAcquire(otherSlot, []string{"T1"}, "bob", nil, now)
	require.NoError(t, err)
}

func TestTryAcquireSlotIsolation(t *testing.T) {
	s := NewStore(5 * time.Minute)
	now := time.Now()

	otherSlot := domain.Slot{Date: "2024-05-01", Time: "21:00"}

	_, err := s.TryAcquire(testSlot, []string{"T1"}, "alice", nil, now)
	require.NoError(t, err)

	// same table, different slot: no conflict
	_, err = s.TryAcquire(otherSlot, []string{"T1"}, "bob", nil, now)
	require.NoError(t, err)
}

func TestReleaseFreesTablesImmediately(t *testing.T) {
	s := NewStore(5 * time.Minute)
	now := time.Now()

	rec, err := s.TryAcquire(testSlot, []string{"T1"}, "alice", nil, now)
	require.NoError(t, err)

	released, err := s.Release(rec.ID, "alice", now)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, released.ID)

	_, err = s.TryAcquire(testSlot, []string{"T1"}, "bob", nil, now)
	require.NoError(t, err)

	_, err = s.Release(rec.ID, "alice", now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReleaseForeignHoldForbidden(t *testing.T) {
	s := NewStore(5 * time.Minute)
	now := time.Now()

	rec, err := s.TryAcquire(testSlot, []string{"T1"}, "alice", nil, now)
	require.NoError(t, err)

	_, err = s.Release(rec.ID, "mallory", now)
	assert.ErrorIs(t, err, ErrForbidden)

	// internal callers skip the ownership check
	_, err = s.Release(rec.ID, "", now)
	assert.NoError(t, err)
}

func TestExtendStrictlyIncreasesExpiry(t *testing.T) {
	s := NewStore(5 * time.Minute)
	now := time.Now()

	rec, err := s.TryAcquire(testSlot, []string{"T1"}, "alice", nil, now)
	require.NoError(t, err)

	later := now.Add(1 * time.Minute)
	ext, err := s.Extend(rec.ID, "alice", later.Add(5*time.Minute), later)
	require.NoError(t, err)
	assert.True(t, ext.ExpiresAt.After(rec.ExpiresAt))

	_, err = s.Extend(rec.ID, "mallory", later.Add(5*time.Minute), later)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestExtendExpiredOrReleasedFails(t *testing.T) {
	s := NewStore(5 * time.Minute)
	now := time.Now()

	rec, err := s.TryAcquire(testSlot, []string{"T1"}, "alice", nil, now)
	require.NoError(t, err)

	// released
	_, err = s.Release(rec.ID, "alice", now)
	require.NoError(t, err)
	_, err = s.Extend(rec.ID, "alice", now.Add(10*time.Minute), now)
	assert.ErrorIs(t, err, ErrNotFound)

	// expired but not yet swept
	rec2, err := s.TryAcquire(testSlot, []string{"T2"}, "alice", nil, now)
	require.NoError(t, err)
	after := now.Add(5*time.Minute + time.Second)
	_, err = s.Extend(rec2.ID, "alice", after.Add(5*time.Minute), after)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiredHoldIsAcquirableBeforeSweep(t *testing.T) {
	s := NewStore(5 * time.Minute)
	now := time.Now()

	old, err := s.TryAcquire(testSlot, []string{"T1"}, "alice", nil, now)
	require.NoError(t, err)

	// 301 simulated seconds later, no sweep has run yet
	after := now.Add(301 * time.Second)
	fresh, err := s.TryAcquire(testSlot, []string{"T1"}, "bob", nil, after)
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, fresh.ID)
}

func TestSweepExpired(t *testing.T) {
	s := NewStore(300 * time.Second)
	now := time.Now()

	rec, err := s.TryAcquire(testSlot, []string{"T1", "T2"}, "alice", nil, now)
	require.NoError(t, err)
	keep, err := s.TryAcquire(testSlot, []string{"T3"}, "bob", nil, now.Add(200*time.Second))
	require.NoError(t, err)

	expired := s.SweepExpired(now.Add(301 * time.Second))
	require.Len(t, expired, 1)
	assert.Equal(t, rec.ID, expired[0].ID)

	assert.Equal(t, 1, s.Len())
	_, err = s.Get(keep.ID, now.Add(301*time.Second))
	assert.NoError(t, err)

	// nothing left to sweep
	assert.Empty(t, s.SweepExpired(now.Add(301*time.Second)))
}

func TestGetDistinguishesExpiredFromMissing(t *testing.T) {
	s := NewStore(5 * time.Minute)
	now := time.Now()

	rec, err := s.TryAcquire(testSlot, []string{"T1"}, "alice", nil, now)
	require.NoError(t, err)

	_, err = s.Get(rec.ID, now.Add(time.Minute))
	require.NoError(t, err)

	// expiry is checked at read time, not only at sweep time
	_, err = s.Get(rec.ID, now.Add(6*time.Minute))
	assert.ErrorIs(t, err, ErrExpired)

	_, err = s.Get(uuid.New(), now)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotExcludesExpired(t *testing.T) {
	s := NewStore(300 * time.Second)
	now := time.Now()

	rec, err := s.TryAcquire(testSlot, []string{"T1"}, "alice", nil, now)
	require.NoError(t, err)
	_, err = s.TryAcquire(testSlot, []string{"T2"}, "bob", nil, now.Add(100*time.Second))
	require.NoError(t, err)

	snap := s.Snapshot(testSlot, now.Add(301*time.Second))
	assert.NotContains(t, snap, "T1")
	assert.Contains(t, snap, "T2")
	_ = rec
}

func TestTryAcquireDedupesTableIDs(t *testing.T) {
	s := NewStore(5 * time.Minute)
	now := time.Now()

	rec, err := s.TryAcquire(testSlot, []string{"T2", "T1", "T2"}, "alice", nil, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"T1", "T2"}, rec.TableIDs)
}

func TestTryAcquireEmptySet(t *testing.T) {
	s := NewStore(5 * time.Minute)

	_, err := s.TryAcquire(testSlot, nil, "alice", nil, time.Now())
	require.Error(t, err)
	var conflict *ConflictError
	assert.False(t, errors.As(err, &conflict))
}
