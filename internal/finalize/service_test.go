package finalize

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tably/tably-go/internal/domain"
	"github.com/tably/tably-go/internal/hold"
)

var (
	testSlot  = domain.Slot{Date: "2024-05-01", Time: "19:00"}
	testGuest = domain.Guest{Name: "Ada Lovelace", Phone: "+1-555-0101"}
)

type fakeHolds struct {
	rec        *domain.HoldRecord
	getErr     error
	releaseErr error
	calls      []string
}

func (f *fakeHolds) Get(holdID uuid.UUID) (*domain.HoldRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	cp := *f.rec
	return &cp, nil
}

func (f *fakeHolds) MarkReserved(slot domain.Slot, tableIDs []string) {
	f.calls = append(f.calls, "mark")
}

func (f *fakeHolds) Release(ctx context.Context, ownerID string, holdID uuid.UUID) error {
	f.calls = append(f.calls, "release")
	return f.releaseErr
}

type fakeCatalog struct {
	tables map[string]domain.DiningTable
}

func (f *fakeCatalog) ActiveTables(ctx context.Context) (map[string]domain.DiningTable, error) {
	return f.tables, nil
}

type fakePersister struct {
	insertErr     error
	inserted      *domain.Reservation
	holds         *fakeHolds
	callsAtCommit int
}

func (f *fakePersister) Persist(
	ctx context.Context,
	res *domain.Reservation,
	after func(ctx context.Context),
) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = res
	f.callsAtCommit = len(f.holds.calls)
	after(ctx)
	return nil
}

func (f *fakePersister) GetByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	if f.inserted == nil || f.inserted.ID != id {
		return nil, ErrHoldNotFound
	}
	return f.inserted, nil
}

func newTestService(t *testing.T) (*Service, *fakeHolds, *fakePersister) {
	t.Helper()

	now := time.Now()
	holds := &fakeHolds{
		rec: &domain.HoldRecord{
			ID:        uuid.New(),
			Slot:      testSlot,
			TableIDs:  []string{"T1", "T2"},
			OwnerID:   "alice",
			CreatedAt: now,
			ExpiresAt: now.Add(5 * time.Minute),
		},
	}
	cat := &fakeCatalog{tables: map[string]domain.DiningTable{
		"T1": {ID: "T1", Capacity: 2, Active: true},
		"T2": {ID: "T2", Capacity: 4, Active: true},
	}}
	persister := &fakePersister{holds: holds}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(persister, holds, cat, logger), holds, persister
}

func TestFinalizeHappyPath(t *testing.T) {
	svc, holds, persister := newTestService(t)

	res, err := svc.Finalize(context.Background(), "alice", holds.rec.ID, 4, testGuest)
	require.NoError(t, err)

	assert.Equal(t, testSlot, res.Slot)
	assert.Equal(t, []string{"T1", "T2"}, res.TableIDs)
	assert.Equal(t, domain.ReservationConfirmed, res.Status)
	assert.Equal(t, testGuest, res.Guest)
	require.NotNil(t, persister.inserted)
	assert.Equal(t, res.ID, persister.inserted.ID)
}

func TestFinalizeReleasesOnlyAfterCommit(t *testing.T) {
	svc, holds, persister := newTestService(t)

	_, err := svc.Finalize(context.Background(), "alice", holds.rec.ID, 2, testGuest)
	require.NoError(t, err)

	// nothing touched the hold before the row was committed
	assert.Equal(t, 0, persister.callsAtCommit)
	// tables pinned as reserved before the hold is released
	assert.Equal(t, []string{"mark", "release"}, holds.calls)
}

func TestFinalizeExpiredHold(t *testing.T) {
	svc, holds, persister := newTestService(t)
	holds.getErr = hold.ErrExpired

	_, err := svc.Finalize(context.Background(), "alice", uuid.New(), 2, testGuest)
	assert.ErrorIs(t, err, ErrHoldExpired)
	assert.Nil(t, persister.inserted)
}

func TestFinalizeUnknownHold(t *testing.T) {
	svc, holds, _ := newTestService(t)
	holds.getErr = hold.ErrNotFound

	_, err := svc.Finalize(context.Background(), "alice", uuid.New(), 2, testGuest)
	assert.ErrorIs(t, err, ErrHoldNotFound)
}

func TestFinalizeForeignSession(t *testing.T) {
	svc, holds, persister := newTestService(t)

	_, err := svc.Finalize(context.Background(), "mallory", holds.rec.ID, 2, testGuest)
	assert.ErrorIs(t, err, hold.ErrForbidden)
	assert.Nil(t, persister.inserted)
}

func TestFinalizeCapacityTooSmall(t *testing.T) {
	svc, holds, persister := newTestService(t)

	// T1+T2 seat 6
	_, err := svc.Finalize(context.Background(), "alice", holds.rec.ID, 7, testGuest)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Msg, "tables seat 6")
	assert.Nil(t, persister.inserted)
	assert.Empty(t, holds.calls)
}

func TestFinalizeInsertFailureKeepsHold(t *testing.T) {
	svc, holds, persister := newTestService(t)
	persister.insertErr = errors.New("connection reset")

	_, err := svc.Finalize(context.Background(), "alice", holds.rec.ID, 2, testGuest)
	require.Error(t, err)
	assert.Empty(t, holds.calls)
}

func TestFinalizeReleaseFailureStillSucceeds(t *testing.T) {
	svc, holds, _ := newTestService(t)
	holds.releaseErr = errors.New("already swept")

	// the row is durable; a failed release just leaves the hold to the sweep
	res, err := svc.Finalize(context.Background(), "alice", holds.rec.ID, 2, testGuest)
	require.NoError(t, err)
	assert.NotNil(t, res)
}

func TestValidateGuestDetails(t *testing.T) {
	require.NoError(t, validate(testGuest, 2))

	var verr *ValidationError

	err := validate(testGuest, 0)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Msg, "party size")

	err = validate(domain.Guest{Phone: "+1-555-0101"}, 2)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Msg, "name")

	err = validate(domain.Guest{Name: "Ada Lovelace"}, 2)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Msg, "phone")
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Msg: "tables seat 4, party is 6"}
	assert.Equal(t, "invalid reservation request: tables seat 4, party is 6", err.Error())
}
