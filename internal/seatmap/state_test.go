package seatmap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tably/tably-go/internal/domain"
)

var slot = domain.Slot{Date: "2024-05-01", Time: "19:00"}

func catalog() []domain.DiningTable {
	return []domain.DiningTable{
		{ID: "T1", Capacity: 2, Active: true},
		{ID: "T2", Capacity: 4, Active: true},
		{ID: "T3", Capacity: 2, Active: true},
		{ID: "T9", Capacity: 6, Active: false},
	}
}

func heldEvent(holdID string, expiresAt time.Time, tableIDs ...string) domain.SeatUpdateEvent {
	return domain.SeatUpdateEvent{
		Slot:      slot,
		TableIDs:  tableIDs,
		Status:    domain.SeatHeld,
		HoldID:    holdID,
		ExpiresAt: &expiresAt,
		Reason:    domain.ReasonHoldCreated,
	}
}

func availableEvent(reason domain.UpdateReason, tableIDs ...string) domain.SeatUpdateEvent {
	return domain.SeatUpdateEvent{
		Slot:     slot,
		TableIDs: tableIDs,
		Status:   domain.SeatAvailable,
		Reason:   reason,
	}
}

func TestInitialStatuses(t *testing.T) {
	m := New(slot, catalog(), []string{"T1", "T2"})

	assert.Equal(t, domain.TableAvailable, m.StatusOf("T1"))
	assert.Equal(t, domain.TableAvailable, m.StatusOf("T2"))
	// active but absent from the snapshot: held or reserved elsewhere
	assert.Equal(t, domain.TableUnavailable, m.StatusOf("T3"))
	// inactive
	assert.Equal(t, domain.TableUnavailable, m.StatusOf("T9"))
	// unknown id
	assert.Equal(t, domain.TableUnavailable, m.StatusOf("T42"))
}

func TestHeldEventMovesTables(t *testing.T) {
	m := New(slot, catalog(), []string{"T1", "T2"})

	m.Apply(heldEvent("h1", time.Now().Add(5*time.Minute), "T1"))

	assert.Equal(t, domain.TableHeld, m.StatusOf("T1"))
	assert.NotContains(t, m.Available(), "T1")

	info, ok := m.HeldBy("T1")
	require.True(t, ok)
	assert.Equal(t, "h1", info.HoldID)
}

func TestHeldEventEvictsTentativeSelection(t *testing.T) {
	m := New(slot, catalog(), []string{"T1", "T2"})

	require.True(t, m.Select("T1"))
	assert.Equal(t, domain.TableSelected, m.StatusOf("T1"))

	// another session grabbed the table this user had only chosen locally
	m.Apply(heldEvent("their-hold", time.Now().Add(5*time.Minute), "T1"))

	assert.Equal(t, domain.TableHeld, m.StatusOf("T1"))
	assert.Empty(t, m.Selected())
}

func TestOwnHoldKeepsSelection(t *testing.T) {
	m := New(slot, catalog(), []string{"T1", "T2"})

	require.True(t, m.Select("T1"))
	m.SetOwnHold("my-hold")

	expires := time.Now().Add(5 * time.Minute)
	m.Apply(heldEvent("my-hold", expires, "T1"))

	// own hold renders as selection, with a live countdown
	assert.Equal(t, domain.TableSelected, m.StatusOf("T1"))
	assert.Equal(t, []string{"T1"}, m.Selected())

	left, ok := m.Countdown("T1", expires.Add(-90*time.Second))
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, left)
}

func TestAvailableEventRestoresTables(t *testing.T) {
	m := New(slot, catalog(), []string{"T1", "T2"})

	m.Apply(heldEvent("h1", time.Now().Add(5*time.Minute), "T1"))
	m.Apply(availableEvent(domain.ReasonHoldReleased, "T1"))

	assert.Equal(t, domain.TableAvailable, m.StatusOf("T1"))
	_, ok := m.HeldBy("T1")
	assert.False(t, ok)
}

func TestAvailableEventNeverRevivesInactiveTable(t *testing.T) {
	m := New(slot, catalog(), []string{"T1"})

	m.Apply(availableEvent(domain.ReasonHoldExpired, "T9"))

	assert.Equal(t, domain.TableUnavailable, m.StatusOf("T9"))
}

func TestApplyIsIdempotent(t *testing.T) {
	m := New(slot, catalog(), []string{"T1", "T2"})

	ev := heldEvent("h1", time.Now().Add(5*time.Minute), "T1", "T2")
	m.Apply(ev)
	availableOnce := m.Available()

	m.Apply(ev)
	assert.Equal(t, availableOnce, m.Available())
	assert.Equal(t, domain.TableHeld, m.StatusOf("T1"))
	assert.Equal(t, domain.TableHeld, m.StatusOf("T2"))

	rel := availableEvent(domain.ReasonHoldReleased, "T1", "T2")
	m.Apply(rel)
	afterRelease := m.Available()
	m.Apply(rel)
	assert.Equal(t, afterRelease, m.Available())
}

func TestForeignSlotEventsIgnored(t *testing.T) {
	m := New(slot, catalog(), []string{"T1"})

	other := heldEvent("h1", time.Now().Add(5*time.Minute), "T1")
	other.Slot = domain.Slot{Date: "2024-05-02", Time: "19:00"}
	m.Apply(other)

	assert.Equal(t, domain.TableAvailable, m.StatusOf("T1"))
}

func TestSelectOnlyAvailableTables(t *testing.T) {
	m := New(slot, catalog(), []string{"T1"})

	assert.False(t, m.Select("T3"))
	assert.False(t, m.Select("T9"))
	assert.True(t, m.Select("T1"))

	m.Deselect("T1")
	assert.Empty(t, m.Selected())
}

func TestCountdownFloorsAtZero(t *testing.T) {
	m := New(slot, catalog(), []string{"T1"})

	expires := time.Now().Add(-time.Second)
	m.Apply(heldEvent("h1", expires, "T1"))

	left, ok := m.Countdown("T1", time.Now())
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), left)

	_, ok = m.Countdown("T2", time.Now())
	assert.False(t, ok)
}

func TestTwoClientViewsOfOneHold(t *testing.T) {
	expires := time.Now().Add(5 * time.Minute)

	// client A selects and locks T1; client B watches the same slot
	clientA := New(slot, catalog(), []string{"T1", "T2"})
	clientB := New(slot, catalog(), []string{"T1", "T2"})

	require.True(t, clientA.Select("T1"))
	clientA.SetOwnHold("hold-a")

	ev := heldEvent("hold-a", expires, "T1")
	clientA.Apply(ev)
	clientB.Apply(ev)

	assert.Equal(t, domain.TableSelected, clientA.StatusOf("T1"))
	assert.Equal(t, domain.TableHeld, clientB.StatusOf("T1"))
	assert.NotContains(t, clientB.Available(), "T1")

	_, ok := clientA.Countdown("T1", time.Now())
	assert.True(t, ok)
}
