package seatmap

import (
	"sort"
	"sync"
	"time"

	"github.com/tably/tably-go/internal/domain"
)

// HoldInfo is what a client knows about someone else's hold on a table.
type HoldInfo struct {
	HoldID    string
	ExpiresAt time.Time
}

// SeatMap reconciles one connection's view of a slot: the initial availability
// snapshot, the user's own in-progress selection, and the stream of pushed
// SeatUpdateEvents. Every mutation is atomic per event, so the countdown timer
// and the event listener can share it safely. Applying the same event twice
// yields the same state as applying it once.
type SeatMap struct {
	mu sync.Mutex

	slot      domain.Slot
	ownHoldID string

	selected    map[string]struct{}
	held        map[string]HoldInfo
	available   map[string]struct{}
	unavailable map[string]struct{}
}

// New builds the initial view from the catalog and an availability snapshot.
// Active tables missing from the snapshot are shown unavailable (reserved or
// held) until an event says otherwise.
func New(slot domain.Slot, tables []domain.DiningTable, availableIDs []string) *SeatMap {
	m := &SeatMap{
		slot:        slot,
		selected:    make(map[string]struct{}),
		held:        make(map[string]HoldInfo),
		available:   make(map[string]struct{}),
		unavailable: make(map[string]struct{}),
	}

	free := make(map[string]struct{}, len(availableIDs))
	for _, id := range availableIDs {
		free[id] = struct{}{}
	}

	for _, t := range tables {
		if !t.Active {
			m.unavailable[t.ID] = struct{}{}
			continue
		}
		if _, ok := free[t.ID]; ok {
			m.available[t.ID] = struct{}{}
		} else {
			m.unavailable[t.ID] = struct{}{}
		}
	}

	return m
}

// SetOwnHold marks which hold id belongs to this client, so its own hold
// events do not evict its selection.
func (m *SeatMap) SetOwnHold(holdID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ownHoldID = holdID
}

// Apply merges one pushed event into the view. Events for another slot are
// ignored.
func (m *SeatMap) Apply(ev domain.SeatUpdateEvent) {
	if ev.Slot != m.slot {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Status {
	case domain.SeatHeld:
		info := HoldInfo{HoldID: ev.HoldID}
		if ev.ExpiresAt != nil {
			info.ExpiresAt = *ev.ExpiresAt
		}
		for _, id := range ev.TableIDs {
			delete(m.available, id)
			if ev.HoldID != m.ownHoldID {
				// another session grabbed a table this user had only
				// tentatively chosen; drop it silently
				delete(m.selected, id)
			}
			m.held[id] = info
		}
	case domain.SeatAvailable:
		for _, id := range ev.TableIDs {
			delete(m.held, id)
			if _, inactive := m.unavailable[id]; !inactive {
				m.available[id] = struct{}{}
			}
		}
	}
}

// StatusOf computes a table's display status in priority order:
// selected > held-by-other > unavailable > available.
func (m *SeatMap) StatusOf(tableID string) domain.TableStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.selected[tableID]; ok {
		return domain.TableSelected
	}
	if info, ok := m.held[tableID]; ok && info.HoldID != m.ownHoldID {
		return domain.TableHeld
	}
	if _, ok := m.held[tableID]; ok {
		// own hold still renders as the user's selection
		return domain.TableSelected
	}
	if _, ok := m.unavailable[tableID]; ok {
		return domain.TableUnavailable
	}
	if _, ok := m.available[tableID]; ok {
		return domain.TableAvailable
	}

	return domain.TableUnavailable
}

// Select adds an available table to the local selection.
func (m *SeatMap) Select(tableID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.available[tableID]; !ok {
		return false
	}
	m.selected[tableID] = struct{}{}

	return true
}

// Deselect drops a table from the local selection.
func (m *SeatMap) Deselect(tableID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.selected, tableID)
}

// Selected returns the current selection, sorted.
func (m *SeatMap) Selected() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.selected))
	for id := range m.selected {
		out = append(out, id)
	}
	sort.Strings(out)

	return out
}

// Available returns the currently free tables, sorted.
func (m *SeatMap) Available() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.available))
	for id := range m.available {
		out = append(out, id)
	}
	sort.Strings(out)

	return out
}

// HeldBy returns hold info for a held table.
func (m *SeatMap) HeldBy(tableID string) (HoldInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.held[tableID]
	return info, ok
}

// Countdown derives the remaining hold time for a held table. The display
// recomputes this on a local timer; it is not event-driven.
func (m *SeatMap) Countdown(tableID string, now time.Time) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.held[tableID]
	if !ok {
		return 0, false
	}

	left := info.ExpiresAt.Sub(now)
	if left < 0 {
		left = 0
	}

	return left, true
}
