package broadcast

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tably/tably-go/internal/domain"
	"github.com/tably/tably-go/internal/metrics"
)

// SlotPublisher mirrors seat updates onto an external channel (redis pub/sub)
// so other processes can observe them.
type SlotPublisher interface {
	PublishSeatUpdate(ctx context.Context, ev domain.SeatUpdateEvent) error
}

// SlotInvalidator drops cached availability snapshots for a slot.
type SlotInvalidator interface {
	InvalidateSlot(ctx context.Context, slot domain.Slot) error
}

const subscriberBuffer = 32

// Subscriber is one client's view of a slot's seat-update stream. Delivery is
// at-most-once best-effort: a subscriber that falls behind loses events and
// must recover by re-fetching a fresh availability snapshot.
type Subscriber struct {
	slot domain.Slot
	ch   chan domain.SeatUpdateEvent
	hub  *Hub
	once sync.Once
}

// Events yields seat updates for the subscribed slot, in store order.
func (s *Subscriber) Events() <-chan domain.SeatUpdateEvent {
	return s.ch
}

// Close detaches the subscriber and closes its channel. Safe to call twice.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
		close(s.ch)
	})
}

// Hub fans lifecycle events out to every subscriber of the matching slot. It
// is the single reader of the manager's event channel, so per-slot ordering is
// exactly the order the store produced. One hub instance exists per process,
// constructed explicitly by the app and handed to the network listener.
type Hub struct {
	mu     sync.RWMutex
	subs   map[domain.Slot]map[*Subscriber]struct{}
	pub    SlotPublisher
	cache  SlotInvalidator
	logger *slog.Logger
}

func NewHub(pub SlotPublisher, cache SlotInvalidator, logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[domain.Slot]map[*Subscriber]struct{}),
		pub:    pub,
		cache:  cache,
		logger: logger,
	}
}

// Subscribe registers interest in one slot's seat updates.
func (h *Hub) Subscribe(slot domain.Slot) *Subscriber {
	sub := &Subscriber{
		slot: slot,
		ch:   make(chan domain.SeatUpdateEvent, subscriberBuffer),
		hub:  h,
	}

	h.mu.Lock()
	set, ok := h.subs[slot]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subs[slot] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	metrics.IncSubscribers()

	return sub
}

func (h *Hub) unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	if set, ok := h.subs[sub.slot]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.slot)
		}
	}
	h.mu.Unlock()

	metrics.DecSubscribers()
}

// SubscriberCount reports live subscriptions for a slot.
func (h *Hub) SubscriberCount(slot domain.Slot) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[slot])
}

// Run consumes the lifecycle event stream until ctx is done. Delivery to a
// subscriber never blocks the stream: a full buffer means that one client
// misses the event and refreshes later. Mirroring to redis and cache
// invalidation are fire-and-forget relative to the request that triggered the
// event; failures only degrade live views, never the request path.
func (h *Hub) Run(ctx context.Context, events <-chan domain.SeatUpdateEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			h.dispatch(ctx, sanitize(ev))
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, ev domain.SeatUpdateEvent) {
	h.mu.RLock()
	for sub := range h.subs[ev.Slot] {
		select {
		case sub.ch <- ev:
		default:
			metrics.IncBroadcastDropped()
		}
	}
	h.mu.RUnlock()

	if h.cache != nil {
		if err := h.cache.InvalidateSlot(ctx, ev.Slot); err != nil {
			h.logger.Warn("availability cache invalidation failed",
				"slot", ev.Slot.String(), "error", err)
		}
	}
	if h.pub != nil {
		if err := h.pub.PublishSeatUpdate(ctx, ev); err != nil {
			h.logger.Warn("seat update mirror publish failed",
				"slot", ev.Slot.String(), "error", err)
		}
	}
}

// sanitize strips fields that are meaningless once tables are available again.
func sanitize(ev domain.SeatUpdateEvent) domain.SeatUpdateEvent {
	if ev.Status == domain.SeatAvailable {
		ev.HoldID = ""
		ev.ExpiresAt = nil
	}
	return ev
}
