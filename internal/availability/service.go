package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/tably/tably-go/internal/catalog"
	"github.com/tably/tably-go/internal/domain"
	redisx "github.com/tably/tably-go/internal/redis"
	postgresrepo "github.com/tably/tably-go/internal/repository/postgres"
	redisrepo "github.com/tably/tably-go/internal/repository/redis"
)

// HoldSnapshotter exposes the tables currently held within a slot. Held state
// is always read live from the in-memory store, never cached, so a fresh hold
// is visible to the very next availability read.
type HoldSnapshotter interface {
	Snapshot(slot domain.Slot) map[string]uuid.UUID
}

type Config struct {
	ReservedCacheTTL time.Duration
}

// Service derives AvailabilityPayloads on demand: active catalog minus live
// holds minus confirmed reservations, plus ranked combo suggestions for the
// requested party size. Only the confirmed-reservation set touches postgres
// and is worth caching; the broadcaster invalidates it on every seat update.
type Service struct {
	catalog *catalog.Service
	holds   HoldSnapshotter
	store   *postgresrepo.Store
	cache   *redisrepo.Cache
	combos  ComboSuggester
	cfg     Config
}

func New(
	cat *catalog.Service,
	holds HoldSnapshotter,
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	combos ComboSuggester,
	cfg Config,
) *Service {
	if cfg.ReservedCacheTTL <= 0 {
		cfg.ReservedCacheTTL = 30 * time.Second
	}
	if combos == nil {
		combos = NewFewestTablesSuggester()
	}

	return &Service{
		catalog: cat,
		holds:   holds,
		store:   store,
		cache:   cache,
		combos:  combos,
		cfg:     cfg,
	}
}

// Snapshot computes the current availability for a slot. A partySize of zero
// skips combo suggestion.
func (s *Service) Snapshot(ctx context.Context, slot domain.Slot, partySize int) (*domain.AvailabilityPayload, error) {
	const op = "availability.Service.Snapshot"

	if err := slot.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tables, err := s.catalog.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reservedIDs, err := s.reservedForSlot(ctx, slot)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	reserved := make(map[string]struct{}, len(reservedIDs))
	for _, id := range reservedIDs {
		reserved[id] = struct{}{}
	}

	held := s.holds.Snapshot(slot)

	var free []domain.DiningTable
	for _, t := range tables {
		if _, ok := held[t.ID]; ok {
			continue
		}
		if _, ok := reserved[t.ID]; ok {
			continue
		}
		free = append(free, t)
	}

	ids := make([]string, len(free))
	for i, t := range free {
		ids[i] = t.ID
	}
	sort.Strings(ids)

	payload := &domain.AvailabilityPayload{AvailableTableIDs: ids}
	if partySize > 0 {
		payload.SuggestedCombos = s.combos.Suggest(free, partySize)
	}

	return payload, nil
}

func (s *Service) reservedForSlot(ctx context.Context, slot domain.Slot) ([]string, error) {
	return redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisx.KeySlotAvailability(slot),
		s.cfg.ReservedCacheTTL,
		func(ctx context.Context) ([]string, error) {
			return s.store.Reservations().TableIDsForSlot(ctx, slot)
		},
	)
}
