package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/tably/tably-go/internal/domain"
	redisx "github.com/tably/tably-go/internal/redis"
	postgresrepo "github.com/tably/tably-go/internal/repository/postgres"
	redisrepo "github.com/tably/tably-go/internal/repository/redis"
)

type Config struct {
	CacheTTL time.Duration
}

// Service reads the dining-table catalog through a short-lived cache. The
// catalog is read-mostly reference data owned by the external store.
type Service struct {
	store *postgresrepo.Store
	cache *redisrepo.Cache
	cfg   Config
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 60 * time.Second
	}

	return &Service{
		store: store,
		cache: cache,
		cfg:   cfg,
	}
}

// ListActive returns the active tables, cache-first.
func (s *Service) ListActive(ctx context.Context) ([]domain.DiningTable, error) {
	const op = "catalog.Service.ListActive"

	tables, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisx.KeyTableCatalog(),
		s.cfg.CacheTTL,
		func(ctx context.Context) ([]domain.DiningTable, error) {
			return s.store.Tables().ListActive(ctx)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tables, nil
}

// ActiveTables returns the active catalog keyed by table id. Satisfies the
// lifecycle manager's CatalogReader.
func (s *Service) ActiveTables(ctx context.Context) (map[string]domain.DiningTable, error) {
	tables, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.DiningTable, len(tables))
	for _, t := range tables {
		byID[t.ID] = t
	}

	return byID, nil
}

// Upsert seeds or updates catalog rows and drops the cache (admin surface).
func (s *Service) Upsert(ctx context.Context, tables []domain.DiningTable) error {
	const op = "catalog.Service.Upsert"

	for _, t := range tables {
		if t.ID == "" || t.Capacity < 1 {
			return fmt.Errorf("%s: table needs an id and capacity >= 1", op)
		}
	}

	if err := s.store.Tables().BatchUpsert(ctx, tables); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_ = s.cache.InvalidateCatalog(ctx)

	return nil
}
