package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tably/tably-go/internal/availability"
	"github.com/tably/tably-go/internal/broadcast"
	"github.com/tably/tably-go/internal/catalog"
	"github.com/tably/tably-go/internal/config"
	"github.com/tably/tably-go/internal/finalize"
	"github.com/tably/tably-go/internal/hold"
	"github.com/tably/tably-go/internal/metrics"
	"github.com/tably/tably-go/internal/postgres"
	redisx "github.com/tably/tably-go/internal/redis"
	postgresrepo "github.com/tably/tably-go/internal/repository/postgres"
	redisrepo "github.com/tably/tably-go/internal/repository/redis"
	httpgin "github.com/tably/tably-go/internal/transport/http/gin"
	"golang.org/x/sync/errgroup"
)

// App owns the single-process lifecycle: one hold store, one lifecycle
// manager, one broadcast hub, all constructed here and handed to the network
// listener explicitly.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	holds      *hold.Manager
	hub        *broadcast.Hub
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	metrics.Register()

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redisx.New(context.Background(), redisx.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisx.NewSeatUpdatesPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "tably:v1:rl", 10, 1*time.Minute)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	// Services
	cat := catalog.New(store, cache, catalog.Config{})

	holdStore := hold.NewStore(cfg.Hold.TTL)
	holds := hold.NewManager(holdStore, cat, store.Reservations(), logger, hold.Config{
		SweepInterval: cfg.Hold.SweepInterval,
		BlackoutDates: cfg.Hold.BlackoutDates,
	})

	hub := broadcast.NewHub(pubsub, cache, logger)

	avail := availability.New(cat, holds, store, cache, nil, availability.Config{})
	finalizer := finalize.New(finalize.NewPostgresPersister(store), holds, cat, logger)

	router := httpgin.NewRouter(
		httpgin.Services{
			Holds:        holds,
			Availability: avail,
			Finalizer:    finalizer,
			Catalog:      cat,
			Hub:          hub,
		},
		idempotencyStore,
		limiter,
		cfg.Auth.JWTSecret,
		logger,
	)

	return &App{
		cfg:    cfg,
		logger: logger,
		holds:  holds,
		hub:    hub,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Broadcast fan-out: the only consumer of the lifecycle event stream.
	g.Go(func() error {
		if err := a.hub.Run(gCtx, a.holds.Events()); err != nil && err != context.Canceled {
			return fmt.Errorf("broadcast hub stopped: %w", err)
		}
		return nil
	})

	// Expiry sweep keeps availability accurate with no incoming requests.
	g.Go(func() error {
		if err := a.holds.RunSweeper(gCtx); err != nil && err != context.Canceled {
			return fmt.Errorf("hold sweeper stopped: %w", err)
		}
		return nil
	})

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
