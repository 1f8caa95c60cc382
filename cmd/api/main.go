package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/staffauth/internal/auth"
	"github.com/geocoder89/staffauth/internal/cache"
	"github.com/geocoder89/staffauth/internal/config"
	"github.com/geocoder89/staffauth/internal/db"
	httpx "github.com/geocoder89/staffauth/internal/http"
	"github.com/geocoder89/staffauth/internal/http/handlers"
	"github.com/geocoder89/staffauth/internal/observability"
	"github.com/geocoder89/staffauth/internal/repo/memory"
	"github.com/geocoder89/staffauth/internal/repo/postgres"
	"github.com/geocoder89/staffauth/internal/security"
	"github.com/geocoder89/staffauth/internal/service"
	"github.com/geocoder89/staffauth/internal/validation"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type userStore interface {
	service.UserStore
	db.Seeder
}

func main() {
	if err := run(); err != nil {
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	// Load the config set up
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := validation.Setup(cfg.PhoneRegion); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var shutdowns []func(context.Context) error

	if cfg.OTelEnabled {
		shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName: "staffauth",
			Environment: cfg.Env,
			Endpoint:    cfg.OTelEndpoint,
		})
		if err != nil {
			return err
		}
		shutdowns = append(shutdowns, shutdownTracer)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	checks := map[string]handlers.Check{}

	// storage
	var store userStore
	switch cfg.Store {
	case config.StoreMemory:
		log.Warn("using in-memory user store; data is lost on restart")
		store = memory.NewUsersRepo()
	default:
		pool, err := db.NewPool(ctx, cfg.DBURL, cfg.DBMaxConns)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}

		checks["postgres"] = pingPool(pool)
		store = postgres.NewUsersRepo(pool, prom)
	}

	hasher := security.NewHasher(cfg.BcryptCost)

	if cfg.SeedUsers {
		if _, err := db.SeedUsers(ctx, store, hasher.Hash, cfg.SeedPassword, log); err != nil {
			return fmt.Errorf("seed users: %w", err)
		}
	}

	// identity cache in front of the token subject lookup
	var cacheStore cache.Store = cache.NewMemory()
	if cfg.RedisAddr != "" {
		redisStore := cache.NewRedisStore(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisStore.Close()

		if err := redisStore.Ping(ctx); err != nil {
			log.Warn("redis unavailable, identity cache will fall through", "addr", cfg.RedisAddr, "err", err)
		}

		checks["redis"] = redisStore.Ping
		cacheStore = redisStore
	}
	identities := cache.NewUserLookup(store, cacheStore, cfg.IdentityCacheTTL, log)

	tokens := auth.NewManager(cfg.JWTSecret, auth.LoginTokenTTL)
	gate := auth.NewGate(tokens, identities)

	authService, err := service.NewAuth(store, hasher, tokens)
	if err != nil {
		return err
	}
	usersService := service.NewUsers(store, hasher, identities, log)

	health := handlers.NewHealthHandler(checks)

	// set up routers with the log
	router := httpx.NewRouter(log, cfg, httpx.Deps{
		Auth:     authService,
		Users:    usersService,
		Gate:     gate,
		Health:   health,
		Prom:     prom,
		Gatherer: reg,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	select {
	case <-ctx.Done():
		log.Info("server shutting down")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	health.Drain()

	shutdownCtx, cancel := config.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}

	for _, shutdown := range shutdowns {
		if err := shutdown(shutdownCtx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}

	log.Info("shutdown complete")
	return nil
}

func pingPool(pool *pgxpool.Pool) handlers.Check {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}
