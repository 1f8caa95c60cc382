// Command migrate applies the schema and, with -seed, creates the default
// staff accounts. It is safe to run repeatedly.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/geocoder89/staffauth/internal/config"
	"github.com/geocoder89/staffauth/internal/db"
	"github.com/geocoder89/staffauth/internal/observability"
	"github.com/geocoder89/staffauth/internal/repo/postgres"
	"github.com/geocoder89/staffauth/internal/security"
)

func main() {
	seed := flag.Bool("seed", false, "create one account per role when the users table is empty")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DBURL, 2)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	logger.Info("schema applied")

	if !*seed && !cfg.SeedUsers {
		return
	}

	if err := cfg.CheckSeedPassword(); err != nil {
		log.Fatalf("seed: %v", err)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	n, err := db.SeedUsers(ctx, postgres.NewUsersRepo(pool, nil), hasher.Hash, cfg.SeedPassword, logger)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	logger.Info("seed complete", "created", n)
}
