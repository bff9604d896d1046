package main

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/polyrel/internal/config"
	"github.com/rpattn/polyrel/internal/db"
	"github.com/rpattn/polyrel/internal/repository"
)

// seed loads store.seedFile into the configured Postgres database. Run it
// once against an empty database; documents are inserted, never replaced.
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "seed"})

	configPath := os.Getenv("POLYREL_CONFIG_PATH")
	if configPath == "" {
		configPath = "./config"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Failed to load config", "err", err)
	}
	if cfg.Store.SeedFile == "" {
		logger.Fatal("store.seedFile is not set")
	}

	conn, err := db.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	if err := db.RunMigrations(cfg.Database, logger); err != nil {
		logger.Fatal("Failed to run migrations", "err", err)
	}

	// a failed document rolls back the whole file
	var count int
	err = conn.WithTx(ctx, func(tx pgx.Tx) error {
		count, err = repository.LoadSeed(ctx, repository.NewPostgresDocumentRepository(tx), cfg.Store.SeedFile)
		return err
	})
	if err != nil {
		logger.Fatal("Failed to seed database", "err", err)
	}
	logger.Info("Seeded database", "documents", count, "file", cfg.Store.SeedFile)
}
