package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rs/cors"

	"github.com/rpattn/polyrel/internal/config"
	"github.com/rpattn/polyrel/internal/db"
	"github.com/rpattn/polyrel/internal/httpapi"
	"github.com/rpattn/polyrel/internal/middleware"
	"github.com/rpattn/polyrel/internal/polymorphic"
	"github.com/rpattn/polyrel/internal/repository"
	"github.com/rpattn/polyrel/internal/schema"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})

	configPath := os.Getenv("POLYREL_CONFIG_PATH")
	if configPath == "" {
		configPath = "./config"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Failed to load config", "err", err)
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warn("Unknown log level, keeping info", "level", cfg.LogLevel)
	}
	if cfg.Source != "" {
		logger.Info("Loaded config", "file", cfg.Source)
	} else {
		logger.Info("No config.yaml found, using defaults and env vars")
	}

	// Load content type schemas
	registry, err := schema.LoadRegistry(cfg.SchemaDir)
	if err != nil {
		logger.Fatal("Failed to load content types", "dir", cfg.SchemaDir, "err", err)
	}
	logger.Info("Loaded content types", "count", len(registry.ListTypes()))

	// Setup document store
	var documents repository.DocumentRepository
	switch cfg.Store.Driver {
	case config.DriverMemory:
		store := repository.NewMemoryDocuments()
		if cfg.Store.SeedFile != "" {
			count, err := repository.LoadSeed(ctx, store, cfg.Store.SeedFile)
			if err != nil {
				logger.Fatal("Failed to seed memory store", "err", err)
			}
			logger.Info("Seeded memory store", "documents", count)
		}
		documents = store
	default:
		conn, err := db.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("Failed to connect to database", "err", err)
		}
		defer conn.Close()

		if err := db.RunMigrations(cfg.Database, logger); err != nil {
			logger.Fatal("Failed to run migrations", "err", err)
		}

		documents = repository.NewPostgresDocumentRepository(conn.Pool)
	}

	svc := polymorphic.NewService(documents, registry, cfg.Polymorphic, logger)

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	router := httpapi.NewHandler(svc, registry, logger).Router(
		middleware.RequestID,
		middleware.LoggingMiddleware(logger),
		middleware.DataLoaderMiddleware(documents),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "addr", cfg.Server.Addr, "store", cfg.Store.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", "err", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", "err", err)
	}

	logger.Info("Server exited")
}
