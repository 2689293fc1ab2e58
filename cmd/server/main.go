/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the shift engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Load venue rules (grace windows, thresholds)
  4. Wire services: punch, snapshots, week locks, reconciliation
  5. Start the HTTP server and the missing-punch sweeper
  6. Shut down gracefully on SIGINT/SIGTERM

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: shifts.db)
           Use ":memory:" for in-memory database
  -rules   Path to a rules JSON file (optional, defaults apply)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sweeper
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/shifts.db"

  # Run with in-memory database and strict rules
  ./server -db=":memory:" -rules=./rules/strict.json

ENVIRONMENT:
  No environment variables currently. All config via flags.
  Future: DATABASE_URL, PORT, LOG_LEVEL

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - factory/rules.go: Rules JSON schema
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/brigade/shift-engine/api"
	"github.com/brigade/shift-engine/factory"
	"github.com/brigade/shift-engine/punch"
	"github.com/brigade/shift-engine/reconcile"
	"github.com/brigade/shift-engine/snapshot"
	"github.com/brigade/shift-engine/store/sqlite"
	"github.com/brigade/shift-engine/weeklock"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "shifts.db", "SQLite database path")
	rulesPath := flag.String("rules", "", "path to rules JSON file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Load rules
	cfg := factory.DefaultConfig()
	if *rulesPath != "" {
		raw, err := os.ReadFile(*rulesPath)
		if err != nil {
			logger.Fatal("failed to read rules file", zap.Error(err))
		}
		cfg, err = factory.ParseRules(string(raw))
		if err != nil {
			logger.Fatal("invalid rules file", zap.Error(err))
		}
		logger.Info("rules loaded", zap.String("path", *rulesPath))
	}

	// Wire services
	punchSvc := punch.NewService(store, cfg.Punch, store, logger)
	chain := snapshot.NewChain(store, store, logger)
	locks := weeklock.NewCoordinator(store, store, logger)
	reconciler := reconcile.NewReconciler(store, cfg.Reconcile, store, logger)

	handler := api.NewHandler(store, punchSvc, chain, reconciler, locks, logger)
	router := api.NewRouter(handler)

	// Background missing-punch sweep
	sweeper := api.NewMissingPunchSweeper(store, punchSvc, logger)
	sweeper.Interval = cfg.SweepInterval
	sweeper.Start()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			zap.Int("port", *port),
			zap.String("db", *dbPath))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
