/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the settlement service. Handles configuration,
  dependency wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment)
  2. Install the structured logger
  3. Initialize the SQLite store and seed the member table
  4. Create the API handler with its dependencies
  5. Start the server with graceful shutdown

CONFIGURATION:
  All config comes from the environment (loaded via .env when present):
  PORT, DB_PATH, JWT_SECRET, JWT_TTL_HOURS, LOG_LEVEL, SHARES,
  SALARY_MEMBER, DAILY_RATE, RENT, MILK_BILL, DEBT_PERCENT.
  See config/config.go for defaults.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - config/config.go: Environment parsing and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukabooks/settlement-engine/api"
	"github.com/dukabooks/settlement-engine/auth"
	"github.com/dukabooks/settlement-engine/config"
	"github.com/dukabooks/settlement-engine/logging"
	"github.com/dukabooks/settlement-engine/store/sqlite"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// The share table drives who exists; make sure each configured
	// member has a row before the first request.
	if err := store.EnsureMembers(context.Background(), cfg.Settlement.Members()); err != nil {
		slog.Error("failed to seed members", "error", err)
		os.Exit(1)
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	handler := api.NewHandler(store, tokens, cfg.Settlement)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting",
			"addr", fmt.Sprintf("http://localhost:%d", cfg.Port),
			"db", cfg.DBPath,
			"members", len(cfg.Settlement.Shares))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
