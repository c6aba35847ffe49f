/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Quartalsreport server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env, config file and environment
  2. Apply command-line flags
  3. Initialize SQLite store and budget table
  4. Create report service, API handler and retention sweeper
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config        YAML config file (default: quartalsreport.yaml if present)
  -port          HTTP server port (default: 8080)
  -db            SQLite database path (default: ./data/quartalsreport.db)
                 Use ":memory:" for in-memory database
  -budget-table  YAML/JSON budget table (default: built-in table)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sweeper
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/reports.db"

  # Run with in-memory database
  ./server -db=":memory:"

ENVIRONMENT:
  QR_PORT, QR_DB_PATH, QR_BUDGET_TABLE, QR_RUN_RETENTION, QR_SWEEP_INTERVAL,
  QR_ALLOWED_ORIGINS, QR_MAX_UPLOAD_MB, QR_LOG_LEVEL, QR_LOG_FORMAT.
  A .env file in the working directory is loaded first.

SEE ALSO:
  - config/config.go: Configuration
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Brottuetchen/Quartalsreport/api"
	"github.com/Brottuetchen/Quartalsreport/bonus"
	"github.com/Brottuetchen/Quartalsreport/config"
	"github.com/Brottuetchen/Quartalsreport/factory"
	"github.com/Brottuetchen/Quartalsreport/report"
	"github.com/Brottuetchen/Quartalsreport/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	// Flags
	configPath := flag.String("config", "", "YAML config file")
	port := flag.Int("port", 0, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	budgetTable := flag.String("budget-table", "", "YAML/JSON budget table file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *budgetTable != "" {
		cfg.BudgetTable = *budgetTable
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	// Initialize store
	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	table, err := factory.LoadBudgetTable(cfg.BudgetTable)
	if err != nil {
		return fmt.Errorf("load budget table: %w", err)
	}

	svc := report.NewService(bonus.NewEngine(table), store, logger, report.Options{
		Retention: cfg.RunRetention,
	})

	handler := api.NewHandler(svc, logger)
	handler.Health = store
	handler.MaxUploadBytes = cfg.MaxUploadBytes()

	sweeper := api.NewRetentionSweeper(svc, logger)
	sweeper.Interval = cfg.SweepInterval
	sweeper.Enabled = cfg.RunRetention > 0
	sweeper.Start()

	// Create server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.NewRouter(handler, cfg.AllowedOrigins),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       5 * time.Minute, // large uploads
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", server.Addr,
			"db", cfg.DBPath,
			"budget_table", cfg.BudgetTable,
			"retention", cfg.RunRetention.String(),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		sweeper.Stop()
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server")
	sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
