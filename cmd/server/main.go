/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the local inventory server the presentation layer
  talks to. Handles configuration, dependency injection, and graceful
  shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, inventory.yaml, INVENTORY_* variables)
  2. Apply command-line overrides
  3. Open the SQLite store
  4. Build the relation workspace and stock engine on one change feed
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to a yaml config file (default: search ./config, /etc/inventory)
  -port    HTTP server port (overrides server.port)
  -db      SQLite database path (overrides database.path)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/bench.db"

  # Expand a lot quantity into individual lots
  INVENTORY_RELATIONS_LOT_CREATE_STRATEGY=expand_quantity ./server

SEE ALSO:
  - config/config.go: Configuration keys and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benchtrack/inventory/api"
	"github.com/benchtrack/inventory/config"
	"github.com/benchtrack/inventory/factory"
	"github.com/benchtrack/inventory/inventory"
	"github.com/benchtrack/inventory/logger"
	"github.com/benchtrack/inventory/relation"
	"github.com/benchtrack/inventory/stock"
	"github.com/benchtrack/inventory/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "Path to config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log := logger.New("inventory", config.EnvProduction, "info")
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	log := logger.New("inventory", cfg.Server.Environment, cfg.Log.Level)

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path,
		sqlite.WithBusyTimeout(cfg.Database.BusyTimeout),
		sqlite.WithBusyRetries(cfg.Database.BusyRetries),
		sqlite.WithBusyBackoff(cfg.Database.BusyBackoff),
		sqlite.WithLogger(log),
	)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to initialize database")
	}
	defer store.Close()

	// Relations and stock share one feed
	strategy, err := inventory.StrategyByName(cfg.Relations.LotCreateStrategy)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid lot create strategy")
	}
	defaults, err := factory.NewFilterFactory().ParseDefaults(cfg.Relations.DefaultFilters)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid default filters")
	}

	feed := inventory.NewFeed()
	ws, err := relation.NewWorkspace(store, feed,
		relation.WithLotStrategy(strategy),
		relation.WithDefaultFilters(defaults),
		relation.WithWorkspaceLogger(log),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build relations")
	}
	defer ws.Close()

	engine := stock.NewEngine(store, stock.WithFeed(feed), stock.WithLogger(log))
	stopWatch := engine.Subscribe(func(c inventory.Change) {
		log.Debug().Str("entity", string(c.Entity)).Str("op", string(c.Op)).Str("change_id", c.ID.String()).Msg("change committed")
	})
	defer stopWatch()

	// Create router
	handler := api.NewHandler(store, ws, engine, log)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Scenarios:      cfg.IsDevelopment(),
	})

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("db", cfg.Database.Path).
			Str("lot_strategy", strategy.Name()).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}
