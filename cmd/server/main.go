package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/ParkingTable/internal/config"
	"github.com/JonMunkholm/ParkingTable/internal/core"
	"github.com/JonMunkholm/ParkingTable/internal/ingest"
	"github.com/JonMunkholm/ParkingTable/internal/logging"
	"github.com/JonMunkholm/ParkingTable/internal/platform"
	"github.com/JonMunkholm/ParkingTable/internal/store"
	"github.com/JonMunkholm/ParkingTable/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"backend", cfg.Backend.Kind,
		"default_page_size", cfg.Table.DefaultPageSize,
		"search_quiet_period", cfg.Table.SearchQuietPeriod.String(),
		"rate_limit_enabled", cfg.Rate.Enabled,
		"mqtt_enabled", cfg.MQTT.Enabled(),
	)

	ctx := context.Background()

	var (
		backend    core.Backend
		subscriber *ingest.Subscriber
	)

	switch cfg.Backend.Kind {
	case config.BackendPlatform:
		backend = platform.New(cfg.Platform)
		slog.Info("using platform backend", "base_url", cfg.Platform.BaseURL)

	default:
		pool := connectDB(ctx, cfg)
		defer pool.Close()

		st := store.New(pool, cfg.Table.DefaultPageSize)
		if cfg.Database.EnsureSchema {
			if err := st.EnsureSchema(ctx); err != nil {
				slog.Error("failed to ensure schema", "error", err)
				os.Exit(1)
			}
		}
		backend = st

		// Live status updates are optional; the table works without them
		if cfg.MQTT.Enabled() {
			subscriber = ingest.NewSubscriber(cfg.MQTT, st, logger)
			connectCtx, cancel := context.WithTimeout(ctx, cfg.MQTT.ConnectTimeout)
			if err := subscriber.Start(connectCtx); err != nil {
				slog.Warn("mqtt ingest disabled", "error", err)
				subscriber = nil
			}
			cancel()
		}
	}

	// All sessions share one bound on backend calls in flight
	limited := core.NewLimitedBackend(backend, cfg.Backend.MaxConcurrent, cfg.Backend.MaxWait)

	sessions := core.NewSessions(func() *core.RecordTable {
		return core.NewRecordTable(limited, core.TableOptions{
			PageSize:    cfg.Table.DefaultPageSize,
			QuietPeriod: cfg.Table.SearchQuietPeriod,
			LoadTimeout: cfg.Table.LoadTimeout,
			Logger:      logger,
		})
	})

	// Create server with config
	server := web.NewServer(sessions, limited, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	go sessions.StartSweeper(jobCtx, cfg.Table.SweepInterval, cfg.Table.SessionTTL)

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Let debounced reloads and deletes already talking to the backend finish
		if active := limited.ActiveCount(); active > 0 {
			slog.Info("waiting for backend calls to complete", "active", active)
			if err := limited.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("backend calls did not complete in time", "error", err)
			}
		}

		if subscriber != nil {
			subscriber.Close()
		}

		slog.Info("closing table sessions", "active", sessions.Len())
		sessions.Close()
	}()

	// Start server (uses addr from config internally)
	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	<-shutdownDone
	slog.Info("server stopped")
}

// connectDB opens and verifies the connection pool. Exits on failure.
func connectDB(ctx context.Context, cfg *config.Config) *pgxpool.Pool {
	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	// Apply pool configuration from config
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	return pool
}
