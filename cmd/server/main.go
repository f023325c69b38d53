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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/hdlcheck/internal/config"
	"github.com/JonMunkholm/hdlcheck/internal/core"
	_ "github.com/JonMunkholm/hdlcheck/internal/core/profiles" // Register built-in profiles
	"github.com/JonMunkholm/hdlcheck/internal/logging"
	"github.com/JonMunkholm/hdlcheck/internal/metrics"
	"github.com/JonMunkholm/hdlcheck/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration", "config", cfg.String())

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"history_enabled", cfg.Database.Enabled(),
		"validation_max_concurrent", cfg.Validation.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	n, err := core.LoadProfiles(cfg.Validation.ProfilesFile)
	if err != nil {
		slog.Error("failed to load profiles", "file", cfg.Validation.ProfilesFile, "error", err)
		os.Exit(1)
	}
	slog.Info("profiles registered", "count", core.ProfileCount(), "from_file", n)

	ctx := context.Background()

	var store core.RunStore
	if cfg.Database.Enabled() {
		pool, err := connect(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pgStore := core.NewPgRunStore(pool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			slog.Error("failed to create history schema", "error", err)
			os.Exit(1)
		}
		store = pgStore
	} else {
		slog.Info("DATABASE_URL not set, run history disabled")
	}

	service := core.NewService(core.ServiceConfig{
		Limiter:          core.NewRunLimiter(cfg.Validation.MaxConcurrent, cfg.Validation.MaxWaitTime),
		Store:            store,
		Metrics:          metrics.New(),
		MatchThreshold:   cfg.Validation.MatchThreshold,
		PartitionPattern: cfg.Validation.PartitionPattern,
		PrimaryPartition: cfg.Validation.DefaultPartition,
	})

	server := web.NewServer(service, cfg)

	// Cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartPruneScheduler(jobCtx, core.PruneConfig{
		RetentionDays: cfg.History.RetentionDays,
		CheckInterval: cfg.History.PruneInterval,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let in-flight runs finish so their history is recorded
		status := service.Limiter().Status()
		if status.Active > 0 {
			slog.Info("waiting for validation runs to complete", "active", status.Active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("validation runs did not complete in time", "error", err)
			} else {
				slog.Info("all validation runs completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// connect opens and verifies the history database pool.
func connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
