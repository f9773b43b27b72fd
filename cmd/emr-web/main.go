package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/emr-web/internal/config"
	"github.com/ehr/emr-web/internal/domain/analytics"
	"github.com/ehr/emr-web/internal/domain/campaign"
	"github.com/ehr/emr-web/internal/domain/chat"
	"github.com/ehr/emr-web/internal/domain/clinical"
	"github.com/ehr/emr-web/internal/domain/diagnostics"
	"github.com/ehr/emr-web/internal/domain/feedback"
	"github.com/ehr/emr-web/internal/domain/labresult"
	"github.com/ehr/emr-web/internal/domain/patient"
	"github.com/ehr/emr-web/internal/domain/report"
	"github.com/ehr/emr-web/internal/domain/scheduling"
	"github.com/ehr/emr-web/internal/domain/support"
	"github.com/ehr/emr-web/internal/domain/task"
	"github.com/ehr/emr-web/internal/platform/apiclient"
	"github.com/ehr/emr-web/internal/platform/auth"
	"github.com/ehr/emr-web/internal/platform/db"
	"github.com/ehr/emr-web/internal/platform/metrics"
	"github.com/ehr/emr-web/internal/platform/middleware"
	"github.com/ehr/emr-web/internal/platform/notification"
	"github.com/ehr/emr-web/internal/platform/screen"
	"github.com/ehr/emr-web/internal/platform/snapshot"
	"github.com/ehr/emr-web/internal/platform/view"
	"github.com/ehr/emr-web/internal/platform/websocket"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "emr-web",
		Short: "EMR web screen server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the EMR web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run snapshot database migrations",
	}

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			migrator, closePool, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closePool()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			migrator, closePool, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func openMigrator(ctx context.Context) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.SnapshotDatabaseURL == "" {
		return nil, nil, fmt.Errorf("SNAPSHOT_DATABASE_URL is required for migrations")
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.SnapshotDatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, nil, err
	}
	return db.Default(pool), pool.Close, nil
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Snapshot store: Postgres when configured, in-process otherwise.
	deps := serverDeps{snapshots: snapshot.NewMemoryStore(cfg.SnapshotMaxEntries)}
	if cfg.SnapshotDatabaseURL != "" {
		pool, err := db.NewPool(ctx, db.PoolConfig{
			URL:      cfg.SnapshotDatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to snapshot database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to snapshot database")
		deps.snapshots = snapshot.NewPGStore(pool, cfg.SnapshotMaxEntries)
		deps.dbHealth = pool
	}

	srv, err := newServer(cfg, logger, deps)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	if cfg.MountIdleTTL > 0 {
		go srv.registry.Run(ctx, sweepInterval(cfg.MountIdleTTL))
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("backend", cfg.BackendURL).Msg("starting server")
		if err := srv.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.echo.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// serverDeps are the process resources newServer does not create itself.
type serverDeps struct {
	snapshots snapshot.Store
	// dbHealth backs /health/db. Nil when no snapshot database is configured.
	dbHealth db.Pinger
}

type server struct {
	echo     *echo.Echo
	registry *view.Registry
	hub      *websocket.Hub
	notes    *notification.Manager
}

func sweepInterval(ttl time.Duration) time.Duration {
	if d := ttl / 4; d > time.Minute {
		return d
	}
	return time.Minute
}

func newServer(cfg *config.Config, logger zerolog.Logger, deps serverDeps) (*server, error) {
	api, err := apiclient.New(cfg.BackendURL, apiclient.WithTimeout(cfg.BackendTimeout))
	if err != nil {
		return nil, err
	}
	policy, err := view.ParsePolicy(cfg.LoadPolicy)
	if err != nil {
		return nil, err
	}

	hub := websocket.NewHub(logger)
	notes := notification.NewManager(hub, logger)
	registry := view.NewRegistry(cfg.MountIdleTTL, logger)

	env := screen.Env{
		Registry:    registry,
		Notifier:    notes,
		Logger:      logger,
		Policy:      policy,
		Snapshots:   deps.snapshots,
		SnapshotTTL: cfg.SnapshotTTL,
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M", "20M"))
	e.Use(auth.SessionMiddleware(auth.Config{Dev: cfg.IsDev(), Skipper: auth.Skipper}))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if deps.dbHealth != nil {
		e.GET("/health/db", db.HealthHandler(deps.dbHealth))
	}
	e.GET("/metrics", metrics.Handler())

	screens := e.Group("/screens")
	screens.Use(middleware.RateLimit(rateLimitCfg))

	legacy := cfg.LegacyPaths()
	patients := patient.NewClient(api, logger, legacy)

	patient.NewHandler(patients, env).RegisterRoutes(screens)
	scheduling.NewHandler(scheduling.NewClient(api, logger, legacy), env).RegisterRoutes(screens)
	diagnostics.NewHandler(diagnostics.NewClient(api, logger, legacy), patients, env).RegisterRoutes(screens)
	labresult.NewHandler(labresult.NewClient(api, logger, legacy), env).RegisterRoutes(screens)
	clinical.NewHandler(clinical.NewClient(api, logger, legacy), env).RegisterRoutes(screens)
	feedback.NewHandler(feedback.NewClient(api, logger, legacy), env).RegisterRoutes(screens)
	support.NewHandler(support.NewClient(api, logger, legacy), env).RegisterRoutes(screens)
	campaign.NewHandler(campaign.NewClient(api, logger), env).RegisterRoutes(screens)
	report.NewHandler(report.NewClient(api, logger, legacy), env).RegisterRoutes(screens)
	task.NewHandler(task.NewClient(api, logger), env).RegisterRoutes(screens)
	analytics.NewHandler(analytics.NewClient(api, logger), env).RegisterRoutes(screens)
	chat.NewHandler(chat.NewClient(api, logger), env).RegisterRoutes(screens)
	notification.NewHandler(notes).RegisterRoutes(screens)

	ws := e.Group("/ws")
	websocket.NewHandler(hub).RegisterRoutes(ws)
	chat.NewRelay(cfg.ChatSocketURL, logger).RegisterRoutes(ws)

	return &server{echo: e, registry: registry, hub: hub, notes: notes}, nil
}
