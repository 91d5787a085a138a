package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Xanaaash/MiMind-sub000/internal/api"
	"github.com/Xanaaash/MiMind-sub000/internal/auth"
	"github.com/Xanaaash/MiMind-sub000/internal/chread"
	"github.com/Xanaaash/MiMind-sub000/internal/config"
	"github.com/Xanaaash/MiMind-sub000/internal/crisis"
	"github.com/Xanaaash/MiMind-sub000/internal/review"
	"github.com/Xanaaash/MiMind-sub000/internal/server"
	"github.com/Xanaaash/MiMind-sub000/internal/storage"
	"github.com/Xanaaash/MiMind-sub000/internal/store"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// healthInterval is how often the gRPC health server pings its dependencies.
const healthInterval = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and gRPC health endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func init() {
	serveCmd.Flags().String("http-port", "8080", "HTTP listen port")
	serveCmd.Flags().String("grpc-port", "9090", "gRPC health listen port")
	_ = v.BindPFlag("http_port", serveCmd.Flags().Lookup("http-port"))
	_ = v.BindPFlag("grpc_port", serveCmd.Flags().Lookup("grpc-port"))
}

// opsStore is the ops audit log: appended by the ops alert service, read by the API.
type opsStore interface {
	crisis.EventAppender
	store.EventLister
}

func serve(cfg *config.Config) error {
	logger := mustBuildLogger(cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck // best-effort flush

	logger.Info("starting mimind safety server",
		zap.String("http_port", cfg.HTTPPort),
		zap.String("grpc_port", cfg.GRPCPort),
		zap.Bool("legal_policy_enabled", cfg.LegalPolicyEnabled),
		zap.Duration("red_hold", cfg.RedHold),
	)

	c, err := buildCore(cfg, logger)
	if err != nil {
		return err
	}

	pingers := map[string]server.Pinger{}

	// Postgres or in-memory fallback
	var (
		triageStore store.TriageStore
		ops         opsStore
		db          *sql.DB
	)
	if cfg.PostgresDSN != "" {
		db, err = openPostgres(cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		pg := store.NewStore(db, cfg.RedHold)
		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = pg.Migrate(migrateCtx)
		cancel()
		if err != nil {
			return err
		}
		triageStore, ops = pg, pg
		pingers["postgres"] = pg
		logger.Info("postgres connected")
	} else {
		mem := store.NewMemoryStore(cfg.RedHold)
		triageStore, ops = mem, mem
		logger.Warn("no postgres_dsn set, triage decisions and ops events are kept in memory")
	}

	// Storage: ClickHouse or LogWriter fallback
	var writer storage.EventWriter
	if cfg.ClickHouseDSN != "" {
		chWriter, err := storage.NewClickHouseWriter(cfg.ClickHouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer", zap.Error(err))
			writer = storage.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = storage.NewLogWriter(logger)
		logger.Info("no clickhouse_dsn set, using log writer")
	}
	defer writer.Close()

	// ClickHouse reader (for the analytics endpoint)
	var reader api.AnalyticsReader
	if cfg.ClickHouseDSN != "" {
		chReader, err := chread.NewReader(cfg.ClickHouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse reader connection failed", zap.Error(err))
		} else {
			defer func() { _ = chReader.Close() }()
			reader = chReader
			logger.Info("clickhouse reader connected")
		}
	}

	// Review queue
	var publisher crisis.Publisher
	if cfg.NATSURL != "" {
		queue, err := review.Connect(cfg.NATSURL, cfg.NATSToken, cfg.OpsSubject, logger)
		if err != nil {
			return err
		}
		defer queue.Close()
		publisher = queue
		pingers["nats"] = queue
		logger.Info("review queue connected", zap.String("subject", cfg.OpsSubject))
	} else {
		logger.Info("no nats_url set, ops alerts are recorded but not queued for review")
	}

	authenticator := buildAuthenticator(cfg, db, logger)

	deps := &api.Dependencies{
		Detector: c.detector,
		Triage:   c.triage,
		Interruption: crisis.NewInterruptionService(c.policy, c.hotlines,
			crisis.NewOpsAlertService(ops, publisher, logger), logger),
		Hotlines:           c.hotlines,
		Store:              triageStore,
		OpsEvents:          ops,
		Writer:             writer,
		Reader:             reader,
		Auth:               authenticator,
		Logger:             logger,
		LegalPolicyEnabled: cfg.LegalPolicyEnabled,
		DefaultLocale:      cfg.DefaultLocale,
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// gRPC health for orchestrator health checks
	healthServer := server.NewHealthServer(logger)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen on %s: %w", cfg.GRPCPort, err)
	}
	go func() {
		logger.Info("grpc health server listening", zap.String("addr", lis.Addr().String()))
		if err := healthServer.Serve(lis); err != nil {
			logger.Error("grpc server failed", zap.Error(err))
		}
	}()

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go healthServer.Watch(watchCtx, healthInterval, pingers)

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	// Graceful shutdown
	stopWatch()
	healthServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	logger.Info("mimind safety server stopped")
	return nil
}

func openPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// buildAuthenticator picks the service-key source: explicitly disabled, a
// single configured hash, the service_keys table, or none (dev only).
func buildAuthenticator(cfg *config.Config, db *sql.DB, logger *zap.Logger) auth.Authenticator {
	switch {
	case cfg.Auth.Disabled:
		logger.Warn("service-key auth disabled by configuration")
		return nil
	case cfg.Auth.APIKeyHash != "":
		logger.Info("service-key auth using configured key hash")
		return auth.NewKeyAuthenticator(auth.NewStaticKeyStore("configured", cfg.Auth.APIKeyHash), cfg.Auth.CacheTTL, logger)
	case db != nil:
		logger.Info("service-key auth using postgres service_keys")
		return auth.NewKeyAuthenticator(auth.NewSQLKeyStore(db), cfg.Auth.CacheTTL, logger)
	default:
		logger.Warn("no api key hash or postgres configured, service-key auth disabled")
		return nil
	}
}
