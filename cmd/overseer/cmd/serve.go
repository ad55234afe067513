package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/solatis/overseer/internal/core/api"
	"github.com/solatis/overseer/internal/core/auth"
	"github.com/solatis/overseer/internal/core/config"
	"github.com/solatis/overseer/internal/core/db"
	"github.com/solatis/overseer/internal/core/governor"
	"github.com/solatis/overseer/internal/core/metrics"
	"github.com/solatis/overseer/internal/core/ratelimit"
	"github.com/solatis/overseer/internal/core/reload"
	"github.com/solatis/overseer/internal/core/review"
	"github.com/solatis/overseer/internal/core/server"
	"github.com/solatis/overseer/internal/rules"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC governance service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50051, "gRPC server port")
	serveCmd.Flags().String("rules", "", "rule-set file (overrides rules.path)")
}

// storage bundles the database-backed collaborators. All fields are nil
// when no database is configured.
type storage struct {
	database  *sqlx.DB
	rules     *db.RuleRepository
	audit     *db.AuditStore
	approvals *db.ApprovalStore
	queries   *db.Queries
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyServeFlags(cmd, cfg); err != nil {
		return err
	}
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if store.database != nil {
		defer store.database.Close()
	}

	authenticator, err := newAuthenticator(store)
	if err != nil {
		return err
	}

	m := metrics.New()

	var persisted reload.PersistedRules
	var ruleStore api.RuleStore
	if store.rules != nil {
		persisted = store.rules
		ruleStore = store.rules
	}
	reloader := reload.NewReloader(cfg.Rules.Path, engine, persisted, m, logger)
	if err := reloader.Load(ctx); err != nil {
		return fmt.Errorf("failed to load rule set: %w", err)
	}

	limiter := ratelimit.New(cfg.RateLimit.Rate, cfg.RateLimit.Burst)
	go limiter.Run(ctx, time.Minute)

	opts := []governor.Option{
		governor.WithRateLimiter(limiter),
		governor.WithMetrics(m),
		governor.WithLogger(logger),
	}
	if store.audit != nil {
		opts = append(opts, governor.WithAuditSink(store.audit), governor.WithApprovals(store.approvals))
	}
	gov := governor.New(engine, opts...)

	service, err := api.NewService(gov, ruleStore, m, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(cfg.Server, service, authenticator, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errChan := make(chan error, 2)

	var metricsServer *server.MetricsServer
	if cfg.Metrics.Addr != "" {
		metricsServer = server.NewMetricsServer(cfg.Metrics.Addr, m.Handler(), logger)
		go func() { errChan <- metricsServer.Start() }()
	}

	if cfg.Rules.Watch {
		watcher := reload.NewWatcher(reloader, cfg.Rules.Debounce)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Error("rule set watcher stopped", "error", err)
			}
		}()
	}

	var scheduler *review.Scheduler
	if cfg.Review.Schedule != "" {
		scheduler, err = review.NewScheduler(cfg.Review.Schedule, engine, m, logger)
		if err != nil {
			return err
		}
		scheduler.RunOnce()
		if err := scheduler.Start(); err != nil {
			return err
		}
	}

	logger.Info("starting overseer", "version", Version, "host", cfg.Server.Host, "port", cfg.Server.Port)
	go func() { errChan <- grpcServer.Start(ctx) }()

	var runErr error
	select {
	case runErr = <-errChan:
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}
	if err := grpcServer.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("rules") {
		cfg.Rules.Path, _ = cmd.Flags().GetString("rules")
	}
	return config.Validate(cfg)
}

func newEngine(cfg *config.Config, logger *slog.Logger) (*rules.Engine, error) {
	version := cfg.Engine.Version
	if version == "" {
		version = Version
	}
	engine, err := rules.NewEngine(
		rules.WithEngineVersion(version),
		rules.WithStrictMode(cfg.Engine.StrictMode),
		rules.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return engine, nil
}

// openStorage connects to the configured database and refuses to start
// with unapplied migrations. Without a database URL, the service runs
// without persistence.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	if cfg.Database.URL == "" {
		logger.Warn("no database configured: rules, audit events and approval tickets are not persisted")
		return &storage{}, nil
	}

	database, err := db.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pending, err := db.Pending(ctx, database)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	if pending {
		database.Close()
		return nil, fmt.Errorf("database has unapplied migrations - run 'overseer migrate up' first")
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load queries: %w", err)
	}

	return &storage{
		database:  database,
		rules:     db.NewRuleRepository(queries),
		audit:     db.NewAuditStore(queries),
		approvals: db.NewApprovalStore(queries),
		queries:   queries,
	}, nil
}

// newAuthenticator returns nil when no HMAC secrets are configured. API
// keys live in the database, so secrets without one are an error.
func newAuthenticator(store *storage) (*auth.Authenticator, error) {
	secrets, err := config.HMACSecrets()
	if err != nil {
		return nil, fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return nil, nil
	}
	if store.queries == nil {
		return nil, fmt.Errorf("HMAC secrets are set but no database is configured for API keys")
	}
	return auth.NewAuthenticator(secrets, store.queries), nil
}
