package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	_ "github.com/lib/pq"

	"github.com/ZenRasta/Astroedge/internal/adapters/ai"
	"github.com/ZenRasta/Astroedge/internal/adapters/clickhouse"
	"github.com/ZenRasta/Astroedge/internal/adapters/config"
	"github.com/ZenRasta/Astroedge/internal/adapters/database"
	"github.com/ZenRasta/Astroedge/internal/adapters/polymarket"
	redisAdapter "github.com/ZenRasta/Astroedge/internal/adapters/redis"
	"github.com/ZenRasta/Astroedge/internal/adapters/telegram"
	"github.com/ZenRasta/Astroedge/internal/events"
	"github.com/ZenRasta/Astroedge/internal/health"
	"github.com/ZenRasta/Astroedge/internal/impactmap"
	"github.com/ZenRasta/Astroedge/internal/markets"
	"github.com/ZenRasta/Astroedge/internal/results"
	"github.com/ZenRasta/Astroedge/internal/scheduler"
	"github.com/ZenRasta/Astroedge/pkg/logger"
	"github.com/ZenRasta/Astroedge/pkg/worker"
)

func main() {
	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration and initialize logger
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("AstroEdge scanner starting...",
		zap.Duration("scan_interval", cfg.Scan.Interval),
	)

	// Initialize core infrastructure
	db, err := initDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := initRedis(cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// Initialize ClickHouse analytics sink
	chDB, err := initClickHouse(cfg)
	if err != nil {
		logger.Warn("ClickHouse not available, analytics sink disabled", zap.Error(err))
		chDB = nil
	}
	if chDB != nil {
		defer chDB.Close()
	}

	// Repositories
	marketRepo := markets.NewRepository(db)
	eventRepo := events.NewRepository(db)
	mapRepo := impactmap.NewRepository(db)
	resultRepo := results.NewRepository(db)

	// Bootstrap impact map from file if configured
	if err := bootstrapImpactMap(ctx, cfg, mapRepo); err != nil {
		return err
	}

	// External adapters
	pmClient := polymarket.NewClient(&cfg.Polymarket)
	tagger := ai.NewTagger(&cfg.AI).WithCache(
		ai.NewRedisTagCache(redisClient, 7*24*time.Hour),
	)
	notifier := initTelegram(cfg)

	var oppWriter *clickhouse.OpportunityBatchWriter
	if chDB != nil {
		chRepo := clickhouse.NewRepository(chDB.DB())
		oppWriter = clickhouse.NewOpportunityBatchWriter(chRepo, 1000, 10*time.Second)
		defer oppWriter.Close()
	}

	// Background workers
	scanLock := redisAdapter.NewScanLock(redisClient, "live", 2*cfg.Scan.Interval)

	ingestWorker := worker.NewPeriodicWorker(
		scheduler.NewIngestWorker(pmClient, tagger, marketRepo),
		cfg.Scan.Interval,
	)
	scanWorker := worker.NewPeriodicWorker(
		scheduler.NewScanWorker(
			scanLock, mapRepo, eventRepo, marketRepo, resultRepo,
			notifier, oppWriter, cfg.Scan.Params(), cfg.Scan.Workers,
		),
		cfg.Scan.Interval,
	)

	priceWorker := worker.NewPeriodicWorker(
		scheduler.NewPriceWorker(pmClient, marketRepo),
		cfg.Polymarket.PriceInterval,
	)

	ingestWorker.Start(ctx)
	scanWorker.Start(ctx)
	priceWorker.Start(ctx)

	// Optional live tick stream on top of the midpoint poll
	if cfg.Polymarket.StreamEnabled {
		stream := scheduler.NewPriceStream(pmClient, marketRepo, cfg.Polymarket.WSURL)
		go func() {
			if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("price stream stopped", zap.Error(err))
			}
		}()
	}

	// Health server
	healthServer := health.NewServer(cfg.Health.Port, db, redisClient)
	go func() {
		if err := healthServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", zap.Error(err))
		}
	}()
	healthServer.SetReady(true)

	logger.Info("AstroEdge scanner ready",
		zap.Int("health_port", cfg.Health.Port),
		zap.Bool("clickhouse", chDB != nil),
		zap.Bool("telegram", notifier != nil),
	)

	// Wait for shutdown signal
	<-ctx.Done()

	return performGracefulShutdown(healthServer, ingestWorker, scanWorker, priceWorker)
}

// initConfig loads configuration and initializes logger
func initConfig() (*config.Config, error) {
	// Optional .env for local development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, nil
}

// initDatabase initializes database connection with sqlx
func initDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	migrationsPath := "./migrations"
	if err := database.RunMigrations(db.Conn(), migrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("database connection established (sqlx)",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Name),
	)

	return db, nil
}

// initRedis initializes Redis client with Redlock support
func initRedis(cfg *config.Config) (*redisAdapter.Client, error) {
	redisClient, err := redisAdapter.New(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if err := redisClient.Health(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("redis health check failed: %w", err)
	}

	logger.Info("redis connection established (redlock)",
		zap.String("addr", cfg.Redis.Addr),
	)

	return redisClient, nil
}

// initClickHouse initializes ClickHouse connection
func initClickHouse(cfg *config.Config) (*database.DB, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, fmt.Errorf("ClickHouse disabled in config")
	}

	ch, err := database.NewClickHouse(cfg.ClickHouse.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := ch.DB().Ping(); err != nil {
		ch.Close()
		return nil, fmt.Errorf("ClickHouse ping failed: %w", err)
	}

	logger.Info("ClickHouse connection established",
		zap.String("addr", cfg.ClickHouse.Addr),
		zap.String("database", cfg.ClickHouse.Database),
	)

	return ch, nil
}

// initTelegram initializes Telegram notifier, nil when unconfigured
func initTelegram(cfg *config.Config) *telegram.Notifier {
	if !cfg.Telegram.Enabled() {
		logger.Info("telegram alerts disabled (no token or chat id)")
		return nil
	}

	notifier, err := telegram.NewNotifier(cfg.Telegram.BotToken, telegram.Config{
		ChatID:          cfg.Telegram.ChatID,
		AlertOnSignals:  cfg.Telegram.AlertOnSignals,
		AlertOnRuns:     cfg.Telegram.AlertOnRuns,
		AlertOnErrors:   cfg.Telegram.AlertOnErrors,
		MaxAlertsPerRun: cfg.Telegram.MaxAlertsPerRun,
	})
	if err != nil {
		logger.Warn("failed to initialize telegram notifier", zap.Error(err))
		return nil
	}

	return notifier
}

// bootstrapImpactMap imports and activates the impact map file when
// one is configured and the database has no active version yet.
func bootstrapImpactMap(ctx context.Context, cfg *config.Config, repo *impactmap.Repository) error {
	active, err := repo.ActiveVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to check active impact map: %w", err)
	}
	if active != nil {
		logger.Info("active impact map found",
			zap.String("version", active.ID),
		)
		return nil
	}

	if cfg.Scan.ImpactMapFile == "" {
		logger.Warn("no active impact map and no map file configured; scans will fail until one is imported")
		return nil
	}

	version, err := impactmap.LoadFile(cfg.Scan.ImpactMapFile)
	if err != nil {
		return fmt.Errorf("failed to load impact map file: %w", err)
	}

	if err := repo.SaveVersion(ctx, version); err != nil {
		return fmt.Errorf("failed to save impact map: %w", err)
	}
	if err := repo.SetActive(ctx, version.ID); err != nil {
		return fmt.Errorf("failed to activate impact map: %w", err)
	}

	logger.Info("impact map imported and activated",
		zap.String("version", version.ID),
		zap.String("file", cfg.Scan.ImpactMapFile),
		zap.Int("rules", len(version.Rules)),
	)

	return nil
}

// performGracefulShutdown handles graceful shutdown of all components
func performGracefulShutdown(healthServer *health.Server, workers ...*worker.PeriodicWorker) error {
	logger.Info("shutdown signal received, starting graceful shutdown...")

	healthServer.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer shutdownCancel()

	for _, w := range workers {
		w.Stop(10 * time.Second)
	}

	if err := healthServer.Stop(shutdownCtx); err != nil {
		logger.Error("health server stop error", zap.Error(err))
	}

	logger.Sync()
	logger.Info("shutdown completed")

	return nil
}
