// cmd/bot/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/volume-bot/internal/config"
	"github.com/rovshanmuradov/volume-bot/internal/events"
	"github.com/rovshanmuradov/volume-bot/internal/executor"
	"github.com/rovshanmuradov/volume-bot/internal/logger"
	"github.com/rovshanmuradov/volume-bot/internal/pricing"
	"github.com/rovshanmuradov/volume-bot/internal/scheduler"
	"github.com/rovshanmuradov/volume-bot/internal/server"
	"github.com/rovshanmuradov/volume-bot/internal/smartprofit"
	"github.com/rovshanmuradov/volume-bot/internal/storage"
	"github.com/rovshanmuradov/volume-bot/internal/storage/postgres"
	"github.com/rovshanmuradov/volume-bot/internal/wallet"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "volume-bot: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// A missing .env is fine; the environment may be set by the host.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logConfig := logger.DefaultConfig()
	logConfig.Development = cfg.DebugLogging
	log, err := logger.New(logConfig)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	boot := log.WithOperation("startup")
	boot.Info("🚀 Starting volume bot",
		zap.String("config", configPath),
		zap.Int("rpc_endpoints", len(cfg.RPCList)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wallets, err := wallet.LoadWallets(cfg.WalletsFile)
	if err != nil {
		log.LogError("Wallet pool load failed", err, zap.String("path", cfg.WalletsFile))
		return fmt.Errorf("load wallets: %w", err)
	}
	boot.Info("Loaded wallet pool", zap.Int("wallets", len(wallets)))

	bus := events.NewBus(log.Logger, 256)

	feed := pricing.NewFeed(&pricing.FeedConfig{
		URL:         cfg.PriceFeedURL,
		MaxQuoteAge: time.Duration(cfg.MaxPriceAgeMs) * time.Millisecond,
		Logger:      log.Logger,
	})
	feed.Start()
	defer feed.Stop()

	var settingsStore smartprofit.SettingsStore
	if cfg.PostgresURL != "" {
		db, err := postgres.Open(ctx, cfg.PostgresURL, log.Logger)
		if err != nil {
			log.LogError("Postgres connection failed", err)
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer func() { _ = db.Close() }()

		if err := postgres.RunMigrations(ctx, db); err != nil {
			log.LogError("Schema migration failed", err)
			return fmt.Errorf("run migrations: %w", err)
		}

		settingsStore = postgres.NewSettingsRepository(db)
		recorder := storage.NewTradeRecorder(bus, postgres.NewTradeRepository(db), log.Logger)
		defer recorder.Close()
	} else {
		log.Warn("No postgres_url configured, trade history and settings persistence disabled")
	}

	venue := executor.NewPaperVenue(feed, log.Logger)
	exec := executor.NewSwapExecutor(&executor.SwapExecutorConfig{
		Venue:    venue,
		Logger:   log.Logger,
		MaxTries: uint(cfg.Retries),
	})

	sched := scheduler.NewScheduler(&scheduler.SchedulerConfig{
		Logger:   log.Logger,
		Executor: exec,
		EventBus: bus,
	})

	monitors := smartprofit.NewService(&smartprofit.ServiceConfig{
		Logger:       log.Logger,
		PriceSource:  feed,
		Executor:     exec,
		Store:        settingsStore,
		EventBus:     bus,
		PollInterval: time.Duration(cfg.MonitorIntervalMs) * time.Millisecond,
	})

	ops := server.New(cfg.MetricsAddr, log.Logger)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(ops.Run)
	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info("🛑 Shutting down")
		if err := sched.Shutdown(shutdownCtx); err != nil {
			log.Warn("Scheduler shutdown incomplete", zap.Error(err))
		}
		if err := monitors.Shutdown(shutdownCtx); err != nil {
			log.Warn("Monitor shutdown incomplete", zap.Error(err))
		}
		if err := bus.Shutdown(shutdownCtx); err != nil {
			log.Warn("Event bus shutdown incomplete", zap.Error(err))
		}
		return ops.Shutdown(shutdownCtx)
	})

	boot.Info("✅ Volume bot ready",
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.String("wallets_file", cfg.WalletsFile))

	return group.Wait()
}
