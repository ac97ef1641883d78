// Package main provides the game bot entry point.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/character-hunt/internal/analytics"
	"github.com/character-hunt/internal/api"
	"github.com/character-hunt/internal/bot"
	"github.com/character-hunt/internal/config"
	"github.com/character-hunt/internal/game"
	"github.com/character-hunt/internal/logging"
	"github.com/character-hunt/internal/retry"
	"github.com/character-hunt/internal/service"
	"github.com/character-hunt/internal/storage"
	"github.com/character-hunt/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Global().WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logging.Global().WithError(err).Fatal("Invalid configuration")
	}

	logging.Init(logging.ParseLevel(cfg.Logging.Level), logging.ParseFormat(cfg.Logging.Format))
	logger := logging.Global()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Storage connections. Retried with backoff so the bot survives starting
	// before its databases during a deploy.
	logger.Info("Connecting to databases...")
	connectCtx := context.Background()

	var postgres *storage.PostgresDB
	err = retry.WithBackoff(connectCtx, nil, logger, "connect postgres", func(ctx context.Context, attempt int) error {
		var cerr error
		postgres, cerr = storage.NewPostgresDB(&cfg.Database.Postgres)
		return cerr
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	var redisStore *storage.RedisStore
	err = retry.WithBackoff(connectCtx, nil, logger, "connect redis", func(ctx context.Context, attempt int) error {
		var cerr error
		redisStore, cerr = storage.NewRedisStore(&cfg.Database.Redis)
		return cerr
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer func() { _ = redisStore.Close() }()

	// Analytics is optional; a disabled ClickHouse degrades to a no-op sink
	var sink analytics.Sink = analytics.NoopSink{}
	var chSink *analytics.ClickHouseSink
	if cfg.Database.ClickHouse.Enabled {
		clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to ClickHouse")
		}
		defer func() { _ = clickhouse.Close() }()

		chSink = analytics.NewClickHouseSink(storage.NewEventRepository(clickhouse), 5*time.Second, logger)
		chSink.Start()
		sink = chSink
	}

	logger.Info("Database connections established")

	// Repositories
	characters := storage.NewCharacterRepository(postgres)
	chatSettings := storage.NewChatSettingsRepository(postgres, cfg.Game.SpawnThreshold)
	collections := storage.NewCollectionRepository(redisStore)
	balances := storage.NewBalanceRepository(redisStore, logger)
	codes := storage.NewCodeRepository(redisStore)
	pending := storage.NewPendingRepository(redisStore)
	boards := storage.NewLeaderboardRepository(redisStore)

	// Game core
	counter := game.NewSpawnCounter()
	selector := game.NewSelector(characters, chatSettings, cfg.Game.RecentWindow, logger)
	arbitrator := game.NewArbitrator()

	// Services
	gameService := service.NewGameService(
		counter, selector, arbitrator,
		chatSettings, collections, balances, boards,
		sink, cfg.Game.GuessReward, logger,
	)
	tradeService := service.NewTradeService(pending, collections, sink, logger)
	paymentService := service.NewPaymentService(pending, balances, sink, logger)
	redeemService := service.NewRedeemService(codes, characters, collections, balances, sink, logger)

	// Background maintenance
	sweeper := worker.NewSweeper(cfg.Game.SweepInterval, logger, tradeService.GiftCooldowns())
	if err := sweeper.Start(context.Background()); err != nil {
		logger.WithError(err).Fatal("Failed to start sweeper")
	}

	// Ops probes
	opsServer := api.NewServer(&cfg.Ops, map[string]api.Pinger{
		"postgres": postgres,
		"redis":    redisStore,
	}, logger)
	go func() {
		if err := opsServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Ops server failed")
		}
	}()

	// Telegram transport
	apiClient, err := bot.Connect(&cfg.Telegram)
	if err != nil {
		logger.WithError(err).Fatal("Failed to authorize with Telegram")
	}
	b := bot.New(&cfg.Telegram, apiClient, gameService, tradeService, paymentService,
		redeemService, characters, chatSettings, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Start(ctx)

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	b.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := sweeper.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Sweeper stop failed")
	}
	if chSink != nil {
		if err := chSink.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Analytics sink stop failed")
		}
	}
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Ops server shutdown failed")
	}

	logger.Info("Shutdown complete")
}
