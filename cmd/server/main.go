package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.uber.org/zap"

	"github.com/finvera/tradeflow/config"
	"github.com/finvera/tradeflow/pkg/bus"
	syncclient "github.com/finvera/tradeflow/pkg/client"
	"github.com/finvera/tradeflow/pkg/core"
	"github.com/finvera/tradeflow/pkg/feed"
	"github.com/finvera/tradeflow/pkg/logging"
	"github.com/finvera/tradeflow/pkg/orchestrator"
	"github.com/finvera/tradeflow/pkg/otel"
	"github.com/finvera/tradeflow/pkg/pipeline"
	"github.com/finvera/tradeflow/pkg/rest"
	"github.com/finvera/tradeflow/pkg/stage"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup logging
	logging.Setup(logging.Config{
		Level:  cfg.Server.LogLevel,
		Pretty: cfg.Server.LogFormat == "pretty",
		Output: os.Stdout,
	})
	logger := zlog.Logger
	ctx := logger.WithContext(context.Background())

	// Initialize OpenTelemetry
	cleanup, err := otel.Init(otel.Config{
		ServiceName:      "tradeflow",
		ServiceVersion:   "1.0.0",
		Endpoint:         cfg.Otel.Endpoint,
		CollectorEnabled: cfg.Otel.Enabled,
	})
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}
	defer cleanup()

	// Connect to the pub/sub substrate
	bus.SetDefaultRedisOptions(&bus.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	redisClient := bus.GetRedisClient()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis")
	}
	b := bus.NewRedisBus(redisClient)

	// Stage business rules
	limits, err := pipeline.LoadLimits()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid pipeline limits")
	}
	logger.Info().
		Int64("max_order_quantity", limits.MaxOrderQuantity).
		Float64("max_netted_amount", limits.MaxNettedAmount).
		Msg("Loaded pipeline limits")

	// Start the stage runtimes
	runtimes, err := startStages(ctx, cfg, b, limits)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to start pipeline stages")
	}
	defer stopStages(runtimes)

	// Outbound trade feed
	sender := setupFeed(ctx, cfg)
	defer sender.Close()

	// Orchestrator
	zapLogger, err := zap.NewProduction()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create store logger")
	}
	defer zapLogger.Sync()

	store := orchestrator.NewTradeStore(zapLogger)
	service := orchestrator.NewTradeService(cfg.Pipeline.TradeChannel, b, store, sender)
	if err := service.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start trade service")
	}
	defer service.Close()

	logger.Info().Str("channel", bus.Inbound(cfg.Pipeline.TradeChannel)).Msg("Trade service listening")

	// REST surface over the synchronous client
	httpServer := setupHTTPServer(ctx, cfg, b, logger)

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("Shutdown complete")
}

// startStages launches the configured number of runtime instances for each
// pipeline stage.
func startStages(ctx context.Context, cfg *config.Config, b bus.Bus, limits pipeline.Limits) ([]*stage.Runtime, error) {
	transforms := map[core.Stage]stage.Transform{
		core.StageValidation: pipeline.Validator(limits),
		core.StageExecution:  pipeline.Executor(),
		core.StageClearing:   pipeline.Clearer(limits),
		core.StageSettlement: pipeline.Settler(),
	}

	var runtimes []*stage.Runtime
	for _, st := range core.Stages {
		for i := 0; i < cfg.Pipeline.StageInstances; i++ {
			rt := stage.NewRuntime(string(st), transforms[st], b)
			if err := rt.Start(ctx); err != nil {
				stopStages(runtimes)
				return nil, fmt.Errorf("failed to start stage %s: %w", st, err)
			}
			runtimes = append(runtimes, rt)
		}
	}
	return runtimes, nil
}

func stopStages(runtimes []*stage.Runtime) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, rt := range runtimes {
		if err := rt.Stop(ctx); err != nil {
			zlog.Warn().Err(err).Msg("Stage did not stop cleanly")
		}
	}
}

// setupFeed wires the terminal-trade feed. Kafka is optional; when it is
// disabled or unreachable the feed falls back to a recording mock so the
// pipeline keeps working in development.
func setupFeed(ctx context.Context, cfg *config.Config) feed.Sender {
	logger := zerolog.Ctx(ctx)

	if !cfg.Kafka.Enabled {
		logger.Info().Msg("Kafka feed disabled, using in-memory sender")
		return feed.NewMockSender()
	}

	sender, err := feed.NewKafkaSender(cfg.Kafka.BrokerAddr, cfg.Kafka.Topic)
	if err != nil {
		logger.Warn().Err(err).Msg("Kafka unavailable, using in-memory sender")
		return feed.NewMockSender()
	}

	// The consumer is for developer purposes; it pretty prints terminal
	// trades as they land on the topic.
	consumer, err := feed.NewConsumer(cfg.Kafka.BrokerAddr, cfg.Kafka.Topic)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to start feed consumer")
	} else {
		go func() {
			defer consumer.Close()
			err := consumer.ConsumeTradeMessages(func(msg *feed.TradeMessage) error {
				logger.Info().
					Str("order_id", msg.OrderID).
					Str("status", msg.Status).
					Float64("netted_amount", msg.NettedAmount).
					Msg("Trade outcome published")
				return nil
			})
			if err != nil {
				logger.Warn().Err(err).Msg("Feed consumer stopped")
			}
		}()
	}

	return sender
}

// setupHTTPServer starts the REST API. Each request gets a short-lived
// synchronous client so handler latency is bounded by the configured
// timeout rather than by Redis connectivity.
func setupHTTPServer(ctx context.Context, cfg *config.Config, b bus.Bus, logger zerolog.Logger) *http.Server {
	timeout := time.Duration(cfg.Pipeline.SyncTimeoutSeconds) * time.Second
	factory := func(ctx context.Context) (rest.TradeClient, error) {
		return syncclient.New(ctx, cfg.Pipeline.TradeChannel, b, timeout)
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: rest.NewRouter(factory, logger),
	}

	go func() {
		logger.Info().Str("addr", cfg.Server.HTTPAddr).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to serve HTTP")
		}
	}()

	return httpServer
}
