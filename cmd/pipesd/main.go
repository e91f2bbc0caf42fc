// Package main is the entry point for pipes-service, an EventBridge Pipes
// control-plane and data-plane emulator: CRUD + lifecycle control over
// pipes (CreatePipe/DescribePipe/UpdatePipe/DeletePipe/StartPipe/StopPipe)
// backed by one background worker per RUNNING pipe, polling an SQS-,
// Kinesis-, or DynamoDB-streams-shaped source and forwarding to an SQS-,
// Kinesis-, or HTTP-API-destination-shaped target.
//
// Dependencies:
//   - NATS JetStream: substrate for the emulated queue/stream sources and
//     targets
//   - Vault: connection auth material for HTTP-destination targets
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/arc-self/apps/pipes-service/internal/api"
	"github.com/arc-self/apps/pipes-service/internal/broker"
	"github.com/arc-self/apps/pipes-service/internal/natsbroker"
	"github.com/arc-self/apps/pipes-service/internal/pipes"
	"github.com/arc-self/apps/pipes-service/internal/target"
	"github.com/arc-self/apps/pipes-service/internal/worker"
	"github.com/arc-self/apps/pipes-service/pkg/config"
	"github.com/arc-self/apps/pipes-service/pkg/telemetry"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	if cfg.OTelEndpoint != "" {
		tp, err := telemetry.InitTracer(context.Background(), "pipes-service", cfg.OTelEndpoint)
		if err != nil {
			logger.Error("OTel tracer init failed", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
			logger.Info("OTel tracer initialized", zap.String("endpoint", cfg.OTelEndpoint))
		}
	}

	vaultManager, err := config.NewSecretManager(cfg.VaultAddr, cfg.VaultToken)
	if err != nil {
		logger.Fatal("Vault connection failed", zap.Error(err))
	}
	secrets, err := vaultManager.GetKV2(cfg.VaultSecretPath)
	if err != nil {
		logger.Fatal("failed to load secrets", zap.Error(err))
	}
	natsURL, _ := secrets["NATS_URL"].(string)
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	natsClient, err := natsbroker.Connect(natsURL, logger)
	if err != nil {
		logger.Fatal("NATS connection failed", zap.Error(err))
	}
	defer natsClient.Close()

	var queueBroker broker.QueueBroker = natsbroker.NewQueueBroker(natsClient, logger)
	var streamBroker broker.StreamBroker = natsbroker.NewStreamBroker(natsClient, logger)

	eventsStore := target.NewEventsStore()
	targetFactory := &target.Factory{
		Queues:       queueBroker,
		Streams:      streamBroker,
		HTTPClient:   http.DefaultClient,
		Connections:  eventsStore,
		Destinations: eventsStore,
		Secrets:      target.NewVaultSecretsClient(vaultManager),
		Log:          logger,
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	workerFactory := &worker.Factory{
		Queues:       queueBroker,
		Streams:      streamBroker,
		Targets:      targetFactory,
		Log:          logger,
		PollInterval: cfg.PollInterval,
	}
	manager := worker.NewManager(workerFactory, logger, baseCtx)

	store := pipes.NewStore()
	registry := pipes.NewRegistry(store, manager, logger)
	// Worker.run reports state transitions back through the registry; this
	// is set after registry's construction precisely because the two are
	// mutually referential (registry starts workers, workers report back to
	// the registry), and workers are only ever built lazily on first start.
	workerFactory.Reporter = registry

	handler := api.NewHandler(registry)
	server := api.NewServer(handler, logger)

	go func() {
		logger.Info("pipes-service listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failure", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("initiating graceful shutdown")

	manager.Shutdown()
	cancelBase()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown error", zap.Error(err))
	}
	logger.Info("pipes-service shut down cleanly")
}
