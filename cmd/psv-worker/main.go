package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prefeitura-rio/app-credentialing/internal/app"
	"github.com/prefeitura-rio/app-credentialing/internal/config"
	"github.com/prefeitura-rio/app-credentialing/internal/logging"
	"github.com/prefeitura-rio/app-credentialing/internal/observability"
	"github.com/prefeitura-rio/app-credentialing/internal/services"
	"go.uber.org/zap"
)

func main() {
	if err := logging.InitLogger(); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logging.Logger.Sync()

	if err := config.LoadConfig(); err != nil {
		logging.Logger.Fatal("failed to load config", zap.Error(err))
	}
	cfg := config.AppConfig

	observability.InitTracer("credentialing-psv-worker")
	defer observability.ShutdownTracer()

	logging.Logger.Info("starting psv worker")

	application, err := app.Build(cfg, logging.Logger)
	if err != nil {
		logging.Logger.Fatal("failed to initialize credentialing service", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go application.Degraded.StartMonitoring(ctx)

	poller := services.NewPSVPoller(
		application.Service,
		application.Dispatcher,
		application.Degraded,
		cfg.PSVPollInterval,
		cfg.PSVStaleAfter,
		logging.Logger,
	)
	go poller.Start(ctx)

	<-ctx.Done()
	logging.Logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	application.Close(shutdownCtx)

	logging.Logger.Info("psv worker stopped")
}
