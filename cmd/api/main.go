package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prefeitura-rio/app-credentialing/internal/app"
	"github.com/prefeitura-rio/app-credentialing/internal/config"
	"github.com/prefeitura-rio/app-credentialing/internal/handlers"
	"github.com/prefeitura-rio/app-credentialing/internal/logging"
	"github.com/prefeitura-rio/app-credentialing/internal/middleware"
	"github.com/prefeitura-rio/app-credentialing/internal/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/prefeitura-rio/app-credentialing/docs"
)

// @title           Provider Credentialing API
// @version         1.0
// @description     Intake, validation, primary-source verification and committee review of healthcare providers.

// @contact.name   API Support
// @contact.email  credentialing@prefeitura.rio

// @host      localhost:8080
// @BasePath  /v1

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

// @tag.name providers
// @tag.description Provider intake and editing

// @tag.name intake
// @tag.description Roster file uploads

// @tag.name psv
// @tag.description Primary-source verification

// @tag.name committee
// @tag.description Committee review

// @tag.name dashboard
// @tag.description Dashboard projections

// @tag.name health
// @tag.description Health check operations

func main() {
	if err := logging.InitLogger(); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logging.Logger.Sync()

	if err := config.LoadConfig(); err != nil {
		logging.Logger.Fatal("failed to load config", zap.Error(err))
	}
	cfg := config.AppConfig

	observability.InitTracer("credentialing-api")
	defer observability.ShutdownTracer()

	application, err := app.Build(cfg, logging.Logger)
	if err != nil {
		logging.Logger.Fatal("failed to initialize credentialing service", zap.Error(err))
	}

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	go application.Degraded.StartMonitoring(monitorCtx)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestTiming(),
		middleware.RequestLogger(),
		middleware.RequestTracker(),
		cors.Default(),
	)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.Routes{
		Providers:    handlers.NewProviderHandlers(logging.Logger, application.Service, application.Intake),
		PSV:          handlers.NewPSVHandlers(logging.Logger, application.Service),
		Committee:    handlers.NewCommitteeHandlers(logging.Logger, application.Service),
		System:       handlers.NewSystemHandlers(logging.Logger, application.Service, application.HealthChecks),
		Auditor:      application.Audit,
		ReviewerRole: cfg.ReviewerRole,
		AdminRole:    cfg.AdminRole,
		VerifierRole: cfg.VerifierRole,
	}.Register(router)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logging.Logger.Info("starting server",
			zap.Int("port", cfg.Port),
			zap.String("environment", cfg.Environment),
			zap.String("store", cfg.StoreBackend),
			zap.String("locks", cfg.LockBackend),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Logger.Error("server forced to shutdown", zap.Error(err))
	}
	stopMonitor()
	application.Close(ctx)

	logging.Logger.Info("server exited gracefully")
}
