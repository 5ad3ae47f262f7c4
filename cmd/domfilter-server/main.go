package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/domfilter/internal/app"
	"github.com/edgecomet/domfilter/internal/common/config"
	"github.com/edgecomet/domfilter/internal/common/configtypes"
	"github.com/edgecomet/domfilter/internal/common/logger"
	"github.com/edgecomet/domfilter/internal/common/metricsserver"
	"github.com/edgecomet/domfilter/internal/metrics"
	"github.com/edgecomet/domfilter/internal/server"
)

func main() {
	configPath := flag.String("c", "configs/domfilter.yaml", "path to configuration file")
	flag.Parse()

	// Create initial logger for startup
	initialLogger, err := logger.NewDefaultLogger(configtypes.LogOutputStdout)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	initialLogger.Info("Starting domfilter server", zap.String("config_path", *configPath))

	cfg, err := config.Load(*configPath, true, initialLogger.Logger)
	if err != nil {
		initialLogger.Fatal("Failed to load config", zap.Error(err))
	}

	// Uses INFO level during startup if configured level is higher
	dynamicLogger, err := logger.NewLoggerWithStartupOverride(cfg.Log)
	if err != nil {
		initialLogger.Fatal("Failed to create configured logger", zap.Error(err))
	}
	defer dynamicLogger.Sync()
	zapLogger := dynamicLogger.Logger

	var recorder metrics.Recorder = metrics.Nop{}
	var prom *metrics.PrometheusMetrics
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheusMetrics(cfg.Metrics.Namespace, zapLogger)
		recorder = prom
	}

	a, err := app.New(cfg, recorder, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer a.Close()

	api := server.New(cfg.Server, a.Pipeline, recorder, zapLogger)
	if err := api.Start(); err != nil {
		zapLogger.Fatal("Failed to start API server", zap.Error(err))
	}

	var metricsServer *metricsserver.Server
	if prom != nil {
		metricsServer, err = metricsserver.Start(cfg.Metrics, prom, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to start metrics server", zap.Error(err))
		}
	}

	zapLogger.Info("domfilter server started",
		zap.String("api_addr", api.Addr()),
		zap.Bool("auth", cfg.Server.AuthKey != ""),
		zap.Bool("cache", cfg.Cache.Enabled),
		zap.Bool("metrics", cfg.Metrics.Enabled))

	// Switch to configured log level after startup is complete
	dynamicLogger.SwitchToConfiguredLevel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	dynamicLogger.EnsureInfoLevelForShutdown()
	zapLogger.Info("Shutting down domfilter server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := api.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown API server gracefully", zap.Error(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("Failed to shutdown metrics server gracefully", zap.Error(err))
		}
	}

	zapLogger.Info("domfilter server stopped")
}
