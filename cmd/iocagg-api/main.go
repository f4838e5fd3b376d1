package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hive-corporation/iocagg/internal/adapter/handler"
	"github.com/hive-corporation/iocagg/internal/cli"
	"github.com/hive-corporation/iocagg/internal/config"
	"github.com/hive-corporation/iocagg/internal/core/domain"
	"github.com/hive-corporation/iocagg/internal/core/service"
	"github.com/hive-corporation/iocagg/internal/logging"
	"github.com/hive-corporation/iocagg/internal/metrics"
)

func main() {
	_ = config.LoadDotEnv()

	cfg, err := config.Load(config.New(), os.Getenv("IOCAGG_CONFIG"))
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("❌ Failed to build logger: %v", err)
	}
	defer logger.Sync()

	metrics.InitMetrics()

	agg := service.NewAggregator(cli.DefaultProviders(cfg), domain.DefaultTypeTable(), cfg.FetchCap, logger)

	restHandler := handler.NewRestHandler(agg, handler.QueryDefaults{
		Sources:  cfg.Sources,
		MinScore: cfg.MinScore,
		Limit:    cfg.Limit,
	}, cfg.Server.RequestTimeout, logger)

	router := handler.NewRouter(restHandler, cfg.Server.AuthToken, logger)

	// WriteTimeout must outlast a full aggregation run
	srv := &http.Server{
		Addr:         ":" + cfg.Server.RESTPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("REST API listening", zap.String("port", cfg.Server.RESTPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped gracefully")
}
