package main

import (
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

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
	grpcHandler := handler.NewGrpcServer(agg, handler.QueryDefaults{
		Sources:  cfg.Sources,
		MinScore: cfg.MinScore,
		Limit:    cfg.Limit,
	}, logger)

	lis, err := net.Listen("tcp", cfg.Server.GRPCListenAddr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", cfg.Server.GRPCListenAddr), zap.Error(err))
	}

	s := grpc.NewServer()

	handler.RegisterAggregatorServer(s, grpcHandler)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(handler.AggregatorServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)

	reflection.Register(s)

	go func() {
		logger.Info("gRPC API listening", zap.String("addr", cfg.Server.GRPCListenAddr))
		if err := s.Serve(lis); err != nil {
			logger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	healthServer.Shutdown()
	s.GracefulStop()
}
