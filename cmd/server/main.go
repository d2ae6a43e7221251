package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/openplay/roster-service/config"
	deliveryHttp "github.com/openplay/roster-service/internal/delivery/http"
	"github.com/openplay/roster-service/internal/engine"
	infraPostgres "github.com/openplay/roster-service/internal/infra/postgres"
	infraRedis "github.com/openplay/roster-service/internal/infra/redis"
	"github.com/openplay/roster-service/internal/kafka"
	"github.com/openplay/roster-service/internal/notifier"
	"github.com/openplay/roster-service/internal/pubsub"
	"github.com/openplay/roster-service/internal/realtime"
	repo "github.com/openplay/roster-service/internal/repository/postgres"
	"github.com/openplay/roster-service/internal/service"
	pkgKafka "github.com/openplay/roster-service/pkg/kafka"
	pkgLog "github.com/openplay/roster-service/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})

	pgPool, err := infraPostgres.Connect(ctx, cfg.Postgres)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to Postgres: %v", err)
	}
	defer infraPostgres.Disconnect(pgPool)

	redisCli, err := infraRedis.Connect(ctx, cfg.Redis)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
	}
	defer infraRedis.Disconnect(redisCli)

	// Kafka integration events are optional; the realtime change topics
	// on Redis are not.
	var prod kafka.Producer
	if cfg.Kafka.Enabled {
		syncProd, err := pkgKafka.NewSyncProducer(pkgKafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			RetryMax:     cfg.Kafka.ProducerRetryMax,
			RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
		})
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
		}
		prod = kafka.NewProducer(syncProd, l)
		defer prod.Close()
	}

	store := repo.NewStore(pgPool, l)
	transport := pubsub.NewRedisTransport(redisCli, l)
	notif := notifier.NewChangeNotifier(transport, l)

	eng := engine.NewAdmissionEngine(store, notif, l)
	rosterSvc := service.NewRosterService(eng, prod, l)

	viewCache := realtime.NewViewCache(transport, rosterSvc.GetRoster, realtime.ViewCacheConfig{
		Coordinator: realtime.CoordinatorConfig{
			StandardDelay: cfg.Realtime.StandardDelay,
			LiveDelay:     cfg.Realtime.LiveDelay,
			Classify:      realtime.ClassifyByPrefix(cfg.Realtime.LiveTopicPrefixes...),
		},
		Channel: realtime.ChannelConfig{
			Enabled:    true,
			RetryDelay: cfg.Realtime.RetryDelay,
		},
	}, l)
	defer viewCache.Close()

	handler := deliveryHttp.NewHTTPHandler(rosterSvc, viewCache, l)
	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      deliveryHttp.NewRouter(handler, cfg.JWT.Secret),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// gRPC health endpoint for orchestrator probes.
	healthSrv := grpc.NewServer()
	healthpb.RegisterHealthServer(healthSrv, health.NewServer())

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		l.Infof(gCtx, "HTTP server is listening on port: %d", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		lnr, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.HealthGRPCPort))
		if err != nil {
			return err
		}
		l.Infof(gCtx, "gRPC health server is listening on port: %d", cfg.Server.HealthGRPCPort)
		return healthSrv.Serve(lnr)
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-quit:
		case <-gCtx.Done():
			return gCtx.Err()
		}

		l.Info(gCtx, "Server shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			l.Errorf(gCtx, "HTTP server shutdown: %v", err)
		}
		healthSrv.GracefulStop()
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		l.Fatalf(ctx, "Server error: %v", err)
	}

	l.Info(ctx, "Server exited")
}
