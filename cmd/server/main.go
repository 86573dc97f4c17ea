package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"recommendation-dashboard/config"
	"recommendation-dashboard/internal/api"
	"recommendation-dashboard/internal/broker"
	"recommendation-dashboard/internal/loader"
	"recommendation-dashboard/internal/redisclient"
	"recommendation-dashboard/internal/service"
	"recommendation-dashboard/internal/store"
	"recommendation-dashboard/internal/util"
	"recommendation-dashboard/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting recommendation dashboard")

	tp, err := util.InitTracer(cfg.Server.Env, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	checks := map[string]api.ReadinessCheck{}

	var datasets service.DatasetStore
	if cfg.RedisEnabled() {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))

		datasets = service.NewRedisDatasetStore(redisClient, cfg.SessionTTL())
		checks["redis"] = redisClient.Ping
	} else {
		logger.Info("REDIS_ADDR not set, keeping session datasets in memory")
		datasets = service.NewMemoryDatasetStore(cfg.SessionTTL())
	}

	var runStore *store.Store
	if cfg.DatabaseEnabled() {
		runStore, err = store.NewStore(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer runStore.Close()

		if err := runStore.Migrate(context.Background()); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Info("Database connected")
		checks["database"] = runStore.Ping
	}

	var publisher service.AnalysisPublisher
	if cfg.KafkaEnabled() {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAnalysis)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	dashboard := service.NewDashboardService(
		datasets,
		publisher,
		loader.Options{
			SkipInvalidRows: cfg.Dashboard.SkipInvalidRows,
			MaxRows:         cfg.Dashboard.MaxRows,
			Location:        cfg.Location(),
		},
		cfg.Dashboard.DefaultThresholdDays,
	)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlerOpts := api.Options{
		MaxUploadBytes:   cfg.MaxUploadBytes(),
		SessionTTL:       cfg.SessionTTL(),
		SecureCookies:    cfg.Server.Env == "production",
		UploadRatePerSec: cfg.Dashboard.UploadRatePerSec,
		UploadRateBurst:  cfg.Dashboard.UploadRateBurst,
		Checks:           checks,
	}
	if runStore != nil {
		handlerOpts.Runs = runStore
	}
	api.NewHandler(dashboard, handlerOpts).SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if runStore != nil && cfg.KafkaEnabled() {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAnalysis, cfg.Kafka.ConsumerGroup)
		auditWorker := worker.NewAuditWorker(consumer, runStore)

		g.Go(func() error {
			err := auditWorker.Start(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-gctx.Done()
			return auditWorker.Stop()
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		return
	}
	logger.Info("Server exited")
}
