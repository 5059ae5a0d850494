// Command epc-consumer applies EPC registration acknowledgements to admissions.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/noah-isme/iufc-admission-api/internal/repository"
	"github.com/noah-isme/iufc-admission-api/internal/service"
	"github.com/noah-isme/iufc-admission-api/pkg/broker"
	"github.com/noah-isme/iufc-admission-api/pkg/cache"
	"github.com/noah-isme/iufc-admission-api/pkg/config"
	"github.com/noah-isme/iufc-admission-api/pkg/database"
	"github.com/noah-isme/iufc-admission-api/pkg/logger"
	"github.com/noah-isme/iufc-admission-api/pkg/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "iufc-epc-consumer")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	logr = logr.Named("epc-consumer")

	flushSentry, err := observability.InitSentry(cfg.Sentry.DSN, cfg.Env, cfg.Sentry.Release)
	if err != nil {
		logr.Warn("sentry disabled", zap.Error(err))
	}
	defer flushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg.Database.ApplicationName = "iufc-epc-consumer"
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()

	// Redelivered acks are deduplicated through Redis when it is reachable.
	var cacheRepo service.CacheRepository
	if redisClient, err := cache.NewRedis(ctx, cfg.Redis, "iufc-epc-consumer"); err != nil {
		logr.Warn("redis unavailable, ack deduplication disabled", zap.Error(err))
	} else {
		defer redisClient.Close() //nolint:errcheck
		cacheRepo = repository.NewCacheRepository(redisClient, "iufc", logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.AckDedupeTTL, logr, cacheRepo != nil)

	admissions := repository.NewAdmissionRepository(db)
	persons := repository.NewPersonRepository(db)
	addresses := repository.NewAddressRepository(db)
	trainings := repository.NewTrainingRepository(db)
	revisions := service.NewRevisionService(db, repository.NewRevisionRepository(db), logr)
	details := service.NewDetailLoader(admissions, persons, addresses, trainings)

	queue := service.NewRegistrationQueueService(
		admissions,
		details,
		revisions,
		broker.NewAMQPPublisher(cfg.Broker.URL, cfg.Broker.PublishTimeout, logr),
		cacheSvc,
		metrics,
		logr,
		service.RegistrationQueueConfig{
			Queue:        cfg.Broker.PublishQueue,
			AckDedupeTTL: cfg.Cache.AckDedupeTTL,
		},
	)

	consumer, err := broker.NewConsumer(broker.ConsumerConfig{
		URL:          cfg.Broker.URL,
		Queue:        cfg.Broker.AckQueue,
		DeadLetter:   cfg.Broker.DeadLetter,
		Prefetch:     cfg.Broker.Prefetch,
		RequeueDelay: cfg.Broker.RequeueDelay,
		Logger:       logr,
	})
	if err != nil {
		logr.Fatal("failed to init consumer", zap.Error(err))
	}

	logr.Info("consuming acknowledgements", zap.String("queue", cfg.Broker.AckQueue))
	if err := consumer.Run(ctx, queue.HandleAck); err != nil {
		logr.Error("consumer stopped", zap.Error(err))
	}
	logr.Info("consumer stopped")
}
