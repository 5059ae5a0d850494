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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/iufc-admission-api/internal/handler"
	"github.com/noah-isme/iufc-admission-api/internal/notification"
	"github.com/noah-isme/iufc-admission-api/internal/repository"
	"github.com/noah-isme/iufc-admission-api/internal/service"
	"github.com/noah-isme/iufc-admission-api/migrations"
	"github.com/noah-isme/iufc-admission-api/pkg/broker"
	"github.com/noah-isme/iufc-admission-api/pkg/cache"
	"github.com/noah-isme/iufc-admission-api/pkg/config"
	"github.com/noah-isme/iufc-admission-api/pkg/database"
	"github.com/noah-isme/iufc-admission-api/pkg/jobs"
	"github.com/noah-isme/iufc-admission-api/pkg/logger"
	"github.com/noah-isme/iufc-admission-api/pkg/mailer"
	"github.com/noah-isme/iufc-admission-api/pkg/observability"
	"github.com/noah-isme/iufc-admission-api/pkg/storage"
)

// @title IUFC Admission API
// @version 1.0.0
// @description Continuing-education admissions, registrations and EPC hand-off
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "iufc-admission-api")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	flushSentry, err := observability.InitSentry(cfg.Sentry.DSN, cfg.Env, cfg.Sentry.Release)
	if err != nil {
		logr.Warn("sentry disabled", zap.Error(err))
	}
	defer flushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, migrations.FS); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
		logr.Info("database migrated")
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	var cacheRepo service.CacheRepository
	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis, "iufc-admission-api")
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheRepo = repository.NewCacheRepository(redisClient, "iufc", logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	store, err := newStore(ctx, cfg)
	if err != nil {
		logr.Fatal("failed to init file storage", zap.Error(err))
	}

	sender, stopMailer, err := newMailer(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to init mailer", zap.Error(err))
	}
	defer stopMailer()

	users := repository.NewUserRepository(db)
	persons := repository.NewPersonRepository(db)
	addressesRepo := repository.NewAddressRepository(db)
	trainingsRepo := repository.NewTrainingRepository(db)
	admissionsRepo := repository.NewAdmissionRepository(db)
	filesRepo := repository.NewFileRepository(db)
	prospectsRepo := repository.NewProspectRepository(db)
	revisionsRepo := repository.NewRevisionRepository(db)

	authSvc := service.NewAuthService(users, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "iufc-admission-api",
		SessionRetention:   cfg.JWT.SessionRetention,
	})
	access := service.NewAccessPolicy(trainingsRepo, persons)
	details := service.NewDetailLoader(admissionsRepo, persons, addressesRepo, trainingsRepo)
	revisions := service.NewRevisionService(db, revisionsRepo, logr)
	addressSvc := service.NewAddressService(addressesRepo, cacheSvc, validate, logr, cfg.Cache.TTL)
	notifications := service.NewNotificationService(notification.MustLoad(), sender, trainingsRepo, filesRepo, store, metrics, logr, service.NotificationConfig{
		Enabled:             cfg.Notifications.Enabled,
		FrontendURL:         cfg.Notifications.FrontendURL,
		MaxAttachmentsBytes: cfg.Notifications.MaxAttachmentsBytes,
	})
	queue := service.NewRegistrationQueueService(
		admissionsRepo,
		details,
		revisions,
		broker.NewAMQPPublisher(cfg.Broker.URL, cfg.Broker.PublishTimeout, logr),
		cacheSvc,
		metrics,
		logr,
		service.RegistrationQueueConfig{
			Queue:          cfg.Broker.PublishQueue,
			AckDedupeTTL:   cfg.Cache.AckDedupeTTL,
			RelayBatchSize: cfg.Relay.BatchSize,
			RelayGrace:     cfg.Relay.GraceTime,
		},
	)
	admissionSvc := service.NewAdmissionService(admissionsRepo, persons, trainingsRepo, details, addressSvc, revisions, access, notifications, queue, metrics, validate, logr)
	trainingSvc := service.NewTrainingService(trainingsRepo, cacheSvc, users, validate, logr, cfg.Cache.TTL)
	prospectSvc := service.NewProspectService(prospectsRepo, trainingsRepo, validate, logr)
	userSvc := service.NewUserService(users, persons, validate, logr)
	fileSvc := service.NewFileService(
		filesRepo,
		admissionsRepo,
		details,
		access,
		store,
		storage.NewSignedURLSigner(cfg.Files.SignedURLSecret, cfg.Files.SignedURLTTL),
		notifications,
		users,
		logr,
		service.FileServiceConfig{
			MaxFileSize:       cfg.Files.MaxFileSizeBytes,
			MaxFiles:          cfg.Files.MaxFilesCount,
			MaxNameLength:     cfg.Files.MaxFilenameLength,
			AllowedExtensions: cfg.Files.AllowedExtensions,
			APIPrefix:         cfg.APIPrefix,
		},
	)
	exportSvc := service.NewExportService(admissionsRepo, details, prospectsRepo, trainingsRepo, access, users, logr).WithMaxRows(cfg.Exports.MaxRows)

	checks := map[string]handler.HealthCheck{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := newRouter(cfg, logr, routes{
		auth:       handler.NewAuthHandler(authSvc),
		admissions: handler.NewAdmissionHandler(admissionSvc),
		files:      handler.NewFileHandler(fileSvc),
		trainings:  handler.NewTrainingHandler(trainingSvc),
		prospects:  handler.NewProspectHandler(prospectSvc),
		addresses:  handler.NewAddressHandler(addressSvc),
		exports:    handler.NewExportHandler(exportSvc),
		users:      handler.NewUserHandler(userSvc),
		metrics:    handler.NewMetricsHandler(metrics, checks),
		tokens:     authSvc,
		audit:      users,
		observer:   metrics,
	})

	scheduler := cron.New(cron.WithSeconds())
	if cfg.Relay.Enabled {
		if _, err := scheduler.AddFunc(cfg.Relay.Schedule, func() { runRelay(ctx, queue, logr) }); err != nil {
			logr.Fatal("invalid relay schedule", zap.String("schedule", cfg.Relay.Schedule), zap.Error(err))
		}
		logr.Info("epc relay scheduled", zap.String("schedule", cfg.Relay.Schedule))
	}
	if cfg.JWT.PurgeSchedule != "" {
		if _, err := scheduler.AddFunc(cfg.JWT.PurgeSchedule, func() { runSessionPurge(ctx, authSvc, logr) }); err != nil {
			logr.Fatal("invalid session purge schedule", zap.String("schedule", cfg.JWT.PurgeSchedule), zap.Error(err))
		}
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Files.Driver == config.StorageDriverS3 {
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
			Prefix:          "admissions",
		})
	}
	return storage.NewLocalStorage(cfg.Files.StorageDir)
}

// newMailer returns the SMTP relay behind a retrying worker queue, or a
// logging sender outside production when SMTP is not configured.
func newMailer(ctx context.Context, cfg *config.Config, logr *zap.Logger) (mailer.Sender, func(), error) {
	var next mailer.Sender
	smtp, err := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:               cfg.SMTP.Host,
		Port:               cfg.SMTP.Port,
		Username:           cfg.SMTP.Username,
		Password:           cfg.SMTP.Password,
		From:               cfg.SMTP.From,
		StartTLS:           cfg.SMTP.StartTLS,
		InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
		Timeout:            10 * time.Second,
	})
	switch {
	case err == nil:
		next = smtp
	case cfg.Env != config.EnvProduction:
		logr.Warn("smtp not configured, emails are logged only", zap.Error(err))
		next = mailer.NewLogSender(logr)
	default:
		return nil, func() {}, err
	}

	async := mailer.NewAsyncSender(next, jobs.QueueConfig{
		Workers:    cfg.SMTP.Workers,
		MaxRetries: cfg.SMTP.MaxRetries,
		RetryDelay: cfg.SMTP.RetryDelay,
		Logger:     logr.Named("mailer"),
		OnDiscard: func(job jobs.Job, err error) {
			logr.Error("mail dropped after retries", zap.String("job_id", job.ID), zap.Error(err))
			observability.CaptureErr(err, map[string]string{"component": "mailer"})
		},
	})
	async.Start(ctx)
	stop := func() {
		async.Stop()
		st := async.Stats()
		logr.Info("mailer stopped",
			zap.Int64("sent", st.Succeeded),
			zap.Int64("retried", st.Retried),
			zap.Int64("discarded", st.Discarded),
			zap.Int("dropped", st.Pending))
	}
	return async, stop, nil
}

func runRelay(ctx context.Context, queue *service.RegistrationQueueService, logr *zap.Logger) {
	republished, err := queue.Relay(ctx)
	if err != nil {
		logr.Error("epc relay failed", zap.Error(err))
		return
	}
	if republished > 0 {
		logr.Info("epc relay republished registrations", zap.Int("count", republished))
	}
}

func runSessionPurge(ctx context.Context, auth *service.AuthService, logr *zap.Logger) {
	purged, err := auth.PurgeSessions(ctx)
	if err != nil {
		logr.Error("session purge failed", zap.Error(err))
		return
	}
	logr.Info("sessions purged", zap.Int64("count", purged))
}
