// cmd/onboarding-api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"crew-onboarding/internal/api"
	"crew-onboarding/internal/badge"
	awsclient "crew-onboarding/internal/common/aws"
	"crew-onboarding/internal/common/camunda"
	"crew-onboarding/internal/common/config"
	"crew-onboarding/internal/common/database"
	"crew-onboarding/internal/common/logger"
	"crew-onboarding/internal/common/observability"
	"crew-onboarding/internal/credentials"
	"crew-onboarding/internal/drafts"
	"crew-onboarding/internal/notify"
	"crew-onboarding/internal/session"
	"crew-onboarding/internal/steps"
	"crew-onboarding/internal/storage"
	"crew-onboarding/internal/store"
	"crew-onboarding/internal/store/memory"
	"crew-onboarding/internal/store/postgres"
	"crew-onboarding/internal/submission"
	"crew-onboarding/internal/tasks"
	"crew-onboarding/internal/wizard"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting onboarding API...", zap.String("environment", cfg.App.Environment))

	obs, err := observability.New("onboarding-api")
	if err != nil {
		zapLog.Fatal("metrics setup failed", zap.Error(err))
	}

	ctx := context.Background()
	var checks []api.Check

	// --- Data store ---
	var st store.Store
	switch cfg.Database.Driver {
	case config.DriverMemory:
		zapLog.Warn("using in-memory data store, submissions are lost on restart")
		st = memory.New()
	default:
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		pgStore := postgres.New(pg, log)
		if err := pgStore.Migrate(ctx); err != nil {
			zapLog.Fatal("schema migration failed", zap.Error(err))
		}
		st = pgStore
		checks = append(checks, api.Check{Name: "postgres", Ping: pg.Ping})
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Redis: sessions and transition locks ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	checks = append(checks, api.Check{Name: "redis", Ping: redis.Ping})
	zapLog.Info("Redis connected successfully")

	// --- Elasticsearch: submission index for the admin search ---
	notifyDeps := notify.Dependencies{Store: st}
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		if cfg.Notifications.Search.Enabled {
			if err := esClient.EnsureIndex(ctx, cfg.Database.Elasticsearch.Index, notify.SearchIndexMapping); err != nil {
				zapLog.Fatal("search index setup failed", zap.Error(err))
			}
		}
		notifyDeps.Indexer = esClient
		checks = append(checks, api.Check{Name: "elasticsearch", Ping: esClient.Ping})
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- AWS: SES, SNS and S3 ---
	awsCfg, err := awsclient.LoadConfig(ctx, cfg.Storage.Region, cfg.Storage.Endpoint)
	if err != nil {
		zapLog.Fatal("aws config failed", zap.Error(err))
	}
	notifyDeps.SES = awsclient.NewSESClient(awsCfg)
	notifyDeps.SNS = awsclient.NewSNSClient(awsCfg)

	publicBuckets := []string{cfg.Storage.BadgeBucket}
	var files storage.Storage
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		zapLog.Warn("using in-memory file storage, uploads are lost on restart")
		files = storage.NewMemory(publicBuckets...)
	default:
		s3Client := awsclient.NewS3Client(awsCfg, cfg.Storage.UsePathStyle)
		files = storage.NewS3Storage(s3Client, cfg.Storage.Region, cfg.Storage.PublicBaseURL, publicBuckets, log)
		bucket := cfg.Storage.DocumentsBucket
		checks = append(checks, api.Check{Name: "s3", Ping: func(ctx context.Context) error {
			_, err := s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &bucket})
			return err
		}})
	}

	// --- Zeebe: only needed when notifications go through the workflow engine ---
	if cfg.Notifications.Mode == config.NotificationModeWorkflow || cfg.Camunda.Enabled {
		var zc *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zc, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zc.Close()
		notifyDeps.Publisher = zc
		checks = append(checks, api.Check{Name: "zeebe", Ping: zc.HealthCheck})
		zapLog.Info("Zeebe client connected successfully")
	}

	// --- Domain services ---
	notifier, err := notify.New(cfg, notifyDeps, log)
	if err != nil {
		zapLog.Fatal("notifier setup failed", zap.Error(err))
	}

	registry := steps.Default()
	creds, err := credentials.NewService(credentials.LoadConfig(cfg), st, log)
	if err != nil {
		zapLog.Fatal("credential service setup failed", zap.Error(err))
	}
	finalizer := submission.NewFinalizer(submission.LoadConfig(cfg), st, registry, creds, notifier, log).
		WithObservability(obs)

	sessions, err := session.NewStore(session.LoadConfig(cfg), redis, log)
	if err != nil {
		zapLog.Fatal("session store setup failed", zap.Error(err))
	}

	server := api.NewServer(api.Dependencies{
		Sessions: sessions,
		Wizard: wizard.Dependencies{
			Registry:      registry,
			Drafts:        drafts.NewService(drafts.LoadConfig(cfg), st, registry, log),
			Submitter:     finalizer,
			Notifier:      notifier,
			Locker:        redis,
			LockTTL:       config.GetDuration(cfg.Wizard.TransitionLockTTL),
			Logger:        log,
			Observability: obs,
		},
		Completer:      finalizer,
		Tasks:          tasks.NewService(st, notifier, log),
		Documents:      storage.NewDocuments(files, cfg.Storage, cfg.HTTP.MaxUploadBytes, log),
		Editor:         badge.NewEditor(badge.LoadConfig(cfg), log),
		Checks:         checks,
		Logger:         log,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
		Service:        cfg.App.Name,
		Version:        cfg.App.Version,
	})

	// --- HTTP servers ---
	apiServer := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      server.Handler(),
		ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
	}
	opsServer := &http.Server{
		Addr:    cfg.HTTP.OpsAddress,
		Handler: server.OpsRouter(),
	}

	for _, srv := range []*http.Server{apiServer, opsServer} {
		srv := srv
		go func() {
			zapLog.Info("HTTP server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zapLog.Fatal("http server failed", zap.String("addr", srv.Addr), zap.Error(err))
			}
		}()
	}

	zapLog.Info("Onboarding API started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutting down onboarding API...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	for _, srv := range []*http.Server{apiServer, opsServer} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zapLog.Error("http shutdown failed", zap.String("addr", srv.Addr), zap.Error(err))
		}
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("metrics shutdown failed", zap.Error(err))
	}
	zapLog.Info("Onboarding API stopped")
}
