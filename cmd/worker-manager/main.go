// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	awsclient "crew-onboarding/internal/common/aws"
	"crew-onboarding/internal/common/camunda"
	"crew-onboarding/internal/common/config"
	"crew-onboarding/internal/common/database"
	"crew-onboarding/internal/common/logger"
	"crew-onboarding/internal/common/observability"
	"crew-onboarding/internal/notify"
	"crew-onboarding/internal/store"
	"crew-onboarding/internal/store/memory"
	"crew-onboarding/internal/store/postgres"

	sn "crew-onboarding/internal/workers/onboarding/send-notification"
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

	zapLog.Info("Starting worker manager...")

	obs, err := observability.New("worker-manager")
	if err != nil {
		zapLog.Fatal("metrics setup failed", zap.Error(err))
	}

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
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
	zapLog.Info("Zeebe client connected successfully")

	// --- Data store: recipients come from submissions and users ---
	var st store.Store
	if cfg.Database.Driver == config.DriverMemory {
		st = memory.New()
	} else {
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
		st = postgres.New(pg, log)
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- AWS clients ---
	awsCfg, err := awsclient.LoadConfig(ctx, cfg.Storage.Region, cfg.Storage.Endpoint)
	if err != nil {
		zapLog.Fatal("aws config failed", zap.Error(err))
	}

	dispatcher, err := notify.NewDirect(cfg, notify.Dependencies{
		Store: st,
		SES:   awsclient.NewSESClient(awsCfg),
		SNS:   awsclient.NewSNSClient(awsCfg),
	}, log)
	if err != nil {
		zapLog.Fatal("notifier setup failed", zap.Error(err))
	}

	// --- Workers ---
	var workers []*camunda.CamundaWorker
	if wcfg := cfg.Workers[sn.TaskType]; wcfg.Enabled {
		handler := sn.NewHandler(sn.LoadConfig(cfg), dispatcher, log).WithObservability(obs)
		w := camunda.NewWorker(zc.GetClient(), sn.TaskType, camunda.OptionsFrom(wcfg), handler, log)
		w.Start()
		workers = append(workers, w)
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", sn.TaskType))
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ready", http.StatusOK
		if err := zc.HealthCheck(r.Context()); err != nil {
			status, code = "unavailable", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	opsServer := &http.Server{Addr: cfg.HTTP.OpsAddress, Handler: mux}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", opsServer.Addr))
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop(shutdownCtx)
	}
	_ = opsServer.Shutdown(shutdownCtx)
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("metrics shutdown failed", zap.Error(err))
	}

	if err := zc.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
