package camunda

import (
	"context"
	"fmt"
	"time"

	"crew-onboarding/internal/common/config"
	"crew-onboarding/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler completes or fails the job itself.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// WorkerOptions tune job activation for one task type.
type WorkerOptions struct {
	MaxJobsActive int
	Timeout       time.Duration
}

// OptionsFrom reads the worker section of the config.
func OptionsFrom(wc config.WorkerConfig) WorkerOptions {
	return WorkerOptions{
		MaxJobsActive: wc.MaxJobsActive,
		Timeout:       config.GetDuration(wc.Timeout),
	}
}

type CamundaWorker struct {
	client   zbc.Client
	taskType string
	opts     WorkerOptions
	handler  JobHandler
	logger   logger.Logger
	jw       worker.JobWorker
}

func NewWorker(client zbc.Client, taskType string, opts WorkerOptions, handler JobHandler, log logger.Logger) *CamundaWorker {
	return &CamundaWorker{
		client:   client,
		taskType: taskType,
		opts:     opts,
		handler:  handler,
		logger:   log.WithFields(map[string]interface{}{"taskType": taskType}),
	}
}

// Start opens the job stream. Calling it twice is a no-op.
func (w *CamundaWorker) Start() {
	if w.jw != nil {
		return
	}
	builder := w.client.NewJobWorker().
		JobType(w.taskType).
		Handler(w.handle)
	if w.opts.MaxJobsActive > 0 {
		builder = builder.MaxJobsActive(w.opts.MaxJobsActive)
	}
	if w.opts.Timeout > 0 {
		builder = builder.Timeout(w.opts.Timeout)
	}
	w.jw = builder.Open()
	w.logger.Info("worker started", map[string]interface{}{
		"maxJobsActive": w.opts.MaxJobsActive,
		"timeout":       w.opts.Timeout.String(),
	})
}

// handle runs the handler and turns a panic into a failed job so the broker can retry it.
func (w *CamundaWorker) handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("job handler panicked", map[string]interface{}{
				"jobKey": job.Key,
				"panic":  fmt.Sprint(r),
			})
			retries := job.Retries - 1
			if retries < 0 {
				retries = 0
			}
			_, _ = client.NewFailJobCommand().
				JobKey(job.Key).
				Retries(retries).
				ErrorMessage(fmt.Sprintf("handler panic: %v", r)).
				Send(context.Background())
			return
		}
		w.logger.Debug("job handled", map[string]interface{}{
			"jobKey":   job.Key,
			"duration": time.Since(start).String(),
		})
	}()
	w.handler.Handle(client, job)
}

// Stop closes the job worker and waits for in-flight jobs until ctx expires.
func (w *CamundaWorker) Stop(ctx context.Context) {
	if w.jw == nil {
		return
	}
	w.logger.Info("stopping worker", nil)
	done := make(chan struct{})
	go func() {
		w.jw.Close()
		w.jw.AwaitClose()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("worker stop timed out", nil)
	}
}
