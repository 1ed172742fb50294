// internal/workers/onboarding/send-notification/handler.go
package sendnotification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crew-onboarding/internal/common/errors"
	"crew-onboarding/internal/common/logger"
	"crew-onboarding/internal/common/observability"
	"crew-onboarding/internal/common/validation"
	"crew-onboarding/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "onboarding-send-notification"
)

// Dispatcher is satisfied by *notify.Fanout built with notify.NewDirect.
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.Event) ([]models.Delivery, error)
}

// Handler delivers onboarding events that the API handed to the workflow engine.
type Handler struct {
	config       *Config
	dispatcher   Dispatcher
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
	obs          *observability.Observability
	now          func() time.Time
}

func NewHandler(config *Config, dispatcher Dispatcher, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		dispatcher:   dispatcher,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithObservability records each dispatch as the notify.dispatch operation.
func (h *Handler) WithObservability(o *observability.Observability) *Handler {
	h.obs = o
	return h
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, errors.NewValidationFailedError(nil, []errors.FieldError{{
			Field: "event", Message: fmt.Sprintf("parse input: %v", err), Code: validation.CodeInvalidData,
		}}))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

// Execute dispatches the event through the direct sinks. A partial delivery completes the
// job: retrying it would resend to the recipients that already got the message.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	event := input.Event
	if event.ID == "" || event.Type == "" {
		return nil, errors.NewValidationFailedError(nil, []errors.FieldError{{
			Field: "event", Message: "event id and type are required", Code: validation.CodeRequired,
		}})
	}

	log := h.logger.WithFields(map[string]interface{}{
		"eventId":      event.ID,
		"eventType":    event.Type,
		"submissionId": event.Applicant.SubmissionID,
	})

	done := h.obs.Track(ctx, "notify.dispatch")
	deliveries, err := h.dispatcher.Dispatch(ctx, event)
	sent := 0
	for _, d := range deliveries {
		if d.Status == models.DeliverySent {
			sent++
		}
	}

	out := &Output{
		EventID:    event.ID,
		Deliveries: deliveries,
		SentAt:     h.now().Format(time.RFC3339),
	}
	switch {
	case err != nil && sent == 0:
		log.Warn("event delivery failed", map[string]interface{}{"error": err})
		done("error")
		return nil, err
	case err != nil:
		log.Warn("event partially delivered", map[string]interface{}{"error": err, "sent": sent})
		out.Status = StatusPartial
	case sent == 0:
		out.Status = StatusDisabled
	default:
		out.Status = StatusSent
	}

	done(out.Status)
	log.Info("event dispatched", map[string]interface{}{"status": out.Status, "deliveries": len(deliveries)})
	return out, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err = cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}
