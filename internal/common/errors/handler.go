package errors

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// Logger is the slice of logger.Logger the handler needs.
type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler reports a failed job back to the broker.
type ErrorHandler struct {
	logger      Logger
	baseBackoff time.Duration
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger, baseBackoff: 5 * time.Second}
}

// JobOutcome is what the broker is told about a failed job.
type JobOutcome struct {
	Throw     bool
	Retries   int32
	Backoff   time.Duration
	BPMN      *BPMNError
	Variables string
}

// Decide maps err onto a fail-with-retries or a thrown BPMN error. A retryable error keeps
// the job alive while the broker still has attempts left, doubling the backoff each time.
func (h *ErrorHandler) Decide(job entities.Job, err error) JobOutcome {
	bpmn := ConvertToBPMNError(Normalize(err))
	out := JobOutcome{BPMN: bpmn, Throw: true}
	if raw, mErr := json.Marshal(bpmn.ToErrorVariables()); mErr == nil {
		out.Variables = string(raw)
	}

	if bpmn.Retries == 0 || job.Retries <= 1 {
		return out
	}

	remaining := job.Retries - 1
	if remaining > int32(bpmn.Retries) {
		remaining = int32(bpmn.Retries)
	}
	attempt := bpmn.Retries - int(remaining)
	if attempt < 0 {
		attempt = 0
	}

	out.Throw = false
	out.Retries = remaining
	out.Backoff = h.baseBackoff << attempt
	return out
}

// HandleJobError logs err and sends the outcome chosen by Decide.
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	out := h.Decide(job, err)
	std := Normalize(err)

	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":          job.Key,
		"jobType":         job.Type,
		"processInstance": job.ProcessInstanceKey,
		"errorCode":       out.BPMN.Code,
		"errorCategory":   GetErrorCategory(std.Code),
		"details":         std.Details,
		"thrown":          out.Throw,
		"retriesLeft":     out.Retries,
		"backoff":         out.Backoff.String(),
	})

	var sendErr error
	if out.Throw {
		sendErr = h.throw(ctx, client, job, out)
	} else {
		sendErr = h.fail(ctx, client, job, out)
	}
	if sendErr != nil {
		h.logger.Error("could not report job failure", map[string]interface{}{
			"jobKey": job.Key,
			"error":  sendErr.Error(),
		})
	}
}

func (h *ErrorHandler) fail(ctx context.Context, client worker.JobClient, job entities.Job, out JobOutcome) error {
	cmd := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(out.Retries).
		RetryBackoff(out.Backoff).
		ErrorMessage(out.BPMN.Message)

	if out.Variables != "" {
		if withVars, err := cmd.VariablesFromString(out.Variables); err == nil {
			_, err = withVars.Send(ctx)
			return err
		}
	}
	_, err := cmd.Send(ctx)
	return err
}

func (h *ErrorHandler) throw(ctx context.Context, client worker.JobClient, job entities.Job, out JobOutcome) error {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(out.BPMN.Code).
		ErrorMessage(out.BPMN.Message)

	if out.Variables != "" {
		if withVars, err := cmd.VariablesFromString(out.Variables); err == nil {
			_, err = withVars.Send(ctx)
			return err
		}
	}
	_, err := cmd.Send(ctx)
	return err
}

// Normalize wraps any error into a StandardError.
func Normalize(err error) *StandardError {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   errString(err),
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}
