// Package notify fans onboarding events out to email, SMS, webhooks, the search index and
// the workflow engine. Sinks run concurrently; one failing sink never stops the others.
package notify

import (
	"context"
	"sync"
	"time"

	apperrors "crew-onboarding/internal/common/errors"
	"crew-onboarding/internal/common/logger"
	"crew-onboarding/internal/common/metrics"
	"crew-onboarding/internal/models"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Notifier is what the wizard and the submission handler depend on.
type Notifier interface {
	Notify(ctx context.Context, eventType string, payload Payload) error
}

// Payload is the caller-supplied part of an event. Data must not carry banking or document
// fields.
type Payload struct {
	Applicant       models.Applicant
	Data            map[string]interface{}
	OneTimePassword string
}

// Sink delivers one event over one channel and reports per-target outcomes.
type Sink interface {
	Name() string
	Accepts(eventType string) bool
	Deliver(ctx context.Context, event models.Event) ([]models.Delivery, error)
}

// Fanout is the default Notifier.
type Fanout struct {
	sinks   []Sink
	timeout time.Duration
	logger  logger.Logger
	now     func() time.Time
}

func NewFanout(timeout time.Duration, log logger.Logger, sinks ...Sink) *Fanout {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fanout{
		sinks:   sinks,
		timeout: timeout,
		logger:  logger.ForComponent(log, "notify"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Notify delivers to every sink that accepts eventType. Failures are aggregated into one
// NOTIFICATION_SEND_FAILED error.
func (f *Fanout) Notify(ctx context.Context, eventType string, payload Payload) error {
	_, err := f.Dispatch(ctx, f.NewEvent(eventType, payload))
	return err
}

// NewEvent stamps an id and time on a payload.
func (f *Fanout) NewEvent(eventType string, payload Payload) models.Event {
	return models.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: f.now(),
		Applicant:  payload.Applicant,
		Data:       payload.Data,

		OneTimePassword: payload.OneTimePassword,
	}
}

// Dispatch delivers a prepared event and returns every delivery outcome.
func (f *Fanout) Dispatch(ctx context.Context, event models.Event) ([]models.Delivery, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	log := f.logger.WithFields(map[string]interface{}{
		"eventType":    event.Type,
		"eventId":      event.ID,
		"submissionId": event.Applicant.SubmissionID,
	})

	var (
		mu         sync.Mutex
		deliveries []models.Delivery
		errs       error
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range f.sinks {
		if !sink.Accepts(event.Type) {
			continue
		}
		sink := sink
		g.Go(func() error {
			out, err := sink.Deliver(gctx, event)

			mu.Lock()
			defer mu.Unlock()
			deliveries = append(deliveries, out...)
			if err != nil {
				errs = multierr.Append(errs, apperrors.NewNotificationSendFailedError(sink.Name(), err))
				log.Warn("notification sink failed", map[string]interface{}{
					"channel": sink.Name(),
					"error":   err,
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, d := range deliveries {
		metrics.NotificationsSent.WithLabelValues(d.Channel, d.Status).Inc()
	}

	if errs != nil {
		failures := multierr.Errors(errs)
		if len(failures) == 1 {
			return deliveries, failures[0]
		}
		return deliveries, apperrors.NewNotificationSendFailedError("fanout", errs).
			WithMetadata("failedChannels", len(failures))
	}

	log.Info("event delivered", map[string]interface{}{"deliveries": len(deliveries)})
	return deliveries, nil
}

// Sinks returns the configured sinks.
func (f *Fanout) Sinks() []Sink {
	return append([]Sink(nil), f.sinks...)
}

// eventSet is a small helper for Accepts implementations.
type eventSet map[string]bool

func newEventSet(types ...string) eventSet {
	s := make(eventSet, len(types))
	for _, t := range types {
		s[t] = true
	}
	return s
}

func (s eventSet) has(t string) bool { return s[t] }
