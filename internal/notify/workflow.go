package notify

import (
	"context"
	"time"

	"crew-onboarding/internal/models"
)

const (
	ChannelWorkflow = "workflow"

	// MessageOnboardingCompleted starts the notification process in workflow mode.
	MessageOnboardingCompleted = "onboarding-completed"
	MessageTaskAssigned        = "onboarding-task-assigned"
)

// MessagePublisher is satisfied by camunda.Client.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, name, correlationKey string, ttl time.Duration, variables interface{}) error
}

// WorkflowSink hands email and SMS delivery to the BPMN process. The process's
// onboarding-send-notification job dispatches the event back through the direct sinks.
type WorkflowSink struct {
	publisher MessagePublisher
	ttl       time.Duration
}

func NewWorkflowSink(publisher MessagePublisher, ttl time.Duration) *WorkflowSink {
	return &WorkflowSink{publisher: publisher, ttl: ttl}
}

func (s *WorkflowSink) Name() string { return ChannelWorkflow }

func (s *WorkflowSink) Accepts(eventType string) bool {
	return eventType == models.EventOnboardingCompleted || eventType == models.EventTaskAssigned
}

func (s *WorkflowSink) Deliver(ctx context.Context, event models.Event) ([]models.Delivery, error) {
	name := MessageOnboardingCompleted
	if event.Type == models.EventTaskAssigned {
		name = MessageTaskAssigned
	}

	vars := map[string]interface{}{"event": event}
	if err := s.publisher.PublishMessage(ctx, name, event.Applicant.SubmissionID, s.ttl, vars); err != nil {
		return []models.Delivery{{Channel: ChannelWorkflow, Target: name, Status: models.DeliveryFailed, Error: err.Error()}}, err
	}
	return []models.Delivery{{Channel: ChannelWorkflow, Target: name, Status: models.DeliverySent}}, nil
}
