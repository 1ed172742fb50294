// internal/workers/onboarding/send-notification/handler_test.go
package sendnotification

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "crew-onboarding/internal/common/errors"
	"crew-onboarding/internal/common/logger"
	"crew-onboarding/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockDispatcher struct {
	DispatchFunc func(ctx context.Context, event models.Event) ([]models.Delivery, error)
	calls        int
}

func (m *MockDispatcher) Dispatch(ctx context.Context, event models.Event) ([]models.Delivery, error) {
	m.calls++
	return m.DispatchFunc(ctx, event)
}

// ==========================
// Test Helper Functions
// ==========================

func createTestInput(eventType string) *Input {
	return &Input{Event: models.Event{
		ID:         "evt-001",
		Type:       eventType,
		OccurredAt: time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC),
		Applicant: models.Applicant{
			SubmissionID: "sub-001",
			FirstName:    "Jane",
			LastName:     "Doe",
		},
	}}
}

func newTestHandler(t *testing.T, d Dispatcher) *Handler {
	h := NewHandler(&Config{Timeout: 5 * time.Second}, d, logger.NewTestLogger(t))
	h.now = func() time.Time { return time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC) }
	return h
}

// ==========================
// Tests
// ==========================

func TestExecute(t *testing.T) {
	sent := models.Delivery{Channel: "email", Target: "jane@example.com", Status: models.DeliverySent}
	failed := models.Delivery{Channel: "sms", Target: "+12145550199", Status: models.DeliveryFailed, Error: "throttled"}
	sendErr := apperrors.NewNotificationSendFailedError("sms", errors.New("throttled"))

	tests := []struct {
		name       string
		deliveries []models.Delivery
		err        error
		wantStatus string
		wantErr    apperrors.ErrorCode
	}{
		{"all sent", []models.Delivery{sent}, nil, StatusSent, ""},
		{"partial", []models.Delivery{sent, failed}, sendErr, StatusPartial, ""},
		{"nothing configured", nil, nil, StatusDisabled, ""},
		{"all failed", []models.Delivery{failed}, sendErr, "", apperrors.ErrCodeNotificationSendFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &MockDispatcher{DispatchFunc: func(ctx context.Context, event models.Event) ([]models.Delivery, error) {
				assert.Equal(t, "evt-001", event.ID)
				return tt.deliveries, tt.err
			}}
			h := newTestHandler(t, d)

			out, err := h.Execute(context.Background(), createTestInput(models.EventOnboardingCompleted))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, tt.wantErr))
				assert.True(t, apperrors.IsRetryable(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, out.Status)
			assert.Equal(t, "evt-001", out.EventID)
			assert.Equal(t, "2026-02-01T10:00:00Z", out.SentAt)
			assert.Len(t, out.Deliveries, len(tt.deliveries))
		})
	}
}

func TestExecute_RejectsEmptyEvent(t *testing.T) {
	d := &MockDispatcher{}
	h := newTestHandler(t, d)

	_, err := h.Execute(context.Background(), &Input{})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidationFailed))
	assert.False(t, apperrors.IsRetryable(err))
	assert.Zero(t, d.calls)
}

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 30*time.Second, LoadConfig(nil).Timeout)
}
