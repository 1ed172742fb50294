// internal/workers/onboarding/send-notification/models.go
package sendnotification

import "crew-onboarding/internal/models"

// Input is the variable set published by the API's workflow sink.
type Input struct {
	Event models.Event `json:"event"`
}

type Output struct {
	EventID    string            `json:"notificationEventId"`
	Status     string            `json:"notificationStatus"`
	Deliveries []models.Delivery `json:"notificationDeliveries"`
	SentAt     string            `json:"notificationSentAt"`
}

const (
	StatusSent     = "sent"
	StatusPartial  = "partial"
	StatusDisabled = "disabled"
)
