package models

import "time"

// Event types emitted by the onboarding pipeline.
const (
	EventOnboardingCompleted = "onboarding.completed"
	EventTaskAssigned        = "task.assigned"
	EventStepSaved           = "onboarding.step_saved"
)

// TableWebhooks holds admin-configured webhook endpoints.
const TableWebhooks = "webhooks"

// Applicant is the identity and contact subset of a submission that is safe to send to
// notification channels. It never carries banking or document data.
type Applicant struct {
	SubmissionID  string `json:"submissionId"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	PersonalEmail string `json:"personalEmail"`
	CellPhone     string `json:"cellPhone,omitempty"`
	CompanyEmail  string `json:"companyEmail,omitempty"`
	Username      string `json:"username,omitempty"`
	TeamID        string `json:"teamId,omitempty"`
	ManagerID     string `json:"managerId,omitempty"`
	RecruiterID   string `json:"recruiterId,omitempty"`
}

// ApplicantFrom extracts the notifiable fields of a submission.
func ApplicantFrom(s *OnboardingSubmission) Applicant {
	return Applicant{
		SubmissionID:  s.ID,
		FirstName:     s.FirstName,
		LastName:      s.LastName,
		PersonalEmail: s.PersonalEmail,
		CellPhone:     s.CellPhone,
		CompanyEmail:  s.CompanyEmail,
		Username:      s.Username,
		TeamID:        s.TeamID,
		ManagerID:     s.ManagerID,
		RecruiterID:   s.RecruiterID,
	}
}

// Event is the payload handed to the notification fan-out.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	OccurredAt time.Time              `json:"occurredAt"`
	Applicant  Applicant              `json:"applicant"`
	Data       map[string]interface{} `json:"data,omitempty"`

	// OneTimePassword is the plaintext of freshly issued credentials. It is never
	// serialized and only the admin email renders it.
	OneTimePassword string `json:"-"`
}

// Webhook is an admin-configured HTTP endpoint subscribed to event types.
type Webhook struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Secret string   `json:"secret,omitempty"`
	Events []string `json:"events"`
	Active bool     `json:"active"`
}

// Subscribes reports whether the webhook wants eventType. An empty list means all events.
func (w Webhook) Subscribes(eventType string) bool {
	if !w.Active {
		return false
	}
	if len(w.Events) == 0 {
		return true
	}
	for _, e := range w.Events {
		if e == eventType || e == "*" {
			return true
		}
	}
	return false
}

// Delivery statuses, per channel.
const (
	DeliverySent     = "sent"
	DeliveryFailed   = "failed"
	DeliveryDisabled = "disabled"
	DeliverySkipped  = "skipped"
)

// Delivery records the outcome of one channel for one event.
type Delivery struct {
	Channel string `json:"channel"`
	Target  string `json:"target,omitempty"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}
