package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SubmissionStatus is the lifecycle state of an onboarding submission.
type SubmissionStatus string

const (
	StatusDraft      SubmissionStatus = "draft"
	StatusInProgress SubmissionStatus = "in_progress"
	StatusSubmitted  SubmissionStatus = "submitted"
	StatusCompleted  SubmissionStatus = "completed"
)

// TableSubmissions is the data store table holding OnboardingSubmission rows.
const TableSubmissions = "onboarding_submissions"

// IsOpen reports whether the applicant may still edit through the wizard.
func (s SubmissionStatus) IsOpen() bool {
	return s == StatusDraft || s == StatusInProgress || s == ""
}

// CanTransition enforces draft -> in_progress -> submitted -> completed.
// draft may jump straight to submitted.
func (s SubmissionStatus) CanTransition(to SubmissionStatus) bool {
	switch s {
	case "", StatusDraft:
		return to == StatusDraft || to == StatusInProgress || to == StatusSubmitted
	case StatusInProgress:
		return to == StatusInProgress || to == StatusSubmitted
	case StatusSubmitted:
		return to == StatusCompleted
	default:
		return false
	}
}

// OnboardingSubmission is the aggregate root of the onboarding pipeline. JSON tags double as
// data store column names.
type OnboardingSubmission struct {
	ID          string           `json:"id"`
	Status      SubmissionStatus `json:"status"`
	CurrentStep int              `json:"current_step"`

	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
	Gender        string `json:"gender,omitempty"`
	PersonalEmail string `json:"personal_email,omitempty"`
	CellPhone     string `json:"cell_phone,omitempty"`

	MailingStreet string `json:"mailing_street,omitempty"`
	MailingCity   string `json:"mailing_city,omitempty"`
	MailingState  string `json:"mailing_state,omitempty"`
	MailingZip    string `json:"mailing_zip,omitempty"`
	SameAsMailing bool   `json:"same_as_mailing"`

	ShippingStreet string `json:"shipping_street,omitempty"`
	ShippingCity   string `json:"shipping_city,omitempty"`
	ShippingState  string `json:"shipping_state,omitempty"`
	ShippingZip    string `json:"shipping_zip,omitempty"`

	ShirtSize string  `json:"shirt_size,omitempty"`
	CoatSize  string  `json:"coat_size,omitempty"`
	PantSize  string  `json:"pant_size,omitempty"`
	ShoeSize  float64 `json:"shoe_size,omitempty"`
	HatSize   string  `json:"hat_size,omitempty"`

	CompanyEmail        string     `json:"company_email,omitempty"`
	Username            string     `json:"username,omitempty"`
	PasswordHash        string     `json:"password_hash,omitempty"`
	CredentialsIssuedAt *time.Time `json:"credentials_issued_at,omitempty"`

	BankRoutingNumber string `json:"bank_routing_number,omitempty"`
	BankAccountNumber string `json:"bank_account_number,omitempty"`
	BankAccountType   string `json:"bank_account_type,omitempty"`

	DriversLicenseURL    string `json:"drivers_license_url,omitempty"`
	SSNCardURL           string `json:"ssn_card_url,omitempty"`
	DirectDepositFormURL string `json:"direct_deposit_form_url,omitempty"`
	W9Completed          bool   `json:"w9_completed"`

	BadgePhotoURL string `json:"badge_photo_url,omitempty"`

	VoicePitchURL         string     `json:"voice_pitch_url,omitempty"`
	VoicePitchCompletedAt *time.Time `json:"voice_pitch_completed_at,omitempty"`

	TasksAcknowledged bool `json:"tasks_acknowledged"`

	TeamID      string `json:"team_id,omitempty"`
	ManagerID   string `json:"manager_id,omitempty"`
	RecruiterID string `json:"recruiter_id,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Address is a postal address as read back from a submission.
type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// MailingAddress returns the mailing address fields.
func (s *OnboardingSubmission) MailingAddress() Address {
	return Address{Street: s.MailingStreet, City: s.MailingCity, State: s.MailingState, Zip: s.MailingZip}
}

// EffectiveShipping returns the shipping address, falling back to mailing when
// same_as_mailing is set.
func (s *OnboardingSubmission) EffectiveShipping() Address {
	if s.SameAsMailing {
		return s.MailingAddress()
	}
	return Address{Street: s.ShippingStreet, City: s.ShippingCity, State: s.ShippingState, Zip: s.ShippingZip}
}

func (s *OnboardingSubmission) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

func (s *OnboardingSubmission) HasCredentials() bool {
	return s.CompanyEmail != "" && s.Username != "" && s.PasswordHash != ""
}

// Masked returns a copy safe for display: the account number keeps only its last four
// digits and the password hash is dropped.
func (s *OnboardingSubmission) Masked() *OnboardingSubmission {
	out := *s
	out.BankAccountNumber = MaskAccountNumber(s.BankAccountNumber)
	out.PasswordHash = ""
	return &out
}

// MaskAccountNumber replaces all but the last four digits with '*'. Inputs of four
// characters or fewer are fully masked.
func MaskAccountNumber(number string) string {
	n := strings.ReplaceAll(strings.TrimSpace(number), " ", "")
	if n == "" {
		return ""
	}
	if len(n) <= 4 {
		return strings.Repeat("*", len(n))
	}
	return strings.Repeat("*", len(n)-4) + n[len(n)-4:]
}

// ToRecord converts the submission into a column map for the data store.
func (s *OnboardingSubmission) ToRecord() (map[string]interface{}, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal submission: %w", err)
	}
	var rec map[string]interface{}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal submission record: %w", err)
	}
	return rec, nil
}

// SubmissionFromRecord builds a submission from a data store row. Nil columns are skipped.
func SubmissionFromRecord(rec map[string]interface{}) (*OnboardingSubmission, error) {
	clean := make(map[string]interface{}, len(rec))
	for k, v := range rec {
		if v == nil {
			continue
		}
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		clean[k] = v
	}
	raw, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	var sub OnboardingSubmission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("decode submission: %w", err)
	}
	return &sub, nil
}

// StepData is the flat key-value bag a single wizard step reads and writes.
type StepData map[string]interface{}

// Clone returns a shallow copy.
func (d StepData) Clone() StepData {
	out := make(StepData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Project returns the subset of the submission's columns named by fields.
func (s *OnboardingSubmission) Project(fields []string) (StepData, error) {
	rec, err := s.ToRecord()
	if err != nil {
		return nil, err
	}
	out := make(StepData, len(fields))
	for _, f := range fields {
		if v, ok := rec[f]; ok {
			out[f] = v
		}
	}
	return out, nil
}
