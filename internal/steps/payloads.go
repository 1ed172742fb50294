package steps

import (
	"reflect"
	"strings"
)

// Payload is the typed form of one step's key-value bag.
type Payload interface {
	StepKey() string
}

type BasicInfo struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Gender        string `json:"gender,omitempty"`
	PersonalEmail string `json:"personal_email"`
	CellPhone     string `json:"cell_phone"`
}

type Address struct {
	MailingStreet string `json:"mailing_street"`
	MailingCity   string `json:"mailing_city"`
	MailingState  string `json:"mailing_state"`
	MailingZip    string `json:"mailing_zip"`
	SameAsMailing bool   `json:"same_as_mailing"`
}

type ShippingAddress struct {
	ShippingStreet string `json:"shipping_street"`
	ShippingCity   string `json:"shipping_city"`
	ShippingState  string `json:"shipping_state"`
	ShippingZip    string `json:"shipping_zip"`
}

type Sizing struct {
	ShirtSize string  `json:"shirt_size"`
	CoatSize  string  `json:"coat_size"`
	PantSize  string  `json:"pant_size"`
	ShoeSize  float64 `json:"shoe_size"`
	HatSize   string  `json:"hat_size,omitempty"`
}

type BadgePhoto struct {
	BadgePhotoURL string `json:"badge_photo_url"`
}

type Team struct {
	TeamID      string `json:"team_id"`
	ManagerID   string `json:"manager_id"`
	RecruiterID string `json:"recruiter_id,omitempty"`
}

type W9 struct {
	W9Completed          bool   `json:"w9_completed"`
	BankRoutingNumber    string `json:"bank_routing_number"`
	BankAccountNumber    string `json:"bank_account_number"`
	BankAccountType      string `json:"bank_account_type"`
	DriversLicenseURL    string `json:"drivers_license_url"`
	SSNCardURL           string `json:"ssn_card_url"`
	DirectDepositFormURL string `json:"direct_deposit_form_url,omitempty"`
}

type VoicePitch struct {
	VoicePitchURL         string `json:"voice_pitch_url"`
	VoicePitchCompletedAt string `json:"voice_pitch_completed_at"`
}

type Tasks struct {
	TasksAcknowledged bool `json:"tasks_acknowledged"`
}

// Review is the final confirmation step. It carries no fields.
type Review struct{}

func (BasicInfo) StepKey() string       { return KeyBasicInfo }
func (Address) StepKey() string         { return KeyAddress }
func (ShippingAddress) StepKey() string { return KeyShippingAddress }
func (Sizing) StepKey() string          { return KeySizing }
func (BadgePhoto) StepKey() string      { return KeyBadgePhoto }
func (Team) StepKey() string            { return KeyTeam }
func (W9) StepKey() string              { return KeyW9 }
func (VoicePitch) StepKey() string      { return KeyVoicePitch }
func (Tasks) StepKey() string           { return KeyTasks }
func (Review) StepKey() string          { return KeySubmit }

// jsonFields lists the json names of a payload struct's fields.
func jsonFields(p Payload) []string {
	t := reflect.TypeOf(p)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	fields := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name := strings.Split(tag, ",")[0]
		if name == "" || name == "-" {
			continue
		}
		fields = append(fields, name)
	}
	return fields
}
