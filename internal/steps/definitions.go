package steps

import (
	v "crew-onboarding/internal/common/validation"
	"crew-onboarding/internal/models"
)

// Step keys in canonical order.
const (
	KeyBasicInfo       = "basic_info"
	KeyAddress         = "address"
	KeyShippingAddress = "shipping_address"
	KeySizing          = "sizing"
	KeyBadgePhoto      = "badge_photo"
	KeyTeam            = "team"
	KeyW9              = "w9"
	KeyVoicePitch      = "voice_pitch"
	KeyTasks           = "tasks"
	KeySubmit          = "submit"
)

const (
	patternPhone   = `^\+?[0-9 ()\-.]{10,20}$`
	patternState   = `^[A-Z]{2}$`
	patternZip     = `^[0-9]{5}(-[0-9]{4})?$`
	patternRouting = `^[0-9]{9}$`
	patternAccount = `^[0-9]{4,17}$`
	patternPant    = `^[0-9]{2}x[0-9]{2}$`
	patternImage   = `^(data:image/(jpeg|png);base64,|https?://)`
)

var (
	shirtSizes = []interface{}{"XS", "S", "M", "L", "XL", "2XL", "3XL", "4XL"}
	hatSizes   = []interface{}{"S/M", "L/XL", "XXL", "ONE_SIZE"}
	genders    = []interface{}{"male", "female", "non_binary", "prefer_not_to_say"}
)

func str(maxLen int) v.Property {
	return v.Property{Type: "string", MaxLength: v.Int(maxLen)}
}

func patterned(pattern string) v.Property {
	return v.Property{Type: "string", Pattern: pattern}
}

func mustBeTrue(desc string) v.Property {
	return v.Property{Type: "boolean", Description: desc, Enum: []interface{}{true}}
}

func needsShipping(sub *models.OnboardingSubmission) bool {
	return !sub.SameAsMailing
}

// DefaultSpecs is the onboarding wizard's step table.
func DefaultSpecs() []Spec {
	return []Spec{
		{
			Key:     KeyBasicInfo,
			Title:   "Basic Info",
			Payload: BasicInfo{},
			Schema: v.JSONSchema{
				Properties: map[string]v.Property{
					"first_name":     str(100),
					"last_name":      str(100),
					"gender":         {Type: "string", Enum: genders},
					"personal_email": {Type: "string", Format: "email", MaxLength: v.Int(254)},
					"cell_phone":     patterned(patternPhone),
				},
				Required: []string{"first_name", "last_name", "personal_email", "cell_phone"},
			},
		},
		{
			Key:     KeyAddress,
			Title:   "Address",
			Payload: Address{},
			Schema: v.JSONSchema{
				Properties: map[string]v.Property{
					"mailing_street":  str(200),
					"mailing_city":    str(100),
					"mailing_state":   patterned(patternState),
					"mailing_zip":     patterned(patternZip),
					"same_as_mailing": {Type: "boolean"},
				},
				Required: []string{"mailing_street", "mailing_city", "mailing_state", "mailing_zip", "same_as_mailing"},
			},
		},
		{
			Key:      KeyShippingAddress,
			Title:    "Shipping Address",
			Payload:  ShippingAddress{},
			Required: needsShipping,
			Schema: v.JSONSchema{
				Properties: map[string]v.Property{
					"shipping_street": str(200),
					"shipping_city":   str(100),
					"shipping_state":  patterned(patternState),
					"shipping_zip":    patterned(patternZip),
				},
				Required: []string{"shipping_street", "shipping_city", "shipping_state", "shipping_zip"},
			},
		},
		{
			Key:     KeySizing,
			Title:   "Uniform Sizing",
			Payload: Sizing{},
			Schema: v.JSONSchema{
				Properties: map[string]v.Property{
					"shirt_size": {Type: "string", Enum: shirtSizes},
					"coat_size":  {Type: "string", Enum: shirtSizes},
					"pant_size":  patterned(patternPant),
					"shoe_size":  {Type: "number", Minimum: v.Float(4), Maximum: v.Float(18)},
					"hat_size":   {Type: "string", Enum: hatSizes},
				},
				Required: []string{"shirt_size", "coat_size", "pant_size", "shoe_size"},
			},
		},
		{
			Key:     KeyBadgePhoto,
			Title:   "Badge Photo",
			Payload: BadgePhoto{},
			Schema: v.JSONSchema{
				Properties: map[string]v.Property{
					"badge_photo_url": patterned(patternImage),
				},
				Required: []string{"badge_photo_url"},
			},
		},
		{
			Key:     KeyTeam,
			Title:   "Team",
			Payload: Team{},
			Schema: v.JSONSchema{
				Properties: map[string]v.Property{
					"team_id":      str(64),
					"manager_id":   str(64),
					"recruiter_id": str(64),
				},
				Required: []string{"team_id", "manager_id"},
			},
		},
		{
			Key:     KeyW9,
			Title:   "W-9 & Direct Deposit",
			Payload: W9{},
			Schema: v.JSONSchema{
				Properties: map[string]v.Property{
					"w9_completed":            mustBeTrue("W-9 form signed"),
					"bank_routing_number":     patterned(patternRouting),
					"bank_account_number":     patterned(patternAccount),
					"bank_account_type":       {Type: "string", Enum: []interface{}{"checking", "savings"}},
					"drivers_license_url":     str(1024),
					"ssn_card_url":            str(1024),
					"direct_deposit_form_url": str(1024),
				},
				Required: []string{
					"w9_completed", "bank_routing_number", "bank_account_number", "bank_account_type",
					"drivers_license_url", "ssn_card_url",
				},
			},
		},
		{
			Key:     KeyVoicePitch,
			Title:   "Voice Pitch",
			Payload: VoicePitch{},
			Schema: v.JSONSchema{
				Properties: map[string]v.Property{
					"voice_pitch_url":          str(1024),
					"voice_pitch_completed_at": {Type: "string", Format: "date-time"},
				},
				Required: []string{"voice_pitch_url", "voice_pitch_completed_at"},
			},
		},
		{
			Key:     KeyTasks,
			Title:   "Onboarding Tasks",
			Payload: Tasks{},
			Schema: v.JSONSchema{
				Properties: map[string]v.Property{
					"tasks_acknowledged": mustBeTrue("new hire acknowledged the task list"),
				},
				Required: []string{"tasks_acknowledged"},
			},
		},
		{
			Key:     KeySubmit,
			Title:   "Review & Submit",
			Payload: Review{},
			Schema:  v.JSONSchema{Properties: map[string]v.Property{}},
		},
	}
}

var defaultRegistry = MustNewRegistry(DefaultSpecs()...)

// Default returns the process-wide onboarding registry.
func Default() *Registry {
	return defaultRegistry
}
