package notify

import (
	"fmt"
	"strings"

	"crew-onboarding/internal/models"
)

// Audiences of a rendered message.
const (
	AudienceNewHire = "new_hire"
	AudienceManager = "manager"
	AudienceAdmin   = "admin"
)

type template struct {
	Subject string
	Body    string
	SMS     string
}

var templates = map[string]map[string]template{
	models.EventOnboardingCompleted: {
		AudienceNewHire: {
			Subject: "Welcome to the crew, {{firstName}}!",
			Body: "Hi {{firstName}},\n\nYour onboarding is complete. Your company account is {{companyEmail}} " +
				"(username {{username}}). Your administrator will share your first-time password.\n",
		},
		AudienceManager: {
			Subject: "{{firstName}} {{lastName}} finished onboarding",
			Body: "{{firstName}} {{lastName}} completed onboarding for team {{teamId}}.\n" +
				"Company email: {{companyEmail}}\nPhone: {{cellPhone}}\n",
			SMS: "{{firstName}} {{lastName}} finished onboarding and joins team {{teamId}}.",
		},
		AudienceAdmin: {
			Subject: "Onboarding submitted: {{firstName}} {{lastName}}",
			Body:    "Submission {{submissionId}} is ready for review. Manager: {{managerId}}.\n",
		},
	},
	models.EventTaskAssigned: {
		AudienceNewHire: {
			Subject: "New task: {{taskTitle}}",
			Body:    "Hi {{firstName}},\n\nYou have a new onboarding task: {{taskTitle}}.\n{{taskDescription}}\nDue: {{dueDate}}\n",
			SMS:     "New onboarding task: {{taskTitle}} (due {{dueDate}})",
		},
	},
}

// credentialsBlock precedes the one-time password in the admin email.
const credentialsBlock = "\nCompany account: {{companyEmail}} (username {{username}})\nOne-time password: "

func lookupTemplate(eventType, audience string) (template, bool) {
	byAudience, ok := templates[eventType]
	if !ok {
		return template{}, false
	}
	t, ok := byAudience[audience]
	return t, ok
}

// templateData flattens the applicant and event data into placeholder values.
func templateData(event models.Event) map[string]interface{} {
	a := event.Applicant
	data := map[string]interface{}{
		"eventType":    event.Type,
		"submissionId": a.SubmissionID,
		"firstName":    a.FirstName,
		"lastName":     a.LastName,
		"cellPhone":    a.CellPhone,
		"companyEmail": a.CompanyEmail,
		"username":     a.Username,
		"teamId":       a.TeamID,
		"managerId":    a.ManagerID,
	}
	for k, v := range event.Data {
		data[k] = v
	}
	return data
}

func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	// unknown placeholders render empty
	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}
