package api

import (
	"crew-onboarding/internal/badge"
	"crew-onboarding/internal/models"
	"crew-onboarding/internal/submission"
	"crew-onboarding/internal/tasks"
	"crew-onboarding/internal/wizard"
)

type startSessionRequest struct {
	SubmissionID string `json:"submissionId,omitempty" validate:"omitempty,uuid"`
}

type sessionResponse struct {
	Token string       `json:"token"`
	View  *wizard.View `json:"view"`
}

type jumpRequest struct {
	Step int `json:"step" validate:"required,min=1"`
}

type submitResponse struct {
	Result  *submission.Result `json:"result"`
	Account *accountResponse   `json:"account,omitempty"`
	View    *wizard.View       `json:"view"`
	Notice  *Notice            `json:"notice,omitempty"`
}

// accountResponse is set only on the call that issued credentials.
type accountResponse struct {
	CompanyEmail string `json:"companyEmail"`
	Username     string `json:"username"`
}

// badgeRequest is read from the multipart form next to the photo.
type badgeRequest struct {
	Brightness float64 `json:"brightness" validate:"min=-100,max=100"`
	Contrast   float64 `json:"contrast" validate:"min=-100,max=100"`
	Rotation   float64 `json:"rotation"`
	CropX      int     `json:"cropX" validate:"min=0"`
	CropY      int     `json:"cropY" validate:"min=0"`
	CropWidth  int     `json:"cropWidth" validate:"min=0"`
	CropHeight int     `json:"cropHeight" validate:"min=0"`
}

type badgeResponse struct {
	URL     string               `json:"url"`
	Preview string               `json:"preview"`
	Width   int                  `json:"width"`
	Height  int                  `json:"height"`
	Issues  []badge.QualityIssue `json:"issues"`
	View    *wizard.View         `json:"view"`
}

type uploadResponse struct {
	Kind  string       `json:"kind"`
	Field string       `json:"field"`
	MIME  string       `json:"mime"`
	Size  int          `json:"size"`
	View  *wizard.View `json:"view"`
}

type submissionResponse struct {
	Submission *models.OnboardingSubmission `json:"submission"`
	Documents  map[string]string            `json:"documents,omitempty"`
	Progress   int                          `json:"progress"`
	Total      int                          `json:"total"`
}

type assignTaskRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	AssignedBy  string `json:"assignedBy" validate:"required,max=64"`
	DueDate     string `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
}

func (r assignTaskRequest) assignment() tasks.Assignment {
	return tasks.Assignment{
		Title:       r.Title,
		Description: r.Description,
		AssignedBy:  r.AssignedBy,
		DueDate:     r.DueDate,
	}
}
