package wizard

import (
	"crew-onboarding/internal/models"
)

// StepSummary is one entry of the rendered step list.
type StepSummary struct {
	Index    int    `json:"index"`
	Key      string `json:"key"`
	Title    string `json:"title"`
	Complete bool   `json:"complete"`
}

// View is the client-facing snapshot of a session.
type View struct {
	SessionID     string                  `json:"sessionId"`
	SubmissionID  string                  `json:"submissionId,omitempty"`
	Status        models.SubmissionStatus `json:"status"`
	CurrentIndex  int                     `json:"currentIndex"`
	FurthestIndex int                     `json:"furthestIndex"`
	Total         int                     `json:"total"`
	Progress      int                     `json:"progress"`
	Current       StepSummary             `json:"current"`
	Steps         []StepSummary           `json:"steps"`
	Data          models.StepData         `json:"data,omitempty"`
	Submitted     bool                    `json:"submitted"`
}

// View renders the session. Bank account numbers are masked in Data.
func (m *Machine) View() (*View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var masked *models.OnboardingSubmission
	status := models.StatusDraft
	if m.sub != nil {
		masked = m.sub.Masked()
		status = m.sub.Status
	}

	list := m.deps.Registry.StepsFor(m.sub)
	summaries := make([]StepSummary, 0, len(list))
	for _, d := range list {
		complete := false
		if m.sub != nil {
			res, err := m.deps.Registry.ValidateStored(m.sub, d.Key)
			if err != nil {
				return nil, err
			}
			complete = res.Valid && d.Index < m.sub.CurrentStep
		}
		summaries = append(summaries, StepSummary{Index: d.Index, Key: d.Key, Title: d.Title, Complete: complete})
	}

	idx := m.session.CurrentIndex
	if idx > len(list) {
		idx = len(list)
	}
	current := summaries[idx-1]

	data := models.StepData{}
	if masked != nil {
		stored, err := m.deps.Registry.StepData(masked, current.Key)
		if err != nil {
			return nil, err
		}
		data = stored
	}
	for k, v := range m.session.BufferFor(current.Key) {
		if k == "bank_account_number" {
			if s, ok := v.(string); ok {
				v = models.MaskAccountNumber(s)
			}
		}
		data[k] = v
	}

	return &View{
		SessionID:     m.session.ID,
		SubmissionID:  m.session.SubmissionID,
		Status:        status,
		CurrentIndex:  idx,
		FurthestIndex: m.session.FurthestIndex,
		Total:         len(list),
		Progress:      m.deps.Registry.Progress(m.sub),
		Current:       current,
		Steps:         summaries,
		Data:          data,
		Submitted:     m.session.Submitted,
	}, nil
}
