package models

import "time"

// WizardSession ties one client session to one submission. It tracks the rendered step and
// buffers unsaved edits. It is passed explicitly to the wizard machine and mirrored in the
// session store so the client can resume from any device holding the token.
type WizardSession struct {
	ID            string              `json:"id"`
	SubmissionID  string              `json:"submissionId,omitempty"`
	CurrentIndex  int                 `json:"currentIndex"`
	FurthestIndex int                 `json:"furthestIndex"`
	Buffer        map[string]StepData `json:"buffer,omitempty"`
	Submitted     bool                `json:"submitted"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// NewWizardSession starts at step 1 with no submission.
func NewWizardSession(id string) *WizardSession {
	return &WizardSession{
		ID:            id,
		CurrentIndex:  1,
		FurthestIndex: 1,
		Buffer:        make(map[string]StepData),
		UpdatedAt:     time.Now().UTC(),
	}
}

// BufferFor returns the buffered edits of a step, or nil.
func (s *WizardSession) BufferFor(stepKey string) StepData {
	if s.Buffer == nil {
		return nil
	}
	return s.Buffer[stepKey]
}

// unstorableFields are staged values that are kept in memory for the current request but
// dropped whenever a session is written out.
var unstorableFields = []string{"bank_account_number"}

// Redacted returns a copy of the session whose buffer omits unstorable fields. Steps left
// with no buffered fields are dropped.
func (s *WizardSession) Redacted() *WizardSession {
	out := *s
	if len(s.Buffer) == 0 {
		return &out
	}
	out.Buffer = make(map[string]StepData, len(s.Buffer))
	for key, data := range s.Buffer {
		clean := data.Clone()
		for _, f := range unstorableFields {
			delete(clean, f)
		}
		if len(clean) > 0 {
			out.Buffer[key] = clean
		}
	}
	return &out
}

// Stage merges edits into the step's buffer without persisting them.
func (s *WizardSession) Stage(stepKey string, data StepData) {
	if s.Buffer == nil {
		s.Buffer = make(map[string]StepData)
	}
	merged := s.Buffer[stepKey].Clone()
	for k, v := range data {
		merged[k] = v
	}
	s.Buffer[stepKey] = merged
	s.UpdatedAt = time.Now().UTC()
}
