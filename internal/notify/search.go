package notify

import (
	"context"
	"time"

	"crew-onboarding/internal/models"
)

const ChannelSearch = "search"

// Indexer is satisfied by database.ElasticsearchClient.
type Indexer interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
}

// SearchDocument is what the admin console searches. Only identity and team fields.
type SearchDocument struct {
	SubmissionID string    `json:"submissionId"`
	FullName     string    `json:"fullName"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	CompanyEmail string    `json:"companyEmail,omitempty"`
	Username     string    `json:"username,omitempty"`
	TeamID       string    `json:"teamId,omitempty"`
	ManagerID    string    `json:"managerId,omitempty"`
	RecruiterID  string    `json:"recruiterId,omitempty"`
	Status       string    `json:"status"`
	SubmittedAt  time.Time `json:"submittedAt"`
}

// SearchIndexMapping keeps ids and team fields exact-match and names full-text.
var SearchIndexMapping = []byte(`{
  "mappings": {
    "properties": {
      "submissionId": {"type": "keyword"},
      "fullName":     {"type": "text"},
      "firstName":    {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "lastName":     {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "companyEmail": {"type": "keyword"},
      "username":     {"type": "keyword"},
      "teamId":       {"type": "keyword"},
      "managerId":    {"type": "keyword"},
      "recruiterId":  {"type": "keyword"},
      "status":       {"type": "keyword"},
      "submittedAt":  {"type": "date"}
    }
  }
}`)

// SearchSink indexes completed onboardings.
type SearchSink struct {
	indexer Indexer
	index   string
}

func NewSearchSink(indexer Indexer, index string) *SearchSink {
	return &SearchSink{indexer: indexer, index: index}
}

func (s *SearchSink) Name() string { return ChannelSearch }

func (s *SearchSink) Accepts(eventType string) bool {
	return eventType == models.EventOnboardingCompleted
}

func (s *SearchSink) Deliver(ctx context.Context, event models.Event) ([]models.Delivery, error) {
	a := event.Applicant
	doc := SearchDocument{
		SubmissionID: a.SubmissionID,
		FullName:     a.FirstName + " " + a.LastName,
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		CompanyEmail: a.CompanyEmail,
		Username:     a.Username,
		TeamID:       a.TeamID,
		ManagerID:    a.ManagerID,
		RecruiterID:  a.RecruiterID,
		Status:       string(models.StatusSubmitted),
		SubmittedAt:  event.OccurredAt,
	}
	if err := s.indexer.IndexDocument(ctx, s.index, a.SubmissionID, doc); err != nil {
		return []models.Delivery{{Channel: ChannelSearch, Target: s.index, Status: models.DeliveryFailed, Error: err.Error()}}, err
	}
	return []models.Delivery{{Channel: ChannelSearch, Target: s.index, Status: models.DeliverySent}}, nil
}
