// Package drafts persists one wizard step at a time. A save only ever writes the columns
// owned by its step, plus current_step and updated_at.
package drafts

import (
	"context"
	"errors"
	"time"

	apperrors "crew-onboarding/internal/common/errors"
	"crew-onboarding/internal/common/logger"
	"crew-onboarding/internal/common/metrics"
	"crew-onboarding/internal/models"
	"crew-onboarding/internal/steps"
	"crew-onboarding/internal/store"

	"github.com/google/uuid"
)

var shippingColumns = []string{"shipping_street", "shipping_city", "shipping_state", "shipping_zip"}

type Service struct {
	config   *Config
	store    store.Store
	registry *steps.Registry
	logger   logger.Logger
	now      func() time.Time
}

func NewService(cfg *Config, st store.Store, reg *steps.Registry, log logger.Logger) *Service {
	if cfg == nil {
		cfg = LoadConfig(nil)
	}
	return &Service{
		config:   cfg,
		store:    st,
		registry: reg,
		logger:   logger.ForComponent(log, "drafts"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SaveDraft writes the step's fields. A nil submissionID creates a new draft and returns its
// id; otherwise the existing row is partially updated and the same id is returned.
// current_step never moves backwards.
func (s *Service) SaveDraft(ctx context.Context, submissionID *string, stepKey string, data models.StepData, currentStep int) (string, error) {
	if submissionID == nil || *submissionID == "" {
		return s.save(ctx, "", true, stepKey, data, currentStep)
	}
	return s.save(ctx, *submissionID, false, stepKey, data, currentStep)
}

// SaveFirstDraft creates the draft under reservedID. When that row already exists, because
// a concurrent request on the same session won or an earlier insert committed but its reply
// was lost, the save becomes a partial update of it.
func (s *Service) SaveFirstDraft(ctx context.Context, reservedID string, stepKey string, data models.StepData, currentStep int) (string, error) {
	if reservedID == "" {
		return "", apperrors.NewDraftSaveFailedError(stepKey, errors.New("reserved submission id is empty"))
	}
	return s.save(ctx, reservedID, true, stepKey, data, currentStep)
}

func (s *Service) save(ctx context.Context, id string, create bool, stepKey string, data models.StepData, currentStep int) (string, error) {
	def := s.registry.Definition(stepKey)
	start := time.Now()
	defer func() {
		metrics.DraftSaveDuration.WithLabelValues(stepKey).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	fields := ownedFields(def, data)
	if stepKey == steps.KeyAddress {
		if same, _ := data["same_as_mailing"].(bool); same {
			for _, col := range shippingColumns {
				fields[col] = nil
			}
		}
	}
	if currentStep < 1 {
		currentStep = 1
	}

	log := s.logger.WithFields(map[string]interface{}{"stepKey": stepKey, "currentStep": currentStep})

	var err error
	if create {
		var created string
		created, err = s.create(ctx, id, fields, currentStep)
		if errors.Is(err, store.ErrDuplicate) && id != "" {
			log.Info("draft already exists, merging", map[string]interface{}{"submissionId": id})
			err = s.update(ctx, id, fields, currentStep)
		} else if err == nil {
			id = created
		}
	} else {
		err = s.update(ctx, id, fields, currentStep)
	}

	if err != nil {
		metrics.DraftSaves.WithLabelValues(stepKey, metrics.OutcomeFailure).Inc()
		log.Error("draft save failed", map[string]interface{}{"submissionId": id, "error": err})
		return id, s.classify(ctx, stepKey, err)
	}

	metrics.DraftSaves.WithLabelValues(stepKey, metrics.OutcomeSuccess).Inc()
	log.Debug("draft saved", map[string]interface{}{"submissionId": id})
	return id, nil
}

func (s *Service) create(ctx context.Context, id string, fields store.Record, currentStep int) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := s.now()
	rec := fields.Clone()
	rec["id"] = id
	rec["status"] = string(models.StatusDraft)
	if currentStep > 1 {
		rec["status"] = string(models.StatusInProgress)
	}
	rec["current_step"] = currentStep
	rec["created_at"] = now
	rec["updated_at"] = now
	return s.store.Create(ctx, models.TableSubmissions, rec)
}

func (s *Service) update(ctx context.Context, id string, fields store.Record, currentStep int) error {
	existing, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !existing.Status.IsOpen() {
		return apperrors.NewWizardClosedError(id)
	}

	changes := fields.Clone()
	step := currentStep
	if existing.CurrentStep > step {
		step = existing.CurrentStep
	}
	changes["current_step"] = step
	changes["updated_at"] = s.now()
	if existing.Status == models.StatusDraft && step > 1 {
		changes["status"] = string(models.StatusInProgress)
	}
	return s.store.Update(ctx, models.TableSubmissions, id, changes)
}

// Load reads a submission or returns SESSION_NOT_FOUND.
func (s *Service) Load(ctx context.Context, id string) (*models.OnboardingSubmission, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	sub, err := s.load(ctx, id)
	if err != nil {
		if _, ok := apperrors.AsStandard(err); ok {
			return nil, err
		}
		if store.IsDeadline(err) {
			return nil, apperrors.NewTimeoutError("data store", err)
		}
		return nil, apperrors.NewDatabaseConnectionFailedError(err)
	}
	return sub, nil
}

func (s *Service) load(ctx context.Context, id string) (*models.OnboardingSubmission, error) {
	rec, err := s.store.Get(ctx, models.TableSubmissions, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewSessionNotFoundError("submission " + id)
	}
	if err != nil {
		return nil, err
	}
	return models.SubmissionFromRecord(rec)
}

func (s *Service) classify(ctx context.Context, stepKey string, err error) error {
	if _, ok := apperrors.AsStandard(err); ok {
		return err
	}
	if ctx.Err() == context.DeadlineExceeded || store.IsDeadline(err) {
		return apperrors.NewTimeoutError("data store", err)
	}
	return apperrors.NewDraftSaveFailedError(stepKey, err)
}

// ownedFields keeps only the keys the step owns. Keys absent from data are not written.
func ownedFields(def steps.Definition, data models.StepData) store.Record {
	out := make(store.Record, len(def.Fields))
	for _, f := range def.Fields {
		if v, ok := data[f]; ok {
			out[f] = v
		}
	}
	return out
}
