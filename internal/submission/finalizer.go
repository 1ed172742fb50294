// Package submission turns a completed wizard into a submitted onboarding record: it
// re-validates every required step, flips the status, issues credentials and announces the
// new hire.
package submission

import (
	"context"
	"errors"
	"time"

	apperrors "crew-onboarding/internal/common/errors"
	"crew-onboarding/internal/common/logger"
	"crew-onboarding/internal/common/metrics"
	"crew-onboarding/internal/common/observability"
	"crew-onboarding/internal/credentials"
	"crew-onboarding/internal/models"
	"crew-onboarding/internal/notify"
	"crew-onboarding/internal/steps"
	"crew-onboarding/internal/store"
)

// CredentialIssuer is satisfied by *credentials.Service.
type CredentialIssuer interface {
	Issue(ctx context.Context, sub *models.OnboardingSubmission) (*credentials.Issued, error)
}

// Warning is a side effect that failed after the submission was stored.
type Warning struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

// Result of Finalize. Credentials is set only on the call that issued them and is never
// serialized; the plaintext reaches operators through the admin notification.
type Result struct {
	SubmissionID     string                  `json:"submissionId"`
	Status           models.SubmissionStatus `json:"status"`
	SubmittedAt      *time.Time              `json:"submittedAt,omitempty"`
	AlreadySubmitted bool                    `json:"alreadySubmitted"`
	Credentials      *credentials.Issued     `json:"-"`
	Warnings         []Warning               `json:"warnings,omitempty"`
}

// Notified reports whether every notification went out.
func (r *Result) Notified() bool {
	for _, w := range r.Warnings {
		if w.Code == apperrors.ErrCodeNotificationSendFailed {
			return false
		}
	}
	return true
}

type Finalizer struct {
	config   *Config
	store    store.Store
	registry *steps.Registry
	issuer   CredentialIssuer
	notifier notify.Notifier
	logger   logger.Logger
	obs      *observability.Observability
	now      func() time.Time
}

func NewFinalizer(cfg *Config, st store.Store, reg *steps.Registry, issuer CredentialIssuer, notifier notify.Notifier, log logger.Logger) *Finalizer {
	if cfg == nil {
		cfg = LoadConfig(nil)
	}
	return &Finalizer{
		config:   cfg,
		store:    st,
		registry: reg,
		issuer:   issuer,
		notifier: notifier,
		logger:   logger.ForComponent(log, "submission"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithObservability records Finalize and Complete durations.
func (f *Finalizer) WithObservability(o *observability.Observability) *Finalizer {
	f.obs = o
	return f
}

// Finalize submits id. A record that is already submitted returns AlreadySubmitted with no
// side effects. Credential and notification failures become warnings; the status stays
// submitted.
func (f *Finalizer) Finalize(ctx context.Context, id string) (*Result, error) {
	done := f.obs.Track(ctx, "finalize")
	res, err := f.finalize(ctx, id)
	switch {
	case err != nil:
		outcome := metrics.OutcomeFailure
		if apperrors.GetErrorCategory(errCode(err)) == apperrors.CategoryValidation {
			outcome = metrics.OutcomeRejected
		}
		metrics.Submissions.WithLabelValues(outcome).Inc()
		done(outcome)
	case res.AlreadySubmitted:
		metrics.Submissions.WithLabelValues(metrics.OutcomeRepeat).Inc()
		done(metrics.OutcomeRepeat)
	default:
		metrics.Submissions.WithLabelValues(metrics.OutcomeSuccess).Inc()
		done(metrics.OutcomeSuccess)
	}
	return res, err
}

func (f *Finalizer) finalize(ctx context.Context, id string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	log := f.logger.WithFields(map[string]interface{}{"submissionId": id})

	sub, err := f.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.Status == models.StatusSubmitted || sub.Status == models.StatusCompleted {
		log.Info("submission already finalized", map[string]interface{}{"status": sub.Status})
		return &Result{
			SubmissionID:     sub.ID,
			Status:           sub.Status,
			SubmittedAt:      sub.SubmittedAt,
			AlreadySubmitted: true,
		}, nil
	}

	if err := f.checkComplete(sub); err != nil {
		log.Warn("submission rejected", map[string]interface{}{"error": err})
		return nil, err
	}

	now := f.now()
	err = f.store.Update(ctx, models.TableSubmissions, id, store.Record{
		"status":       string(models.StatusSubmitted),
		"submitted_at": now,
		"updated_at":   now,
	})
	if err != nil {
		log.Error("failed to mark submission submitted", map[string]interface{}{"error": err})
		if store.IsDeadline(err) || ctx.Err() == context.DeadlineExceeded {
			return nil, apperrors.NewTimeoutError("data store", err)
		}
		return nil, apperrors.NewSubmissionWriteFailedError(id, err)
	}
	sub.Status = models.StatusSubmitted
	sub.SubmittedAt = &now

	res := &Result{SubmissionID: id, Status: models.StatusSubmitted, SubmittedAt: &now}

	if !sub.HasCredentials() {
		issued, err := f.issueCredentials(ctx, sub)
		if err != nil {
			log.Error("credential issuance failed after submit", map[string]interface{}{"error": err})
			res.Warnings = append(res.Warnings, warningFrom(err, apperrors.ErrCodeCredentialIssuanceFailed))
		} else {
			res.Credentials = issued
		}
	}

	payload := notify.Payload{
		Applicant: models.ApplicantFrom(sub),
		Data:      map[string]interface{}{"status": string(sub.Status)},
	}
	if res.Credentials != nil {
		payload.OneTimePassword = res.Credentials.Password
	}
	err = f.notifier.Notify(ctx, models.EventOnboardingCompleted, payload)
	if err != nil {
		log.Warn("onboarding.completed notification failed", map[string]interface{}{"error": err})
		res.Warnings = append(res.Warnings, warningFrom(err, apperrors.ErrCodeNotificationSendFailed))
	}

	log.Info("submission finalized", map[string]interface{}{
		"credentialsIssued": res.Credentials != nil,
		"warnings":          len(res.Warnings),
	})
	return res, nil
}

// checkComplete requires the record to sit on its last step with every required step valid.
func (f *Finalizer) checkComplete(sub *models.OnboardingSubmission) error {
	failing, fieldErrs, err := f.registry.ValidateSubmission(sub, 0)
	if err != nil {
		return apperrors.NewSubmissionWriteFailedError(sub.ID, err)
	}
	if len(failing) > 0 {
		return apperrors.NewValidationFailedError(failing, fieldErrs)
	}

	last := f.registry.Count(sub)
	if sub.CurrentStep < last {
		next, _ := f.registry.At(sub, sub.CurrentStep+1)
		return apperrors.NewStepNotReachableError(last, next.Key)
	}
	if !sub.Status.CanTransition(models.StatusSubmitted) {
		return apperrors.NewInvalidStatusError(string(sub.Status), string(models.StatusSubmitted))
	}
	return nil
}

// issueCredentials persists only the hash. The plaintext is returned when the write succeeds.
func (f *Finalizer) issueCredentials(ctx context.Context, sub *models.OnboardingSubmission) (*credentials.Issued, error) {
	issued, err := f.issuer.Issue(ctx, sub)
	if err != nil {
		return nil, err
	}

	now := f.now()
	err = f.store.Update(ctx, models.TableSubmissions, sub.ID, store.Record{
		"company_email":         issued.CompanyEmail,
		"username":              issued.Username,
		"password_hash":         issued.PasswordHash,
		"credentials_issued_at": now,
		"updated_at":            now,
	})
	if err != nil {
		return nil, apperrors.NewCredentialIssuanceFailedError(err)
	}

	sub.CompanyEmail = issued.CompanyEmail
	sub.Username = issued.Username
	sub.PasswordHash = issued.PasswordHash
	sub.CredentialsIssuedAt = &now
	return issued, nil
}

// Complete is the admin transition submitted -> completed.
func (f *Finalizer) Complete(ctx context.Context, id string) (*models.OnboardingSubmission, error) {
	done := f.obs.Track(ctx, "complete")

	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	sub, err := f.load(ctx, id)
	if err != nil {
		done(metrics.OutcomeFailure)
		return nil, err
	}
	if !sub.Status.CanTransition(models.StatusCompleted) {
		done(metrics.OutcomeRejected)
		return nil, apperrors.NewInvalidStatusError(string(sub.Status), string(models.StatusCompleted))
	}

	now := f.now()
	err = f.store.Update(ctx, models.TableSubmissions, id, store.Record{
		"status":       string(models.StatusCompleted),
		"completed_at": now,
		"updated_at":   now,
	})
	if err != nil {
		done(metrics.OutcomeFailure)
		return nil, apperrors.NewSubmissionWriteFailedError(id, err)
	}

	sub.Status = models.StatusCompleted
	sub.CompletedAt = &now
	sub.UpdatedAt = now
	f.logger.Info("submission completed", map[string]interface{}{"submissionId": id})
	done(metrics.OutcomeSuccess)
	return sub, nil
}

func (f *Finalizer) load(ctx context.Context, id string) (*models.OnboardingSubmission, error) {
	rec, err := f.store.Get(ctx, models.TableSubmissions, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewSessionNotFoundError("submission " + id)
	}
	if err != nil {
		if store.IsDeadline(err) {
			return nil, apperrors.NewTimeoutError("data store", err)
		}
		return nil, apperrors.NewDatabaseConnectionFailedError(err)
	}
	return models.SubmissionFromRecord(rec)
}

func warningFrom(err error, fallback apperrors.ErrorCode) Warning {
	if std, ok := apperrors.AsStandard(err); ok {
		return Warning{Code: std.Code, Message: std.Message}
	}
	return Warning{Code: fallback, Message: err.Error()}
}

func errCode(err error) apperrors.ErrorCode {
	if std, ok := apperrors.AsStandard(err); ok {
		return std.Code
	}
	return ""
}
