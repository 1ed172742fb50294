// Package wizard drives one onboarding session through the dynamic step list: Next saves
// and advances, Back and JumpToStep move without writing, Submit hands off to the
// submission finalizer.
package wizard

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "crew-onboarding/internal/common/errors"
	"crew-onboarding/internal/common/logger"
	"crew-onboarding/internal/common/metrics"
	"crew-onboarding/internal/common/observability"
	"crew-onboarding/internal/models"
	"crew-onboarding/internal/notify"
	"crew-onboarding/internal/steps"
	"crew-onboarding/internal/submission"

	"github.com/google/uuid"
)

// Transition names, used as metric labels.
const (
	TransitionNext   = "next"
	TransitionBack   = "back"
	TransitionJump   = "jump"
	TransitionSubmit = "submit"
	TransitionAttach = "attach"
)

// Drafts is satisfied by *drafts.Service.
type Drafts interface {
	SaveDraft(ctx context.Context, submissionID *string, stepKey string, data models.StepData, currentStep int) (string, error)
	SaveFirstDraft(ctx context.Context, reservedID string, stepKey string, data models.StepData, currentStep int) (string, error)
	Load(ctx context.Context, id string) (*models.OnboardingSubmission, error)
}

// Submitter is satisfied by *submission.Finalizer.
type Submitter interface {
	Finalize(ctx context.Context, id string) (*submission.Result, error)
}

// Locker is satisfied by *database.RedisClient.
type Locker interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

type Dependencies struct {
	Registry      *steps.Registry
	Drafts        Drafts
	Submitter     Submitter
	Notifier      notify.Notifier
	Locker        Locker
	LockTTL       time.Duration
	LockPrefix    string
	Logger        logger.Logger
	Observability *observability.Observability
}

// Machine is not shared between sessions. Its busy flag rejects overlapping transitions on
// the same instance; the Locker does the same across processes, keyed by the submission id
// or, before the first save, by the session id.
type Machine struct {
	deps    Dependencies
	logger  logger.Logger
	session *models.WizardSession
	sub     *models.OnboardingSubmission

	mu           sync.Mutex
	busy         bool
	result       *submission.Result
	afterRelease []func(context.Context)
}

var submissionNamespace = uuid.MustParse("6f1c2a34-0b7e-5d4a-9c1e-3f0a8b2d7e51")

// ReservedSubmissionID is the id the first draft of sessionID is created under. Every
// request on the session derives the same id, so a lost insert reply or a second process
// merges into the one row instead of creating another.
func ReservedSubmissionID(sessionID string) string {
	return uuid.NewSHA1(submissionNamespace, []byte(sessionID)).String()
}

// New wraps session. sub is the stored submission, or nil before the first save.
func New(session *models.WizardSession, sub *models.OnboardingSubmission, deps Dependencies) *Machine {
	if deps.Registry == nil {
		deps.Registry = steps.Default()
	}
	if deps.LockTTL <= 0 {
		deps.LockTTL = 30 * time.Second
	}
	if deps.LockPrefix == "" {
		deps.LockPrefix = "onboarding"
	}
	if session.Buffer == nil {
		session.Buffer = make(map[string]models.StepData)
	}
	if session.CurrentIndex < 1 {
		session.CurrentIndex = 1
	}
	if sub != nil && !sub.Status.IsOpen() {
		session.Submitted = true
	}
	return &Machine{
		deps:    deps,
		logger:  logger.ForComponent(deps.Logger, "wizard").WithFields(map[string]interface{}{"sessionId": session.ID}),
		session: session,
		sub:     sub,
	}
}

// Resume rebuilds a session from a stored submission. The position is the stored
// current_step, capped at the submission's step count.
func Resume(ctx context.Context, deps Dependencies, sessionID, submissionID string) (*Machine, error) {
	sub, err := deps.Drafts.Load(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	session := models.NewWizardSession(sessionID)
	session.SubmissionID = sub.ID

	m := New(session, sub, deps)
	total := m.deps.Registry.Count(sub)
	pos := sub.CurrentStep
	if pos > total {
		pos = total
	}
	if pos < 1 {
		pos = 1
	}
	session.CurrentIndex = pos
	session.FurthestIndex = pos

	m.logger.Info("session resumed", map[string]interface{}{
		"submissionId": sub.ID,
		"currentIndex": pos,
		"total":        total,
	})
	return m, nil
}

// Session returns the session value to persist after a transition.
func (m *Machine) Session() *models.WizardSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Submission returns the last known stored state, or nil before the first save.
func (m *Machine) Submission() *models.OnboardingSubmission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sub
}

// Result returns the submission result of the Submit call made on this machine.
func (m *Machine) Result() *submission.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.result
}

// Steps is the dynamic step list for the current submission state.
func (m *Machine) Steps() []steps.Definition {
	return m.deps.Registry.StepsFor(m.sub)
}

// Current returns the step at the session's position.
func (m *Machine) Current() steps.Definition {
	list := m.Steps()
	idx := m.session.CurrentIndex
	if idx > len(list) {
		idx = len(list)
	}
	return list[idx-1]
}

// Next validates data for the current step, saves it and moves to the next required step.
// Validation errors and failed saves leave the position unchanged.
func (m *Machine) Next(ctx context.Context, data models.StepData) error {
	return m.transition(ctx, TransitionNext, true, func(ctx context.Context) error {
		return m.next(ctx, data)
	})
}

func (m *Machine) next(ctx context.Context, data models.StepData) error {
	def := m.Current()
	log := m.logger.WithFields(map[string]interface{}{"stepKey": def.Key})

	working, err := m.stepData(def.Key)
	if err != nil {
		return apperrors.NewDraftSaveFailedError(def.Key, err)
	}
	for k, v := range data {
		working[k] = v
	}

	m.mu.Lock()
	m.session.Stage(def.Key, data)
	m.mu.Unlock()

	res := def.Validate(working)
	if !res.Valid {
		log.Debug("step rejected", map[string]interface{}{"errors": len(res.Errors)})
		return apperrors.NewValidationFailedError([]string{def.Key}, res.FieldErrors(def.Key))
	}

	next, err := applyStep(m.sub, def, working)
	if err != nil {
		return apperrors.NewDraftSaveFailedError(def.Key, err)
	}
	list := m.deps.Registry.StepsFor(next)
	target, _ := m.deps.Registry.IndexOf(next, def.Key)
	if target < len(list) {
		target++
	}

	var id string
	if existing := m.session.SubmissionID; existing != "" {
		id, err = m.deps.Drafts.SaveDraft(ctx, &existing, def.Key, working, target)
	} else {
		id, err = m.deps.Drafts.SaveFirstDraft(ctx, ReservedSubmissionID(m.session.ID), def.Key, working, target)
	}
	if err != nil {
		log.Warn("draft save failed, staying on step", map[string]interface{}{"error": err})
		return err
	}

	next.ID = id
	if next.CurrentStep < target {
		next.CurrentStep = target
	}
	if next.Status == "" {
		next.Status = models.StatusDraft
	}
	if next.Status == models.StatusDraft && next.CurrentStep > 1 {
		next.Status = models.StatusInProgress
	}

	m.mu.Lock()
	m.sub = next
	m.session.SubmissionID = id
	delete(m.session.Buffer, def.Key)
	m.session.CurrentIndex = target
	if target > m.session.FurthestIndex {
		m.session.FurthestIndex = target
	}
	m.session.UpdatedAt = time.Now().UTC()
	m.mu.Unlock()

	log.Info("step saved", map[string]interface{}{"submissionId": id, "currentIndex": target})

	payload := notify.Payload{
		Applicant: models.ApplicantFrom(next),
		Data:      map[string]interface{}{"stepKey": def.Key, "currentStep": target, "total": len(list)},
	}
	m.onRelease(func(ctx context.Context) {
		if err := m.deps.Notifier.Notify(ctx, models.EventStepSaved, payload); err != nil {
			log.Warn("step_saved notification failed", map[string]interface{}{"error": err})
		}
	})
	return nil
}

// onRelease queues fn to run once the current transition has released its locks.
func (m *Machine) onRelease(fn func(context.Context)) {
	m.mu.Lock()
	m.afterRelease = append(m.afterRelease, fn)
	m.mu.Unlock()
}

// Attach writes a subset of a step's fields without validating the whole step or moving.
// Uploaded files land here. Before the first save the values are only buffered.
func (m *Machine) Attach(ctx context.Context, stepKey string, data models.StepData) error {
	def, ok := m.deps.Registry.Lookup(stepKey)
	if !ok {
		return apperrors.NewUnknownStepError(stepKey)
	}
	return m.transition(ctx, TransitionAttach, true, func(ctx context.Context) error {
		if m.session.SubmissionID == "" {
			m.mu.Lock()
			m.session.Stage(stepKey, data)
			m.mu.Unlock()
			return nil
		}

		next, err := applyStep(m.sub, def, data)
		if err != nil {
			return apperrors.NewDraftSaveFailedError(stepKey, err)
		}
		id := m.session.SubmissionID
		if _, err := m.deps.Drafts.SaveDraft(ctx, &id, stepKey, data, next.CurrentStep); err != nil {
			return err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		m.sub = next
		m.session.Stage(stepKey, data)
		m.session.UpdatedAt = time.Now().UTC()
		m.logger.Info("fields attached", map[string]interface{}{"submissionId": id, "stepKey": stepKey, "fields": len(data)})
		return nil
	})
}

// Back moves one step back without writing. Buffered edits are kept.
func (m *Machine) Back(ctx context.Context) error {
	return m.transition(ctx, TransitionBack, false, func(ctx context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.session.CurrentIndex > 1 {
			m.session.CurrentIndex--
			m.session.UpdatedAt = time.Now().UTC()
		}
		return nil
	})
}

// JumpToStep moves to n when every earlier step validates against the stored submission.
func (m *Machine) JumpToStep(ctx context.Context, n int) error {
	return m.transition(ctx, TransitionJump, false, func(ctx context.Context) error {
		list := m.Steps()
		if n < 1 || n > len(list) {
			return apperrors.NewStepNotReachableError(n, "")
		}
		for _, d := range list[:n-1] {
			if m.sub == nil {
				return apperrors.NewStepNotReachableError(n, d.Key)
			}
			res, err := m.deps.Registry.ValidateStored(m.sub, d.Key)
			if err != nil {
				return err
			}
			if !res.Valid {
				return apperrors.NewStepNotReachableError(n, d.Key)
			}
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		m.session.CurrentIndex = n
		if n > m.session.FurthestIndex {
			m.session.FurthestIndex = n
		}
		m.session.UpdatedAt = time.Now().UTC()
		return nil
	})
}

// Submit finalizes the submission from the last step. Once submitted, further calls return
// the stored result without side effects.
func (m *Machine) Submit(ctx context.Context) (*submission.Result, error) {
	var res *submission.Result
	err := m.transition(ctx, TransitionSubmit, true, func(ctx context.Context) error {
		if !m.session.Submitted {
			list := m.Steps()
			if m.sub == nil || m.session.CurrentIndex != len(list) {
				return apperrors.NewStepNotReachableError(len(list), m.Current().Key)
			}
		}

		out, err := m.deps.Submitter.Finalize(ctx, m.session.SubmissionID)
		if err != nil {
			return err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		m.session.Submitted = true
		m.session.UpdatedAt = time.Now().UTC()
		if m.sub != nil {
			m.sub.Status = out.Status
			m.sub.SubmittedAt = out.SubmittedAt
		}
		if !out.AlreadySubmitted || m.result == nil {
			m.result = out
		}
		res = out
		return nil
	})
	return res, err
}

// transition serializes fn on this machine and, when lock is set, across processes. Work
// queued with onRelease runs after the locks are dropped and only when fn succeeded.
func (m *Machine) transition(ctx context.Context, name string, lock bool, fn func(context.Context) error) error {
	done := m.deps.Observability.Track(ctx, "wizard."+name)

	release, err := m.begin(ctx, name, lock)
	if err != nil {
		outcome := metrics.OutcomeRejected
		metrics.WizardTransitions.WithLabelValues(name, outcome).Inc()
		done(outcome)
		return err
	}

	var pending []func(context.Context)
	func() {
		defer func() {
			m.mu.Lock()
			pending, m.afterRelease = m.afterRelease, nil
			m.mu.Unlock()
			release()
		}()
		err = fn(ctx)
	}()

	if err != nil {
		outcome := metrics.OutcomeFailure
		if std, ok := apperrors.AsStandard(err); ok && !std.Retryable {
			outcome = metrics.OutcomeRejected
		}
		metrics.WizardTransitions.WithLabelValues(name, outcome).Inc()
		done(outcome)
		return err
	}

	for _, f := range pending {
		f(ctx)
	}

	metrics.WizardTransitions.WithLabelValues(name, metrics.OutcomeSuccess).Inc()
	done(metrics.OutcomeSuccess)
	return nil
}

func (m *Machine) begin(ctx context.Context, name string, lock bool) (func(), error) {
	m.mu.Lock()
	if m.session.Submitted && name != TransitionSubmit {
		m.mu.Unlock()
		return nil, apperrors.NewWizardClosedError(m.session.SubmissionID)
	}
	if m.busy {
		m.mu.Unlock()
		return nil, apperrors.NewTransitionInProgressError(m.session.SubmissionID)
	}
	m.busy = true
	id := m.session.SubmissionID
	m.mu.Unlock()

	unbusy := func() {
		m.mu.Lock()
		m.busy = false
		m.mu.Unlock()
	}

	if !lock || m.deps.Locker == nil {
		return unbusy, nil
	}

	// A session without a record locks the id its first save will use, so a stale copy
	// and an up-to-date copy of one session contend on the same key.
	if id == "" {
		id = ReservedSubmissionID(m.session.ID)
	}
	key := m.lockKey(id)
	token := uuid.NewString()
	ok, err := m.deps.Locker.AcquireLock(ctx, key, token, m.deps.LockTTL)
	if err != nil {
		unbusy()
		m.logger.Error("transition lock unavailable", map[string]interface{}{"key": key, "error": err})
		return nil, apperrors.NewDatabaseConnectionFailedError(err)
	}
	if !ok {
		unbusy()
		return nil, apperrors.NewTransitionInProgressError(id)
	}

	return func() {
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := m.deps.Locker.ReleaseLock(rctx, key, token); err != nil {
			m.logger.Warn("failed to release transition lock", map[string]interface{}{"key": key, "error": err})
		}
		unbusy()
	}, nil
}

func (m *Machine) lockKey(submissionID string) string {
	return fmt.Sprintf("%s:lock:%s", m.deps.LockPrefix, submissionID)
}

// StepData returns what the form for key should show: stored values overlaid with
// buffered edits.
func (m *Machine) StepData(key string) (models.StepData, error) {
	if _, ok := m.deps.Registry.Lookup(key); !ok {
		return nil, apperrors.NewUnknownStepError(key)
	}
	return m.stepData(key)
}

func (m *Machine) stepData(key string) (models.StepData, error) {
	out := models.StepData{}
	if m.sub != nil {
		stored, err := m.deps.Registry.StepData(m.sub, key)
		if err != nil {
			return nil, err
		}
		out = stored
	}
	for k, v := range m.session.BufferFor(key) {
		out[k] = v
	}
	return out, nil
}

// applyStep returns a copy of sub with the step's fields from data, mirroring what the
// draft save writes.
func applyStep(sub *models.OnboardingSubmission, def steps.Definition, data models.StepData) (*models.OnboardingSubmission, error) {
	rec := map[string]interface{}{}
	if sub != nil {
		r, err := sub.ToRecord()
		if err != nil {
			return nil, err
		}
		rec = r
	}
	for _, f := range def.Fields {
		if v, ok := data[f]; ok {
			rec[f] = v
		}
	}
	if def.Key == steps.KeyAddress {
		if same, _ := data["same_as_mailing"].(bool); same {
			for _, f := range []string{"shipping_street", "shipping_city", "shipping_state", "shipping_zip"} {
				delete(rec, f)
			}
		}
	}
	return models.SubmissionFromRecord(rec)
}
