package api

import (
	"context"
	"net/http"

	apperrors "crew-onboarding/internal/common/errors"
	"crew-onboarding/internal/models"
	"crew-onboarding/internal/wizard"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// machineOp runs against a rebuilt machine. A nil body renders the session view.
type machineOp func(ctx context.Context, m *wizard.Machine) (interface{}, error)

// withMachine resolves the token, rebuilds the machine, runs op and saves the session even
// when op fails, so staged edits survive a rejected step.
func (s *Server) withMachine(w http.ResponseWriter, r *http.Request, op machineOp) {
	s.runMachine(w, r, op, false)
}

// runMachine is withMachine with optional teardown: when closeOnSuccess is set and op
// succeeds, the session is deleted instead of saved and its token stops resolving.
func (s *Server) runMachine(w http.ResponseWriter, r *http.Request, op machineOp, closeOnSuccess bool) {
	ctx := r.Context()

	sess, err := s.deps.Sessions.Resolve(ctx, mux.Vars(r)["token"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var sub *models.OnboardingSubmission
	if sess.SubmissionID != "" {
		sub, err = s.deps.Wizard.Drafts.Load(ctx, sess.SubmissionID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	m := wizard.New(sess, sub, s.deps.Wizard)
	body, opErr := op(ctx, m)

	if opErr == nil && closeOnSuccess {
		if err := s.deps.Sessions.Delete(ctx, sess.ID); err != nil {
			s.logger.Warn("session not deleted after submit", map[string]interface{}{"sessionId": sess.ID, "error": err})
		}
	} else if err := s.deps.Sessions.Save(ctx, m.Session()); err != nil {
		if opErr == nil {
			opErr = err
		} else {
			s.logger.Warn("session not saved after failed operation", map[string]interface{}{"sessionId": sess.ID, "error": err})
		}
	}
	if opErr != nil {
		s.writeError(w, r, opErr)
		return
	}

	if body == nil {
		view, err := m.View()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		body = view
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := s.decode(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()

	var (
		m     *wizard.Machine
		token string
	)
	if req.SubmissionID == "" {
		sess, t, err := s.deps.Sessions.Start(ctx)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		m, token = wizard.New(sess, nil, s.deps.Wizard), t
	} else {
		resumed, err := wizard.Resume(ctx, s.deps.Wizard, uuid.NewString(), req.SubmissionID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.deps.Sessions.Save(ctx, resumed.Session()); err != nil {
			s.writeError(w, r, err)
			return
		}
		t, err := s.deps.Sessions.IssueToken(resumed.Session())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		m, token = resumed, t
	}

	view, err := m.View()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Token: token, View: view})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	s.withMachine(w, r, func(ctx context.Context, m *wizard.Machine) (interface{}, error) {
		return nil, nil
	})
}

// saveStep runs Next for key. A step other than the current one is jumped to first, which
// only succeeds when every earlier step is complete.
func (s *Server) saveStep(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	var data models.StepData
	if err := s.decode(r, &data, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.withMachine(w, r, func(ctx context.Context, m *wizard.Machine) (interface{}, error) {
		if _, ok := s.registry.Lookup(key); !ok {
			return nil, apperrors.NewUnknownStepError(key)
		}
		if m.Current().Key != key {
			idx, ok := s.registry.IndexOf(m.Submission(), key)
			if !ok {
				return nil, apperrors.NewStepNotReachableError(0, key)
			}
			if err := m.JumpToStep(ctx, idx); err != nil {
				return nil, err
			}
		}
		return nil, m.Next(ctx, data)
	})
}

func (s *Server) back(w http.ResponseWriter, r *http.Request) {
	s.withMachine(w, r, func(ctx context.Context, m *wizard.Machine) (interface{}, error) {
		return nil, m.Back(ctx)
	})
}

func (s *Server) jump(w http.ResponseWriter, r *http.Request) {
	var req jumpRequest
	if err := s.decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.withMachine(w, r, func(ctx context.Context, m *wizard.Machine) (interface{}, error) {
		return nil, m.JumpToStep(ctx, req.Step)
	})
}

// submit finalizes the submission and tears the session down. The response names the
// company account but never carries the one-time password.
func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	s.runMachine(w, r, func(ctx context.Context, m *wizard.Machine) (interface{}, error) {
		res, err := m.Submit(ctx)
		if err != nil {
			return nil, err
		}
		view, err := m.View()
		if err != nil {
			return nil, err
		}
		out := submitResponse{Result: res, View: view}
		if res.Credentials != nil {
			out.Account = &accountResponse{
				CompanyEmail: res.Credentials.CompanyEmail,
				Username:     res.Credentials.Username,
			}
		}
		if !res.Notified() {
			out.Notice = &Notice{Type: NoticeDelayed, Message: delayedMessage}
		}
		return out, nil
	}, true)
}
