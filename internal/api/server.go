// Package api exposes the onboarding wizard over HTTP. Each request rebuilds the wizard
// machine from the session token and the stored submission, runs one operation and mirrors
// the session back to the session store.
package api

import (
	"context"
	"net/http"
	"time"

	"crew-onboarding/internal/badge"
	"crew-onboarding/internal/common/logger"
	"crew-onboarding/internal/models"
	"crew-onboarding/internal/steps"
	"crew-onboarding/internal/storage"
	"crew-onboarding/internal/tasks"
	"crew-onboarding/internal/wizard"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SessionStore is satisfied by *session.Store.
type SessionStore interface {
	Start(ctx context.Context) (*models.WizardSession, string, error)
	IssueToken(sess *models.WizardSession) (string, error)
	Resolve(ctx context.Context, token string) (*models.WizardSession, error)
	Save(ctx context.Context, sess *models.WizardSession) error
	Delete(ctx context.Context, id string) error
}

// Completer is satisfied by *submission.Finalizer.
type Completer interface {
	Complete(ctx context.Context, id string) (*models.OnboardingSubmission, error)
}

// TaskAssigner is satisfied by *tasks.Service.
type TaskAssigner interface {
	Assign(ctx context.Context, submissionID string, a tasks.Assignment) (*tasks.Result, error)
}

// Check is one readiness dependency.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type Dependencies struct {
	Sessions       SessionStore
	Wizard         wizard.Dependencies
	Completer      Completer
	Tasks          TaskAssigner
	Documents      *storage.Documents
	Editor         badge.Editor
	Checks         []Check
	Logger         logger.Logger
	AllowedOrigins []string
	MaxUploadBytes int64
	Service        string
	Version        string
}

type Server struct {
	deps     Dependencies
	registry *steps.Registry
	logger   logger.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewServer(deps Dependencies) *Server {
	if deps.Wizard.Registry == nil {
		deps.Wizard.Registry = steps.Default()
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 25 << 20
	}
	if deps.Service == "" {
		deps.Service = "crew-onboarding"
	}
	return &Server{
		deps:     deps,
		registry: deps.Wizard.Registry,
		logger:   logger.ForComponent(deps.Logger, "api"),
		validate: newValidator(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Handler is the public API with CORS applied ahead of routing so preflight requests never
// reach the method matcher.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.Router())
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	v1 := r.PathPrefix("/v1/onboarding").Subrouter()

	v1.HandleFunc("/sessions", s.startSession).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{token}", s.getSession).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{token}/steps/{key}", s.saveStep).Methods(http.MethodPut)
	v1.HandleFunc("/sessions/{token}/back", s.back).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{token}/jump", s.jump).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{token}/submit", s.submit).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{token}/badge-photo", s.uploadBadgePhoto).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{token}/documents/{kind}", s.uploadDocument).Methods(http.MethodPost)

	v1.HandleFunc("/submissions/{id}", s.getSubmission).Methods(http.MethodGet)
	v1.HandleFunc("/submissions/{id}/complete", s.completeSubmission).Methods(http.MethodPost)
	v1.HandleFunc("/submissions/{id}/tasks", s.assignTask).Methods(http.MethodPost)

	return r
}

// OpsRouter serves liveness, readiness and Prometheus metrics.
func (s *Server) OpsRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.ready).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}
