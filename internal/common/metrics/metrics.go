// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WizardTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_wizard_transitions_total",
			Help: "Wizard transitions by type and outcome",
		},
		[]string{"transition", "outcome"},
	)

	DraftSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_draft_saves_total",
			Help: "Draft saves by step and outcome",
		},
		[]string{"step", "outcome"},
	)

	DraftSaveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "onboarding_draft_save_duration_seconds",
			Help: "Duration of draft saves in seconds",
		},
		[]string{"step"},
	)

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_submissions_total",
			Help: "Final submissions by outcome",
		},
		[]string{"outcome"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_notifications_total",
			Help: "Notification deliveries by channel and status",
		},
		[]string{"channel", "status"},
	)

	CredentialsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_credentials_issued_total",
			Help: "Credential issuance attempts by outcome",
		},
		[]string{"outcome"},
	)

	BadgeUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_badge_uploads_total",
			Help: "Badge photo uploads by outcome",
		},
		[]string{"outcome"},
	)

	Uploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_uploads_total",
			Help: "Stored uploads by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_http_requests_total",
			Help: "API requests by route and status class",
		},
		[]string{"route", "method", "status"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)
)

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
	OutcomeRepeat   = "repeat"
)
