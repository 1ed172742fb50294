// Package tasks records onboarding tasks a manager assigns to a new hire and announces them.
package tasks

import (
	"context"
	"errors"
	"time"

	apperrors "crew-onboarding/internal/common/errors"
	"crew-onboarding/internal/common/logger"
	"crew-onboarding/internal/models"
	"crew-onboarding/internal/notify"
	"crew-onboarding/internal/store"

	"github.com/google/uuid"
)

// Assignment is the request to assign one task.
type Assignment struct {
	Title       string
	Description string
	AssignedBy  string
	DueDate     string
}

// Result carries the stored row and whether the new hire was notified.
type Result struct {
	Task     models.TaskAssignment `json:"task"`
	Notified bool                  `json:"notified"`
}

type Service struct {
	store    store.Store
	notifier notify.Notifier
	logger   logger.Logger
	now      func() time.Time
}

func NewService(st store.Store, notifier notify.Notifier, log logger.Logger) *Service {
	return &Service{
		store:    st,
		notifier: notifier,
		logger:   logger.ForComponent(log, "tasks"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Assign stores the task and emits task.assigned. A failed notification does not undo the
// assignment.
func (s *Service) Assign(ctx context.Context, submissionID string, a Assignment) (*Result, error) {
	rec, err := s.store.Get(ctx, models.TableSubmissions, submissionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewSessionNotFoundError("submission " + submissionID)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseConnectionFailedError(err)
	}
	sub, err := models.SubmissionFromRecord(rec)
	if err != nil {
		return nil, apperrors.NewDatabaseConnectionFailedError(err)
	}

	now := s.now()
	task := models.TaskAssignment{
		ID:           uuid.NewString(),
		SubmissionID: submissionID,
		Title:        a.Title,
		Description:  a.Description,
		AssignedBy:   a.AssignedBy,
		DueDate:      a.DueDate,
		CreatedAt:    now.Format(time.RFC3339),
	}
	_, err = s.store.Create(ctx, models.TableTaskAssignments, store.Record{
		"id":            task.ID,
		"submission_id": task.SubmissionID,
		"title":         task.Title,
		"description":   task.Description,
		"assigned_by":   task.AssignedBy,
		"due_date":      task.DueDate,
		"created_at":    now,
	})
	if err != nil {
		s.logger.Error("failed to store task", map[string]interface{}{"submissionId": submissionID, "error": err})
		return nil, apperrors.NewSubmissionWriteFailedError(submissionID, err)
	}

	log := s.logger.WithFields(map[string]interface{}{"submissionId": submissionID, "taskId": task.ID})
	log.Info("task assigned", nil)

	res := &Result{Task: task, Notified: true}
	err = s.notifier.Notify(ctx, models.EventTaskAssigned, notify.Payload{
		Applicant: models.ApplicantFrom(sub),
		Data: map[string]interface{}{
			"taskId":          task.ID,
			"taskTitle":       task.Title,
			"taskDescription": task.Description,
			"dueDate":         task.DueDate,
			"assignedBy":      task.AssignedBy,
		},
	})
	if err != nil {
		log.Warn("task notification failed", map[string]interface{}{"error": err})
		res.Notified = false
	}
	return res, nil
}
