// Package workflow enforces the lifecycle of an application:
//
//	pending -> interview -> approved | rejected
//	pending -> approved | rejected
//
// approved and rejected are terminal.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/arte/internal/apperr"
	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/logging"
	"github.com/diewo77/arte/internal/metrics"
	"github.com/diewo77/arte/internal/models"
	"github.com/diewo77/arte/internal/notify"
	"github.com/diewo77/arte/internal/policy"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var transitions = map[models.ApplicationStatus][]models.ApplicationStatus{
	models.ApplicationStatusPending:   {models.ApplicationStatusInterview, models.ApplicationStatusApproved, models.ApplicationStatusRejected},
	models.ApplicationStatusInterview: {models.ApplicationStatusApproved, models.ApplicationStatusRejected},
}

// CanTransition reports whether from -> to is a legal move. Same-status
// moves are handled separately as no-ops and are not listed here.
func CanTransition(from, to models.ApplicationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EligibleForStage reports whether a stage may be created from app.
// app.Stage must be preloaded.
func EligibleForStage(app *models.Application) bool {
	return app != nil && app.Status == models.ApplicationStatusApproved && app.Stage == nil
}

// Request is a transition command.
type Request struct {
	Target      models.ApplicationStatus
	Reason      string
	InterviewAt *time.Time
}

// errStale is returned inside the transaction when another writer changed
// the status first.
var errStale = errors.New("application status changed concurrently")

// Service applies transitions.
type Service struct {
	db     *gorm.DB
	gate   *policy.Gate
	notify *notify.Notifier
	now    func() time.Time
}

func NewService(db *gorm.DB, g *policy.Gate, n *notify.Notifier) *Service {
	return &Service{db: db, gate: g, notify: n, now: time.Now}
}

// Transition moves application id to req.Target on behalf of actor.
//
// The actor is authorized before anything is read for mutation. A request
// for the current status returns the stored row unchanged. Otherwise the
// status, reason, interview date and decision time are written with a
// conditional update on the expected current status, and the owner is
// notified in the same transaction.
func (s *Service) Transition(ctx context.Context, actor auth.Actor, id uint, req Request) (*models.Application, error) {
	target, err := models.ParseApplicationStatus(string(req.Target))
	if err != nil {
		return nil, apperr.Field("status", "invalid")
	}
	req.Target = target
	log := logging.FromContext(ctx).WithFields(logrus.Fields{"application_id": id, "to": target})

	app, err := s.load(ctx, id)
	if apperr.IsNotFound(err) {
		// same answer as for an existing row unless the actor may transition any
		if aerr := s.gate.Authorize(ctx, actor, policy.ActionTransition, policy.Applications, nil); aerr != nil {
			return nil, aerr
		}
	}
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(ctx, actor, policy.ActionTransition, policy.Applications, app); err != nil {
		return nil, err
	}

	from := app.Status
	if from == req.Target {
		metrics.RecordTransition(string(from), string(req.Target), "noop")
		return app, nil
	}
	if !CanTransition(from, req.Target) {
		metrics.RecordTransition(string(from), string(req.Target), "rejected")
		return nil, apperr.Workflow(string(from), string(req.Target))
	}

	reason := strings.TrimSpace(req.Reason)
	if req.Target == models.ApplicationStatusRejected && reason == "" {
		return nil, apperr.Field("rejection_reason", "required")
	}

	updates := map[string]any{"status": req.Target}
	now := s.now()
	switch req.Target {
	case models.ApplicationStatusInterview:
		if req.InterviewAt != nil {
			updates["interview_at"] = *req.InterviewAt
		}
	case models.ApplicationStatusRejected:
		updates["rejection_reason"] = reason
		updates["decided_at"] = now
	case models.ApplicationStatusApproved:
		updates["decided_at"] = now
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Application{}).
			Where("id = ? AND status = ?", id, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errStale
		}
		if app.OwnerID == nil {
			return nil
		}
		return s.notify.Notify(ctx, tx, *app.OwnerID, notify.Event{
			Kind:  models.NotificationApplicationStatus,
			Title: fmt.Sprintf("Candidature %s: %s", app.Reference, statusLabel(req.Target)),
			Body:  reason,
			Link:  fmt.Sprintf("/applications/%d", id),
		})
	})
	if errors.Is(err, errStale) {
		metrics.RecordTransition(string(from), string(req.Target), "rejected")
		current, lerr := s.load(ctx, id)
		if lerr != nil {
			return nil, lerr
		}
		return nil, apperr.Workflow(string(current.Status), string(req.Target))
	}
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition(string(from), string(req.Target), "applied")
	log.WithField("from", from).Info("application transitioned")
	return s.load(ctx, id)
}

func (s *Service) load(ctx context.Context, id uint) (*models.Application, error) {
	var app models.Application
	if err := s.db.WithContext(ctx).Preload("Stage").First(&app, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(policy.Applications)
		}
		return nil, err
	}
	return &app, nil
}

func statusLabel(s models.ApplicationStatus) string {
	switch s {
	case models.ApplicationStatusInterview:
		return "entretien planifie"
	case models.ApplicationStatusApproved:
		return "acceptee"
	case models.ApplicationStatusRejected:
		return "refusee"
	}
	return string(s)
}
