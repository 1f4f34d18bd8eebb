package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/diewo77/arte/internal/apperr"
	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/gate"
	"github.com/diewo77/arte/internal/httpx"
	"github.com/diewo77/arte/internal/models"
	"github.com/diewo77/arte/internal/policy"
	"github.com/diewo77/arte/internal/storage"
	"github.com/diewo77/arte/internal/submission"
	"github.com/diewo77/arte/internal/validation"
	"github.com/diewo77/arte/internal/workflow"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type applicationPayload struct {
	FullName   *string `json:"full_name"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	Field      *string `json:"field"`
	School     *string `json:"school"`
	Duration   *int    `json:"duration"`
	StartDate  *string `json:"start_date"`
	EndDate    *string `json:"end_date"`
	Motivation *string `json:"motivation"`
	OwnerID    *uint   `json:"owner_id"`
}

func (p applicationPayload) apply(app *models.Application, a auth.Actor) error {
	v := make(validation.Violations)
	setString(&app.FullName, p.FullName)
	setString(&app.Email, p.Email)
	setString(&app.Phone, p.Phone)
	setString(&app.Field, p.Field)
	setString(&app.School, p.School)
	setString(&app.Motivation, p.Motivation)
	app.Email = strings.ToLower(app.Email)
	if p.Duration != nil {
		app.Duration = *p.Duration
	}
	if d, ok := parseOptionalDate("start_date", p.StartDate, v); ok {
		app.StartDate = *d
	}
	if d, ok := parseOptionalDate("end_date", p.EndDate, v); ok {
		app.EndDate = *d
	}
	if p.OwnerID != nil {
		if !a.Role.IsStaff() {
			v.Add("owner_id", "not_allowed")
		} else {
			app.OwnerID = p.OwnerID
		}
	}

	validation.Required("full_name", app.FullName, v)
	validation.MaxLen("full_name", app.FullName, 255, v)
	validation.Required("email", app.Email, v)
	validation.Email("email", app.Email, v)
	validation.MaxLen("phone", app.Phone, 32, v)
	validation.Required("field", app.Field, v)
	validation.Required("school", app.School, v)
	validation.PositiveInt("duration", app.Duration, v)
	if app.StartDate.IsZero() {
		v.Add("start_date", "required")
	}
	if app.EndDate.IsZero() {
		v.Add("end_date", "required")
	}
	if !app.StartDate.IsZero() && !app.EndDate.IsZero() {
		validation.DateOrder("end_date", app.StartDate, app.EndDate, v)
	}
	if !v.Empty() {
		return apperr.Validation(v)
	}
	return nil
}

// NewApplicationResource serves /api/applications.
func NewApplicationResource(db *gorm.DB, g *policy.Gate) *Resource[models.Application] {
	return &Resource[models.Application]{
		Name:    policy.Applications,
		DB:      db,
		Gate:    g,
		Columns: []string{"owner_id", "full_name", "email", "phone", "field", "school", "duration", "start_date", "end_date", "motivation"},
		// Details never overwrite a decision taken since the row was loaded.
		Guard: func(db *gorm.DB, app *models.Application) *gorm.DB {
			return db.Where("status = ?", app.Status)
		},
		Preload: []string{"Stage", "Owner"},
		Scope:   policy.ScopeApplications,
		Filter: func(db *gorm.DB, q url.Values) *gorm.DB {
			if s := q.Get("status"); s != "" {
				if st, err := models.ParseApplicationStatus(s); err == nil {
					db = db.Where("status = ?", st)
				}
			}
			if term := strings.ToLower(strings.TrimSpace(q.Get("q"))); term != "" {
				like := "%" + term + "%"
				db = db.Where("(LOWER(full_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(reference) LIKE ?)", like, like, like)
			}
			return db
		},
		Build: func(r *http.Request, a auth.Actor) (*models.Application, error) {
			var p applicationPayload
			if err := httpx.DecodeJSON(r, &p); err != nil {
				return nil, err
			}
			app := &models.Application{
				Reference: "pending-" + uuid.NewString(),
				Status:    models.ApplicationStatusPending,
			}
			if a.Role == models.RoleStagiaire {
				app.OwnerID = &a.ID
			}
			if err := p.apply(app, a); err != nil {
				return nil, err
			}
			return app, nil
		},
		Apply: func(r *http.Request, a auth.Actor, app *models.Application) error {
			var p applicationPayload
			if err := httpx.DecodeJSON(r, &p); err != nil {
				return err
			}
			return p.apply(app, a)
		},
		AfterCreate: func(_ context.Context, tx *gorm.DB, _ auth.Actor, app *models.Application) error {
			app.Reference = models.ReferenceCode(app.ID)
			return tx.Model(app).Update("reference", app.Reference).Error
		},
	}
}

// ApplicationHandler serves the non-CRUD application routes: public
// submission, workflow transitions and stored attachments.
type ApplicationHandler struct {
	res        *Resource[models.Application]
	workflow   *workflow.Service
	submission *submission.Service
	store      storage.Store
	maxBytes   int64
}

func NewApplicationHandler(res *Resource[models.Application], wf *workflow.Service, sub *submission.Service, store storage.Store, maxBytes int64) *ApplicationHandler {
	return &ApplicationHandler{res: res, workflow: wf, submission: sub, store: store, maxBytes: maxBytes}
}

// Submit: POST /api/applications/submit (public, multipart).
func (h *ApplicationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	in, err := submission.FromRequest(w, r, h.maxBytes)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	var owner *auth.Actor
	if a, ok := auth.ActorFromContext(r.Context()); ok {
		owner = &a
	}
	app, err := h.submission.Submit(r.Context(), in, owner)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"reference":   app.Reference,
		"application": app,
	})
}

type transitionPayload struct {
	Status          string `json:"status"`
	Reason          string `json:"reason"`
	RejectionReason string `json:"rejection_reason"`
	InterviewAt     string `json:"interview_at"`
}

func (p transitionPayload) request(target models.ApplicationStatus) (workflow.Request, error) {
	v := make(validation.Violations)
	req := workflow.Request{
		Target:      target,
		Reason:      p.Reason,
		InterviewAt: parseMoment("interview_at", p.InterviewAt, v),
	}
	if req.Reason == "" {
		req.Reason = p.RejectionReason
	}
	if !v.Empty() {
		return req, apperr.Validation(v)
	}
	return req, nil
}

func (h *ApplicationHandler) transition(w http.ResponseWriter, r *http.Request, target models.ApplicationStatus) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Error(w, r, apperr.NotFound(policy.Applications))
		return
	}
	var p transitionPayload
	if err := decodeOptional(r, &p); err != nil {
		httpx.Error(w, r, err)
		return
	}
	if target == "" {
		if strings.TrimSpace(p.Status) == "" {
			httpx.Error(w, r, apperr.Field("status", "required"))
			return
		}
		target = models.ApplicationStatus(strings.TrimSpace(p.Status))
	}
	req, err := p.request(target)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	app, err := h.workflow.Transition(r.Context(), actorOf(r), id, req)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, app)
}

// Interview: POST /api/applications/{id}/interview
func (h *ApplicationHandler) Interview(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.ApplicationStatusInterview)
}

// Approve: POST /api/applications/{id}/approve
func (h *ApplicationHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.ApplicationStatusApproved)
}

// Reject: POST /api/applications/{id}/reject
func (h *ApplicationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.ApplicationStatusRejected)
}

// Transition: POST /api/applications/{id}/transition with an explicit status.
func (h *ApplicationHandler) Transition(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "")
}

// File: GET /api/applications/{id}/files/{slot}
func (h *ApplicationHandler) File(w http.ResponseWriter, r *http.Request) {
	app, err := h.res.Find(r, gate.ActionView)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	slot := r.PathValue("slot")
	key := app.FilePath(slot)
	name := fmt.Sprintf("%s-%s.pdf", strings.ToLower(app.Reference), slot)
	serveStored(w, r, h.store, key, name, "application/pdf")
}

// stageCandidate loads an application for stage creation.
func stageCandidate(ctx context.Context, db *gorm.DB, id uint) (*models.Application, error) {
	var app models.Application
	if err := db.WithContext(ctx).Preload("Stage").First(&app, id).Error; err != nil {
		return nil, apperr.Field("application_id", "not_found")
	}
	if !workflow.EligibleForStage(&app) {
		return nil, apperr.Conflict("application_not_eligible")
	}
	return &app, nil
}

// dateOrNil converts a zero time to nil.
func dateOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
