package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/diewo77/arte/internal/apperr"
	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/document"
	"github.com/diewo77/arte/internal/gate"
	"github.com/diewo77/arte/internal/httpx"
	"github.com/diewo77/arte/internal/logging"
	"github.com/diewo77/arte/internal/metrics"
	"github.com/diewo77/arte/internal/models"
	"github.com/diewo77/arte/internal/notify"
	"github.com/diewo77/arte/internal/policy"
	"github.com/diewo77/arte/internal/storage"
	"github.com/diewo77/arte/internal/validation"
	"gorm.io/gorm"
)

type stagePayload struct {
	ApplicationID *uint   `json:"application_id"`
	StagiaireID   *uint   `json:"stagiaire_id"`
	EncadreurID   *uint   `json:"encadreur_id"`
	Title         *string `json:"title"`
	Department    *string `json:"department"`
	StartDate     *string `json:"start_date"`
	EndDate       *string `json:"end_date"`
	Status        *string `json:"status"`
}

// userWithRole loads a user and checks its role.
func userWithRole(ctx context.Context, db *gorm.DB, id uint, role models.Role) (*models.User, bool) {
	var u models.User
	if err := db.WithContext(ctx).First(&u, id).Error; err != nil || u.Role != role {
		return nil, false
	}
	return &u, true
}

func (p stagePayload) applyDetails(st *models.Stage, v validation.Violations) {
	setString(&st.Title, p.Title)
	setString(&st.Department, p.Department)
	if d, ok := parseOptionalDate("start_date", p.StartDate, v); ok {
		st.StartDate = d
	}
	if d, ok := parseOptionalDate("end_date", p.EndDate, v); ok {
		st.EndDate = d
	}
	if p.Status != nil {
		s := models.StageStatus(*p.Status)
		if !s.Valid() {
			v.Add("status", "invalid")
		} else {
			st.Status = s
		}
	}
	validation.MaxLen("title", st.Title, 255, v)
	validation.MaxLen("department", st.Department, 255, v)
	if st.StartDate != nil && st.EndDate != nil {
		validation.DateOrder("end_date", *st.StartDate, *st.EndDate, v)
	}
}

// NewStageResource serves /api/stages. Creating a stage from an application
// requires the application to be approved and without a stage.
func NewStageResource(db *gorm.DB, g *policy.Gate, n *notify.Notifier) *Resource[models.Stage] {
	return &Resource[models.Stage]{
		Name:    policy.Stages,
		DB:      db,
		Gate:    g,
		Columns: []string{"title", "department", "start_date", "end_date", "status"},
		Preload: []string{"Application", "Stagiaire", "Encadreur"},
		Scope:   policy.ScopeStages,
		Filter: func(db *gorm.DB, q url.Values) *gorm.DB {
			if s := q.Get("status"); s != "" {
				db = db.Where("status = ?", s)
			}
			if id, err := strconv.ParseUint(q.Get("encadreur_id"), 10, 64); err == nil {
				db = db.Where("encadreur_id = ?", id)
			}
			return db
		},
		Build: func(r *http.Request, a auth.Actor) (*models.Stage, error) {
			var p stagePayload
			if err := httpx.DecodeJSON(r, &p); err != nil {
				return nil, err
			}
			ctx := r.Context()
			v := make(validation.Violations)
			st := &models.Stage{Status: models.StageStatusOngoing}

			if p.ApplicationID != nil {
				app, err := stageCandidate(ctx, db, *p.ApplicationID)
				if err != nil {
					return nil, err
				}
				st.ApplicationID = &app.ID
				st.StartDate = dateOrNil(app.StartDate)
				st.EndDate = dateOrNil(app.EndDate)
				st.Department = app.Field
				if app.OwnerID != nil {
					st.StagiaireID = *app.OwnerID
				}
			}
			if p.StagiaireID != nil {
				st.StagiaireID = *p.StagiaireID
			}
			if st.StagiaireID == 0 {
				v.Add("stagiaire_id", "required")
			} else if _, ok := userWithRole(ctx, db, st.StagiaireID, models.RoleStagiaire); !ok {
				v.Add("stagiaire_id", "not_a_stagiaire")
			}
			if p.EncadreurID != nil {
				if _, ok := userWithRole(ctx, db, *p.EncadreurID, models.RoleEncadreur); !ok {
					v.Add("encadreur_id", "not_an_encadreur")
				}
				st.EncadreurID = p.EncadreurID
			}
			p.applyDetails(st, v)
			if !v.Empty() {
				return nil, apperr.Validation(v)
			}
			return st, nil
		},
		Apply: func(r *http.Request, _ auth.Actor, st *models.Stage) error {
			var p stagePayload
			if err := httpx.DecodeJSON(r, &p); err != nil {
				return err
			}
			v := make(validation.Violations)
			if p.ApplicationID != nil || p.StagiaireID != nil || p.EncadreurID != nil {
				v.Add("stage", "links_are_immutable")
			}
			p.applyDetails(st, v)
			if !v.Empty() {
				return apperr.Validation(v)
			}
			return nil
		},
		AfterCreate: func(ctx context.Context, tx *gorm.DB, _ auth.Actor, st *models.Stage) error {
			ev := notify.Event{
				Kind:  models.NotificationStageCreated,
				Title: "Stage cree",
				Body:  st.Title,
				Link:  fmt.Sprintf("/stages/%d", st.ID),
			}
			if err := n.Notify(ctx, tx, st.StagiaireID, ev); err != nil {
				return err
			}
			if st.EncadreurID != nil {
				return n.Notify(ctx, tx, *st.EncadreurID, ev)
			}
			return nil
		},
	}
}

// StageHandler serves supervisor reassignment and document generation.
type StageHandler struct {
	res          *Resource[models.Stage]
	db           *gorm.DB
	gate         *policy.Gate
	notify       *notify.Notifier
	generator    *document.Generator
	store        storage.Store
	organization string
	now          func() time.Time
}

func NewStageHandler(res *Resource[models.Stage], g *policy.Gate, n *notify.Notifier, gen *document.Generator, store storage.Store, organization string) *StageHandler {
	return &StageHandler{res: res, db: res.DB, gate: g, notify: n, generator: gen, store: store, organization: organization, now: time.Now}
}

// Assign: POST /api/stages/{id}/assign {"encadreur_id": n}
func (h *StageHandler) Assign(w http.ResponseWriter, r *http.Request) {
	st, err := h.res.Find(r, policy.ActionAssign)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	var p struct {
		EncadreurID uint `json:"encadreur_id"`
	}
	if err := httpx.DecodeJSON(r, &p); err != nil {
		httpx.Error(w, r, err)
		return
	}
	ctx := r.Context()
	if _, ok := userWithRole(ctx, h.db, p.EncadreurID, models.RoleEncadreur); !ok {
		httpx.Error(w, r, apperr.Field("encadreur_id", "not_an_encadreur"))
		return
	}
	if st.SupervisedBy(p.EncadreurID) {
		httpx.JSON(w, http.StatusOK, st)
		return
	}
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Stage{}).Where("id = ?", st.ID).Update("encadreur_id", p.EncadreurID).Error; err != nil {
			return err
		}
		return h.notify.Notify(ctx, tx, p.EncadreurID, notify.Event{
			Kind:  models.NotificationStageCreated,
			Title: "Nouveau stagiaire a encadrer",
			Body:  st.Title,
			Link:  fmt.Sprintf("/stages/%d", st.ID),
		})
	})
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	logging.FromContext(ctx).WithField("stage_id", st.ID).WithField("encadreur_id", p.EncadreurID).Info("stage supervisor reassigned")
	updated, err := h.res.Load(ctx, st.ID)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

// Generate: GET /api/stages/{id}/documents/{kind}[?save=1]
// Renders an internship letter or completion certificate for the stage.
// With save=1 the artifact is also stored as a pending Document.
func (h *StageHandler) Generate(w http.ResponseWriter, r *http.Request) {
	st, err := h.res.Find(r, gate.ActionView)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	kind := models.DocumentKind(r.PathValue("kind"))
	art, err := h.generator.Generate(kind, document.FromStage(st, h.organization, h.now()))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	metrics.RecordDocument(string(kind))

	if r.URL.Query().Get("save") == "1" {
		doc, err := h.save(r.Context(), actorOf(r), st, kind, art)
		if err != nil {
			httpx.Error(w, r, err)
			return
		}
		w.Header().Set("X-Document-ID", strconv.FormatUint(uint64(doc.ID), 10))
	}

	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.Bytes)
}

func (h *StageHandler) save(ctx context.Context, a auth.Actor, st *models.Stage, kind models.DocumentKind, art *document.Artifact) (*models.Document, error) {
	doc := &models.Document{
		OwnerID:     a.ID,
		StageID:     &st.ID,
		Stage:       st,
		Kind:        kind,
		Status:      models.DocumentStatusPending,
		Title:       art.FileName,
		FileName:    art.FileName,
		ContentType: art.ContentType,
		Size:        int64(len(art.Bytes)),
	}
	if err := h.gate.Authorize(ctx, a, gate.ActionCreate, policy.Documents, doc); err != nil {
		return nil, err
	}
	key, _, err := h.store.Save(ctx, "documents", ".pdf", bytes.NewReader(art.Bytes))
	if err != nil {
		return nil, err
	}
	doc.Path = key
	doc.Stage = nil
	if err := h.db.WithContext(ctx).Create(doc).Error; err != nil {
		if rerr := h.store.Remove(ctx, key); rerr != nil {
			logging.FromContext(ctx).WithError(rerr).Warn("remove generated document")
		}
		return nil, err
	}
	return doc, nil
}
