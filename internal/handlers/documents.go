package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/diewo77/arte/internal/apperr"
	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/gate"
	"github.com/diewo77/arte/internal/httpx"
	"github.com/diewo77/arte/internal/logging"
	"github.com/diewo77/arte/internal/models"
	"github.com/diewo77/arte/internal/notify"
	"github.com/diewo77/arte/internal/policy"
	"github.com/diewo77/arte/internal/storage"
	"github.com/diewo77/arte/internal/validation"
	"gorm.io/gorm"
)

// uploadTypes maps accepted sniffed content types to stored extensions.
var uploadTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
}

// NewDocumentResource serves list/show/update/delete on /api/documents.
// Uploads go through DocumentHandler.Upload.
func NewDocumentResource(db *gorm.DB, g *policy.Gate) *Resource[models.Document] {
	return &Resource[models.Document]{
		Name:    policy.Documents,
		DB:      db,
		Gate:    g,
		Columns: []string{"title"},
		Preload: []string{"Stage", "Application", "Application.Stage"},
		Scope:   policy.ScopeDocuments,
		Filter: func(db *gorm.DB, q url.Values) *gorm.DB {
			if k := q.Get("kind"); k != "" {
				db = db.Where("kind = ?", k)
			}
			if s := q.Get("status"); s != "" {
				db = db.Where("status = ?", s)
			}
			if id, err := strconv.ParseUint(q.Get("stage_id"), 10, 64); err == nil {
				db = db.Where("stage_id = ?", id)
			}
			if id, err := strconv.ParseUint(q.Get("application_id"), 10, 64); err == nil {
				db = db.Where("application_id = ?", id)
			}
			return db
		},
		Apply: func(r *http.Request, _ auth.Actor, doc *models.Document) error {
			var p struct {
				Title *string `json:"title"`
			}
			if err := httpx.DecodeJSON(r, &p); err != nil {
				return err
			}
			setString(&doc.Title, p.Title)
			v := make(validation.Violations)
			validation.Required("title", doc.Title, v)
			validation.MaxLen("title", doc.Title, 255, v)
			if !v.Empty() {
				return apperr.Validation(v)
			}
			return nil
		},
	}
}

type DocumentHandler struct {
	res      *Resource[models.Document]
	db       *gorm.DB
	gate     *policy.Gate
	store    storage.Store
	notify   *notify.Notifier
	maxBytes int64
}

func NewDocumentHandler(res *Resource[models.Document], g *policy.Gate, store storage.Store, n *notify.Notifier, maxBytes int64) *DocumentHandler {
	return &DocumentHandler{res: res, db: res.DB, gate: g, store: store, notify: n, maxBytes: maxBytes}
}

// hydrate loads the stage and application a new document points at.
func (h *DocumentHandler) hydrate(ctx context.Context, doc *models.Document, v validation.Violations) {
	db := h.db.WithContext(ctx)
	if doc.StageID != nil {
		var st models.Stage
		if err := db.First(&st, *doc.StageID).Error; err != nil {
			v.Add("stage_id", "not_found")
		} else {
			doc.Stage = &st
		}
	}
	if doc.ApplicationID != nil {
		var app models.Application
		if err := db.Preload("Stage").First(&app, *doc.ApplicationID).Error; err != nil {
			v.Add("application_id", "not_found")
		} else {
			doc.Application = &app
		}
	}
}

func optionalID(field, raw string, v validation.Violations) *uint {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		v.Add(field, "invalid")
		return nil
	}
	u := uint(id)
	return &u
}

// Upload: POST /api/documents (multipart: file, kind, title, stage_id,
// application_id).
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a := actorOf(r)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.Error(w, r, apperr.Field("file", "too_large"))
			return
		}
		httpx.Error(w, r, apperr.BadRequest("invalid_multipart"))
		return
	}

	v := make(validation.Violations)
	doc := &models.Document{
		OwnerID: a.ID,
		Kind:    models.DocumentKind(r.FormValue("kind")),
		Status:  models.DocumentStatusPending,
		Title:   strings.TrimSpace(r.FormValue("title")),
	}
	if !doc.Kind.Valid() {
		v.Add("kind", "invalid")
	}
	validation.MaxLen("title", doc.Title, 255, v)
	doc.StageID = optionalID("stage_id", r.FormValue("stage_id"), v)
	doc.ApplicationID = optionalID("application_id", r.FormValue("application_id"), v)

	file, fh, err := r.FormFile("file")
	if err != nil {
		v.Add("file", "required")
	} else {
		defer file.Close()
		if fh.Size > h.maxBytes {
			v.Add("file", "too_large")
		}
	}
	var ext string
	if file != nil {
		head := make([]byte, 512)
		n, _ := io.ReadFull(file, head)
		ct := http.DetectContentType(head[:n])
		if e, ok := uploadTypes[ct]; ok {
			ext, doc.ContentType = e, ct
		} else {
			v.Add("file", "invalid_type")
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			v.Add("file", "unreadable")
		}
		doc.FileName = filepath.Base(fh.Filename)
		if doc.Title == "" {
			doc.Title = doc.FileName
		}
	}
	h.hydrate(ctx, doc, v)
	if !v.Empty() {
		httpx.Error(w, r, apperr.Validation(v))
		return
	}
	if err := h.gate.Authorize(ctx, a, gate.ActionCreate, policy.Documents, doc); err != nil {
		httpx.Error(w, r, err)
		return
	}

	key, size, err := h.store.Save(ctx, "documents", ext, file)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	doc.Path, doc.Size = key, size
	doc.Stage, doc.Application = nil, nil
	if err := h.db.WithContext(ctx).Create(doc).Error; err != nil {
		if rerr := h.store.Remove(ctx, key); rerr != nil {
			logging.FromContext(ctx).WithError(rerr).Warn("remove orphaned upload")
		}
		httpx.Error(w, r, err)
		return
	}
	h.res.reply(w, r, http.StatusCreated, doc)
}

// Download: GET /api/documents/{id}/download
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	doc, err := h.res.Find(r, gate.ActionView)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	name := doc.FileName
	if name == "" {
		name = fmt.Sprintf("document-%d%s", doc.ID, filepath.Ext(doc.Path))
	}
	serveStored(w, r, h.store, doc.Path, name, doc.ContentType)
}

// Review: POST /api/documents/{id}/status {"status": "approved|signed|sent"}
// Statuses only move forward. Encadreurs may only approve.
func (h *DocumentHandler) Review(w http.ResponseWriter, r *http.Request) {
	doc, err := h.res.Find(r, policy.ActionReview)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	var p struct {
		Status string `json:"status"`
	}
	if err := httpx.DecodeJSON(r, &p); err != nil {
		httpx.Error(w, r, err)
		return
	}
	a := actorOf(r)
	target := models.DocumentStatus(strings.TrimSpace(p.Status))
	if !target.Valid() {
		httpx.Error(w, r, apperr.Field("status", "invalid"))
		return
	}
	if a.Role == models.RoleEncadreur && target != models.DocumentStatusApproved {
		httpx.Error(w, r, gate.ErrForbidden)
		return
	}
	if doc.Status == target {
		httpx.JSON(w, http.StatusOK, doc)
		return
	}
	if !doc.Status.CanAdvanceTo(target) {
		httpx.Error(w, r, apperr.Workflow(string(doc.Status), string(target)))
		return
	}

	ctx := r.Context()
	from := doc.Status
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Document{}).Where("id = ? AND status = ?", doc.ID, from).Update("status", target)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Workflow(string(from), string(target))
		}
		if doc.OwnerID == a.ID {
			return nil
		}
		return h.notify.Notify(ctx, tx, doc.OwnerID, notify.Event{
			Kind:  models.NotificationDocumentStatus,
			Title: fmt.Sprintf("Document %s: %s", doc.Title, target),
			Link:  fmt.Sprintf("/documents/%d", doc.ID),
		})
	})
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	h.res.reply(w, r, http.StatusOK, doc)
}
