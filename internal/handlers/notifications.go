package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/diewo77/arte/internal/apperr"
	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/gate"
	"github.com/diewo77/arte/internal/httpx"
	"github.com/diewo77/arte/internal/models"
	"github.com/diewo77/arte/internal/notify"
	"github.com/diewo77/arte/internal/policy"
	"github.com/diewo77/arte/internal/validation"
	"gorm.io/gorm"
)

var timeNow = time.Now

// NewNotificationResource serves /api/notifications. Staff may post manual
// notices; recipients toggle the read flag or delete.
func NewNotificationResource(db *gorm.DB, g *policy.Gate) *Resource[models.Notification] {
	return &Resource[models.Notification]{
		Name:    policy.Notifications,
		DB:      db,
		Gate:    g,
		Columns: []string{"read", "read_at"},
		Scope:   policy.ScopeNotifications,
		Filter: func(db *gorm.DB, q url.Values) *gorm.DB {
			if q.Get("unread") == "1" {
				db = db.Where("read = ?", false)
			}
			return db
		},
		Build: func(r *http.Request, _ auth.Actor) (*models.Notification, error) {
			var p struct {
				UserID uint   `json:"user_id"`
				Title  string `json:"title"`
				Body   string `json:"body"`
				Link   string `json:"link"`
			}
			if err := httpx.DecodeJSON(r, &p); err != nil {
				return nil, err
			}
			n := &models.Notification{
				UserID: p.UserID,
				Kind:   "notice",
				Title:  strings.TrimSpace(p.Title),
				Body:   strings.TrimSpace(p.Body),
				Link:   strings.TrimSpace(p.Link),
			}
			v := make(validation.Violations)
			if n.UserID == 0 {
				v.Add("user_id", "required")
			} else if err := db.WithContext(r.Context()).Select("id").First(&models.User{}, n.UserID).Error; err != nil {
				v.Add("user_id", "not_found")
			}
			validation.Required("title", n.Title, v)
			validation.MaxLen("title", n.Title, 255, v)
			if !v.Empty() {
				return nil, apperr.Validation(v)
			}
			return n, nil
		},
		Apply: func(r *http.Request, _ auth.Actor, n *models.Notification) error {
			var p struct {
				Read *bool `json:"read"`
			}
			if err := httpx.DecodeJSON(r, &p); err != nil {
				return err
			}
			if p.Read == nil {
				return apperr.Field("read", "required")
			}
			if *p.Read && !n.Read {
				now := timeNow()
				n.ReadAt = &now
			}
			if !*p.Read {
				n.ReadAt = nil
			}
			n.Read = *p.Read
			return nil
		},
	}
}

type NotificationHandler struct {
	gate   *policy.Gate
	notify *notify.Notifier
}

func NewNotificationHandler(g *policy.Gate, n *notify.Notifier) *NotificationHandler {
	return &NotificationHandler{gate: g, notify: n}
}

// Read: POST /api/notifications/{id}/read
func (h *NotificationHandler) Read(w http.ResponseWriter, r *http.Request) {
	a := actorOf(r)
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Error(w, r, apperr.NotFound(policy.Notifications))
		return
	}
	n, err := h.notify.MarkRead(r.Context(), a.ID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		httpx.Error(w, r, apperr.NotFound(policy.Notifications))
		return
	}
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, n)
}

// ReadAll: POST /api/notifications/read-all
func (h *NotificationHandler) ReadAll(w http.ResponseWriter, r *http.Request) {
	a := actorOf(r)
	if err := h.gate.Authorize(r.Context(), a, gate.ActionViewAny, policy.Notifications, nil); err != nil {
		httpx.Error(w, r, err)
		return
	}
	changed, err := h.notify.MarkAllRead(r.Context(), a.ID)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"updated": changed})
}
