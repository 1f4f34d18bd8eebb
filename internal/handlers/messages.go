package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/diewo77/arte/internal/apperr"
	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/httpx"
	"github.com/diewo77/arte/internal/messaging"
	"github.com/diewo77/arte/internal/models"
	"github.com/diewo77/arte/internal/policy"
	"gorm.io/gorm"
)

// NewMessageResource serves list/show/update/delete on /api/messages. Only
// the read flag can change; sending goes through MessageHandler.Send.
func NewMessageResource(db *gorm.DB, g *policy.Gate) *Resource[models.Message] {
	return &Resource[models.Message]{
		Name:    policy.Messages,
		DB:      db,
		Gate:    g,
		Columns: []string{"read", "read_at"},
		Scope:   policy.ScopeMessages,
		Filter: func(db *gorm.DB, q url.Values) *gorm.DB {
			if q.Get("unread") == "1" {
				db = db.Where("read = ?", false)
			}
			return db
		},
		Apply: func(r *http.Request, _ auth.Actor, m *models.Message) error {
			var p struct {
				Read *bool `json:"read"`
			}
			if err := httpx.DecodeJSON(r, &p); err != nil {
				return err
			}
			if p.Read == nil {
				return apperr.Field("read", "required")
			}
			if *p.Read && !m.Read {
				now := timeNow()
				m.ReadAt = &now
			}
			if !*p.Read {
				m.ReadAt = nil
			}
			m.Read = *p.Read
			return nil
		},
	}
}

type MessageHandler struct {
	svc *messaging.Service
}

func NewMessageHandler(svc *messaging.Service) *MessageHandler {
	return &MessageHandler{svc: svc}
}

// Send: POST /api/messages {"receiver_id": n, "content": "..."}
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var p struct {
		ReceiverID uint   `json:"receiver_id"`
		Content    string `json:"content"`
	}
	if err := httpx.DecodeJSON(r, &p); err != nil {
		httpx.Error(w, r, err)
		return
	}
	msg, err := h.svc.Send(r.Context(), actorOf(r), p.ReceiverID, p.Content)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, msg)
}

// Conversation: GET /api/messages/conversations/{userID}
func (h *MessageHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	other, err := strconv.ParseUint(r.PathValue("userID"), 10, 64)
	if err != nil || other == 0 {
		httpx.Error(w, r, apperr.NotFound(policy.Users))
		return
	}
	msgs, err := h.svc.Conversation(r.Context(), actorOf(r), uint(other))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// Inbox: GET /api/messages/inbox
func (h *MessageHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	in, err := h.svc.Inbox(r.Context(), actorOf(r), limit)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, in)
}

// Read: POST /api/messages/{id}/read
func (h *MessageHandler) Read(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		httpx.Error(w, r, apperr.NotFound(policy.Messages))
		return
	}
	msg, err := h.svc.MarkRead(r.Context(), actorOf(r), id)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, msg)
}
