package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/diewo77/arte/internal/models"
	"github.com/diewo77/arte/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagingFlow(t *testing.T) {
	h := newHarness(t)
	s := testutil.User(t, h.db, models.RoleStagiaire, "s@arte.local")
	enc := testutil.User(t, h.db, models.RoleEncadreur, "enc@arte.local")
	outsider := testutil.User(t, h.db, models.RoleStagiaire, "x@arte.local")

	rec := h.do(t, http.MethodPost, "/api/messages", h.token(t, s), map[string]any{"receiver_id": enc.ID, "content": "Bonjour"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	msg := decode[models.Message](t, rec)
	assert.Equal(t, s.ID, msg.SenderID)
	assert.False(t, msg.Read)

	rec = h.do(t, http.MethodPost, "/api/messages", h.token(t, s), map[string]any{"receiver_id": s.ID, "content": "moi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/messages/inbox", h.token(t, enc), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Bonjour")

	rec = h.do(t, http.MethodGet, fmt.Sprintf("/api/messages/conversations/%d", s.ID), h.token(t, enc), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	conv := decode[struct {
		Messages []models.Message `json:"messages"`
	}](t, rec)
	require.Len(t, conv.Messages, 1)

	rec = h.do(t, http.MethodGet, fmt.Sprintf("/api/messages/%d", msg.ID), h.token(t, outsider), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, fmt.Sprintf("/api/messages/%d/read", msg.ID), h.token(t, s), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, fmt.Sprintf("/api/messages/%d/read", msg.ID), h.token(t, enc), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[models.Message](t, rec).Read)

	rec = h.do(t, http.MethodDelete, fmt.Sprintf("/api/messages/%d", msg.ID), h.token(t, s), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestNotifications(t *testing.T) {
	h := newHarness(t)
	rh := testutil.User(t, h.db, models.RoleRH, "rh@arte.local")
	s := testutil.User(t, h.db, models.RoleStagiaire, "s@arte.local")
	other := testutil.User(t, h.db, models.RoleStagiaire, "o@arte.local")

	rec := h.do(t, http.MethodPost, "/api/notifications", h.token(t, s), map[string]any{"user_id": other.ID, "title": "Salut"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	for _, title := range []string{"Reunion lundi", "Badge disponible"} {
		rec = h.do(t, http.MethodPost, "/api/notifications", h.token(t, rh), map[string]any{"user_id": s.ID, "title": title})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	first := decode[models.Notification](t, rec)

	rec = h.do(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", first.ID), h.token(t, other), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", first.ID), h.token(t, s), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.Notification](t, rec).Read)

	rec = h.do(t, http.MethodPost, "/api/notifications/read-all", h.token(t, s), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]int64](t, rec)["updated"])

	rec = h.do(t, http.MethodGet, "/api/notifications?unread=1", h.token(t, s), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode[struct {
		Total int64 `json:"total"`
	}](t, rec).Total)
}
