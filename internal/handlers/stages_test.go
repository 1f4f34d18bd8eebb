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

func TestAssignSupervisor(t *testing.T) {
	h := newHarness(t)
	rh := testutil.User(t, h.db, models.RoleRH, "rh@arte.local")
	stagiaire := testutil.User(t, h.db, models.RoleStagiaire, "s@arte.local")
	first := testutil.User(t, h.db, models.RoleEncadreur, "first@arte.local")
	second := testutil.User(t, h.db, models.RoleEncadreur, "second@arte.local")
	stage := testutil.Stage(t, h.db, stagiaire, &first)
	path := fmt.Sprintf("/api/stages/%d/assign", stage.ID)

	rec := h.do(t, http.MethodPost, path, h.token(t, first), map[string]any{"encadreur_id": second.ID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, path, h.token(t, rh), map[string]any{"encadreur_id": stagiaire.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, path, h.token(t, rh), map[string]any{"encadreur_id": second.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[models.Stage](t, rec)
	require.NotNil(t, got.EncadreurID)
	assert.Equal(t, second.ID, *got.EncadreurID)

	var notified int64
	require.NoError(t, h.db.Model(&models.Notification{}).Where("user_id = ?", second.ID).Count(&notified).Error)
	assert.Equal(t, int64(1), notified)

	// the previous supervisor loses access
	rec = h.do(t, http.MethodGet, fmt.Sprintf("/api/stages/%d", stage.ID), h.token(t, first), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStageCompletion(t *testing.T) {
	h := newHarness(t)
	admin := testutil.User(t, h.db, models.RoleAdmin, "admin@arte.local")
	rh := testutil.User(t, h.db, models.RoleRH, "rh@arte.local")
	enc := testutil.User(t, h.db, models.RoleEncadreur, "enc@arte.local")
	other := testutil.User(t, h.db, models.RoleEncadreur, "other@arte.local")
	stagiaire := testutil.User(t, h.db, models.RoleStagiaire, "s@arte.local")

	for _, u := range []models.User{admin, rh, enc} {
		stage := testutil.Stage(t, h.db, stagiaire, &enc)
		rec := h.do(t, http.MethodPut, fmt.Sprintf("/api/stages/%d", stage.ID), h.token(t, u),
			map[string]any{"status": "completed"})
		require.Equal(t, http.StatusOK, rec.Code, "%s: %s", u.Role, rec.Body.String())
		got := decode[models.Stage](t, rec)
		assert.Equal(t, models.StageStatusCompleted, got.Status)
		assert.Equal(t, stage.Title, got.Title)
		require.NotNil(t, got.EncadreurID)
		assert.Equal(t, enc.ID, *got.EncadreurID)
	}

	stage := testutil.Stage(t, h.db, stagiaire, &enc)
	path := fmt.Sprintf("/api/stages/%d", stage.ID)
	for _, u := range []models.User{stagiaire, other} {
		rec := h.do(t, http.MethodPut, path, h.token(t, u), map[string]any{"status": "completed"})
		assert.Equal(t, http.StatusForbidden, rec.Code, u.Role)
	}
	rec := h.do(t, http.MethodPut, path, h.token(t, rh), map[string]any{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var stored models.Stage
	require.NoError(t, h.db.First(&stored, stage.ID).Error)
	assert.Equal(t, models.StageStatusOngoing, stored.Status)
}

func TestStageRecreatedAfterDelete(t *testing.T) {
	h := newHarness(t)
	rh := testutil.User(t, h.db, models.RoleRH, "rh@arte.local")
	stagiaire := testutil.User(t, h.db, models.RoleStagiaire, "s@arte.local")
	app := testutil.Application(t, h.db, &stagiaire)
	require.NoError(t, h.db.Model(&app).Update("status", models.ApplicationStatusApproved).Error)
	tok := h.token(t, rh)

	rec := h.do(t, http.MethodPost, "/api/stages", tok, map[string]any{"application_id": app.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[models.Stage](t, rec)

	rec = h.do(t, http.MethodDelete, fmt.Sprintf("/api/stages/%d", first.ID), tok, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, fmt.Sprintf("/api/applications/%d", app.ID), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.Application](t, rec).StageEligible)

	rec = h.do(t, http.MethodPost, "/api/stages", tok, map[string]any{"application_id": app.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEqual(t, first.ID, decode[models.Stage](t, rec).ID)
}

func TestMissingStageLooksForbidden(t *testing.T) {
	h := newHarness(t)
	rh := testutil.User(t, h.db, models.RoleRH, "rh@arte.local")
	enc := testutil.User(t, h.db, models.RoleEncadreur, "enc@arte.local")
	stagiaire := testutil.User(t, h.db, models.RoleStagiaire, "s@arte.local")

	for _, u := range []models.User{enc, stagiaire} {
		rec := h.do(t, http.MethodGet, "/api/stages/424242", h.token(t, u), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, u.Role)
	}
	rec := h.do(t, http.MethodGet, "/api/stages/424242", h.token(t, rh), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
