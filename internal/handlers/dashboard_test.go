package handlers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/diewo77/arte/internal/handlers"
	"github.com/diewo77/arte/internal/models"
	"github.com/diewo77/arte/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardCountsFollowScopes(t *testing.T) {
	h := newHarness(t)
	rh := testutil.User(t, h.db, models.RoleRH, "rh@arte.local")
	a := testutil.User(t, h.db, models.RoleStagiaire, "a@arte.local")
	b := testutil.User(t, h.db, models.RoleStagiaire, "b@arte.local")
	testutil.Application(t, h.db, &a)
	testutil.Application(t, h.db, &b)
	testutil.Application(t, h.db, nil)
	testutil.Stage(t, h.db, a, nil)

	rec := h.do(t, http.MethodGet, "/api/dashboard", h.token(t, rh), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	d := decode[handlers.Dashboard](t, rec)
	assert.Equal(t, models.RoleRH, d.Role)
	assert.EqualValues(t, 3, d.Applications["pending"])
	assert.EqualValues(t, 1, d.Stages["ongoing"])

	rec = h.do(t, http.MethodGet, "/api/dashboard", h.token(t, b), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	d = decode[handlers.Dashboard](t, rec)
	assert.EqualValues(t, 1, d.Applications["pending"])
	assert.Empty(t, d.Stages)
}

func TestOpsEndpoints(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = h.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "arte_http_requests_total"))
}
