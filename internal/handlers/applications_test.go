package handlers_test

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diewo77/arte/internal/models"
	"github.com/diewo77/arte/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var pdf = []byte("%PDF-1.4\n1 0 obj <<>> endobj\ntrailer <<>>\n%%EOF\n")

func submitRequest(t *testing.T, files []string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := map[string]string{
		"full_name":  "Moussa Ndiaye",
		"email":      "moussa@example.org",
		"phone":      "+221771234567",
		"field":      "Reseaux",
		"school":     "UCAD",
		"duration":   "6",
		"start_date": "2026-09-01",
		"end_date":   "2027-02-28",
		"motivation": "Stage de fin d'etudes.",
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, slot := range files {
		fw, err := mw.CreateFormFile(slot, slot+".pdf")
		require.NoError(t, err)
		_, err = fw.Write(pdf)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/applications/submit", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

type fieldErrors struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

type submitResponse struct {
	Reference   string             `json:"reference"`
	Application models.Application `json:"application"`
}

func TestPublicSubmission(t *testing.T) {
	h := newHarness(t)

	rec := h.send(submitRequest(t, []string{"cv", "certificate", "identity"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[submitResponse](t, rec)
	assert.Regexp(t, `^APP-\d{4}$`, resp.Reference)
	assert.Equal(t, resp.Reference, resp.Application.Reference)
	assert.Equal(t, models.ApplicationStatusPending, resp.Application.Status)

	var stored models.Application
	require.NoError(t, h.db.Where("reference = ?", resp.Reference).First(&stored).Error)
	assert.NotEmpty(t, stored.CVPath)
}

func TestPublicSubmissionMissingFiles(t *testing.T) {
	h := newHarness(t)

	rec := h.send(submitRequest(t, []string{"cv"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode[fieldErrors](t, rec)
	assert.Equal(t, "validation_failed", body.Error)
	assert.Equal(t, "required", body.Details["certificate"])
	assert.Equal(t, "required", body.Details["identity"])

	var count int64
	h.db.Model(&models.Application{}).Count(&count)
	assert.Zero(t, count)
}

func TestReviewToStage(t *testing.T) {
	h := newHarness(t)
	rh := testutil.User(t, h.db, models.RoleRH, "rh@arte.local")
	stagiaire := testutil.User(t, h.db, models.RoleStagiaire, "awa@arte.local")
	enc := testutil.User(t, h.db, models.RoleEncadreur, "enc@arte.local")
	app := testutil.Application(t, h.db, &stagiaire)
	tok := h.token(t, rh)

	rec := h.do(t, http.MethodPost, fmt.Sprintf("/api/applications/%d/interview", app.ID), tok,
		map[string]string{"interview_at": "2026-02-10T10:00:00Z"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.ApplicationStatusInterview, decode[models.Application](t, rec).Status)

	rec = h.do(t, http.MethodPost, fmt.Sprintf("/api/applications/%d/approve", app.ID), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decode[models.Application](t, rec)
	assert.Equal(t, models.ApplicationStatusApproved, approved.Status)
	assert.True(t, approved.StageEligible)

	rec = h.do(t, http.MethodPost, "/api/stages", tok, map[string]any{
		"application_id": app.ID,
		"encadreur_id":   enc.ID,
		"title":          "Administrateur reseau",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	st := decode[models.Stage](t, rec)
	assert.Equal(t, stagiaire.ID, st.StagiaireID)
	require.NotNil(t, st.ApplicationID)
	assert.Equal(t, app.ID, *st.ApplicationID)
	require.NotNil(t, st.Application)
	assert.False(t, st.Application.StageEligible)

	rec = h.do(t, http.MethodGet, fmt.Sprintf("/api/stages/%d", st.ID), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	shown := decode[models.Stage](t, rec)
	require.NotNil(t, shown.Application)
	assert.False(t, shown.Application.StageEligible)

	rec = h.do(t, http.MethodGet, fmt.Sprintf("/api/applications/%d", app.ID), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[models.Application](t, rec).StageEligible)

	rec = h.do(t, http.MethodPost, "/api/stages", tok, map[string]any{"application_id": app.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application_not_eligible", errorCode(t, rec))
}

func TestTransitionErrors(t *testing.T) {
	h := newHarness(t)
	rh := testutil.User(t, h.db, models.RoleRH, "rh@arte.local")
	stagiaire := testutil.User(t, h.db, models.RoleStagiaire, "awa@arte.local")
	app := testutil.Application(t, h.db, &stagiaire)
	path := fmt.Sprintf("/api/applications/%d", app.ID)

	rec := h.do(t, http.MethodPost, path+"/approve", h.token(t, stagiaire), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, path+"/approve", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodPost, path+"/reject", h.token(t, rh), map[string]string{"reason": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, path+"/reject", h.token(t, rh), map[string]string{"reason": "Profil incomplet"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Profil incomplet", decode[models.Application](t, rec).RejectionReason)

	rec = h.do(t, http.MethodPost, path+"/transition", h.token(t, rh), map[string]string{"status": "pending"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "workflow_violation", errorCode(t, rec))
}

func TestStagiaireSeesOnlyOwnApplications(t *testing.T) {
	h := newHarness(t)
	a := testutil.User(t, h.db, models.RoleStagiaire, "a@arte.local")
	b := testutil.User(t, h.db, models.RoleStagiaire, "b@arte.local")
	mine := testutil.Application(t, h.db, &a)
	theirs := testutil.Application(t, h.db, &b)
	tok := h.token(t, a)

	rec := h.do(t, http.MethodGet, "/api/applications", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[struct {
		Items []models.Application `json:"items"`
		Total int64                `json:"total"`
	}](t, rec)
	require.Len(t, page.Items, 1)
	assert.Equal(t, mine.ID, page.Items[0].ID)
	assert.EqualValues(t, 1, page.Total)

	rec = h.do(t, http.MethodGet, fmt.Sprintf("/api/applications/%d", theirs.ID), tok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestApplicantFiles(t *testing.T) {
	h := newHarness(t)
	owner := testutil.User(t, h.db, models.RoleStagiaire, "moussa@arte.local")
	other := testutil.User(t, h.db, models.RoleStagiaire, "other@arte.local")
	rh := testutil.User(t, h.db, models.RoleRH, "rh@arte.local")

	rec := h.send(submitRequest(t, []string{"cv", "certificate", "identity"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	app := decode[submitResponse](t, rec).Application
	require.NoError(t, h.db.Model(&models.Application{}).Where("id = ?", app.ID).Update("owner_id", owner.ID).Error)
	path := fmt.Sprintf("/api/applications/%d/files/", app.ID)

	for _, tok := range []string{h.token(t, owner), h.token(t, rh)} {
		rec = h.do(t, http.MethodGet, path+"cv", tok, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "-cv.pdf")
		assert.Equal(t, pdf, rec.Body.Bytes())
	}

	rec = h.do(t, http.MethodGet, path+"passport", h.token(t, owner), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// optional slot never uploaded
	rec = h.do(t, http.MethodGet, path+"motivation_letter", h.token(t, owner), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, path+"cv", h.token(t, other), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorCode(t, rec))
}

func TestDetailsEditCannotUndoDecision(t *testing.T) {
	h := newHarness(t)
	stagiaire := testutil.User(t, h.db, models.RoleStagiaire, "awa@arte.local")
	app := testutil.Application(t, h.db, &stagiaire)
	path := fmt.Sprintf("/api/applications/%d", app.ID)
	tok := h.token(t, stagiaire)

	rec := h.do(t, http.MethodPut, path, tok, map[string]any{"motivation": "Premiere version"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.ApplicationStatusPending, decode[models.Application](t, rec).Status)

	// rh approves between the edit's read and its write
	var decideErr error
	decided := false
	require.NoError(t, h.db.Callback().Query().After("gorm:query").Register("test:decide_meanwhile", func(tx *gorm.DB) {
		if decided || tx.Statement.Schema == nil || tx.Statement.Schema.Table != "applications" {
			return
		}
		decided = true
		decideErr = h.db.Exec("UPDATE applications SET status = ?, decided_at = ? WHERE id = ?",
			models.ApplicationStatusApproved, time.Now(), app.ID).Error
	}))

	rec = h.do(t, http.MethodPut, path, tok, map[string]any{"motivation": "Seconde version"})
	require.True(t, decided)
	require.NoError(t, decideErr)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "stale_application", errorCode(t, rec))

	var stored models.Application
	require.NoError(t, h.db.First(&stored, app.ID).Error)
	assert.Equal(t, models.ApplicationStatusApproved, stored.Status)
	assert.NotNil(t, stored.DecidedAt)
	assert.Equal(t, "Premiere version", stored.Motivation)
}

func TestStaffEditKeepsDecision(t *testing.T) {
	h := newHarness(t)
	rh := testutil.User(t, h.db, models.RoleRH, "rh@arte.local")
	stagiaire := testutil.User(t, h.db, models.RoleStagiaire, "awa@arte.local")
	app := testutil.Application(t, h.db, &stagiaire)
	tok := h.token(t, rh)

	rec := h.do(t, http.MethodPost, fmt.Sprintf("/api/applications/%d/reject", app.ID), tok, map[string]string{"reason": "Dossier incomplet"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodPut, fmt.Sprintf("/api/applications/%d", app.ID), tok, map[string]any{"school": "ESMT"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[models.Application](t, rec)
	assert.Equal(t, "ESMT", got.School)
	assert.Equal(t, models.ApplicationStatusRejected, got.Status)
	assert.Equal(t, "Dossier incomplet", got.RejectionReason)
	assert.NotNil(t, got.DecidedAt)
}

func TestMissingApplicationLooksForbidden(t *testing.T) {
	h := newHarness(t)
	rh := testutil.User(t, h.db, models.RoleRH, "rh@arte.local")
	stagiaire := testutil.User(t, h.db, models.RoleStagiaire, "awa@arte.local")
	other := testutil.User(t, h.db, models.RoleStagiaire, "other@arte.local")
	theirs := testutil.Application(t, h.db, &other)

	existing := fmt.Sprintf("/api/applications/%d", theirs.ID)
	missing := "/api/applications/424242"

	for _, path := range []string{existing, missing} {
		rec := h.do(t, http.MethodGet, path, h.token(t, stagiaire), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
		rec = h.do(t, http.MethodPost, path+"/approve", h.token(t, stagiaire), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}

	rec := h.do(t, http.MethodGet, missing, h.token(t, rh), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = h.do(t, http.MethodPost, missing+"/approve", h.token(t, rh), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
