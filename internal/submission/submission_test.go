package submission

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/diewo77/arte/internal/apperr"
	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/models"
	"github.com/diewo77/arte/internal/storage"
	"github.com/diewo77/arte/internal/testutil"
	"github.com/diewo77/arte/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pdf = []byte("%PDF-1.4\n1 0 obj <<>> endobj\ntrailer <<>>\n%%EOF\n")

func validFields() map[string]string {
	return map[string]string{
		"full_name":  "Awa Diop",
		"email":      "Awa@Example.org",
		"phone":      "+221700000000",
		"field":      "Informatique",
		"school":     "ESP",
		"duration":   "3",
		"start_date": "2026-03-01",
		"end_date":   "2026-05-31",
		"motivation": "Je souhaite rejoindre la DSI.",
	}
}

func validFiles() map[string][]byte {
	return map[string][]byte{"cv": pdf, "certificate": pdf, "identity": pdf}
}

func multipartRequest(t *testing.T, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for slot, content := range files {
		fw, err := mw.CreateFormFile(slot, slot+".pdf")
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/applications/submit", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newService(t *testing.T) (*Service, storage.Store) {
	t.Helper()
	db := testutil.NewDB(t)
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	return NewService(db, store, 1<<20), store
}

func TestSubmit_AssignsReference(t *testing.T) {
	svc, store := newService(t)
	req := multipartRequest(t, validFields(), validFiles())
	in, err := FromRequest(httptest.NewRecorder(), req, 1<<20)
	require.NoError(t, err)

	app, err := svc.Submit(context.Background(), in, nil)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^APP-\d{4}$`), app.Reference)
	assert.Equal(t, models.ApplicationStatusPending, app.Status)
	assert.Equal(t, "awa@example.org", app.Email)
	assert.Nil(t, app.OwnerID)
	assert.Empty(t, app.MotivationLetterPath)

	rc, err := store.Open(context.Background(), app.CVPath)
	require.NoError(t, err)
	rc.Close()

	second, err := svc.Submit(context.Background(), in, nil)
	require.NoError(t, err)
	assert.NotEqual(t, app.Reference, second.Reference)
}

func TestSubmit_StagiaireOwnsApplication(t *testing.T) {
	svc, _ := newService(t)
	u := testutil.User(t, svc.db, models.RoleStagiaire, "s@arte.test")
	in, err := FromRequest(httptest.NewRecorder(), multipartRequest(t, validFields(), validFiles()), 1<<20)
	require.NoError(t, err)

	app, err := svc.Submit(context.Background(), in, &auth.Actor{ID: u.ID, Role: u.Role})
	require.NoError(t, err)
	require.NotNil(t, app.OwnerID)
	assert.Equal(t, u.ID, *app.OwnerID)
}

func TestSubmit_ReportsEveryMissingItem(t *testing.T) {
	svc, _ := newService(t)
	fields := validFields()
	delete(fields, "email")
	delete(fields, "start_date")
	files := validFiles()
	delete(files, "identity")

	in, err := FromRequest(httptest.NewRecorder(), multipartRequest(t, fields, files), 1<<20)
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), in, nil)
	ae := apperr.From(err)
	require.Equal(t, apperr.KindValidation, ae.Kind)
	assert.Equal(t, validation.Violations{
		"email":      "required",
		"start_date": "required",
		"identity":   "required",
	}, ae.Details)

	var n int64
	svc.db.Model(&models.Application{}).Count(&n)
	assert.Zero(t, n)
}

func TestValidate_Attachments(t *testing.T) {
	files := validFiles()
	files["cv"] = []byte("not a pdf at all")
	files["certificate"] = bytes.Repeat([]byte("x"), 2048)
	fields := validFields()
	fields["end_date"] = "2026-02-01"
	fields["duration"] = "three"

	in, err := FromRequest(httptest.NewRecorder(), multipartRequest(t, fields, files), 1024)
	require.NoError(t, err)
	_, err = validate(in, 1024)
	ae := apperr.From(err)
	require.Equal(t, apperr.KindValidation, ae.Kind)
	v := ae.Details.(validation.Violations)
	assert.Equal(t, "invalid_type", v["cv"])
	assert.Equal(t, "too_large", v["certificate"])
	assert.Equal(t, "before_start_date", v["end_date"])
	assert.Equal(t, "invalid", v["duration"])
	assert.NotContains(t, v, "identity")
}

func TestFromRequest_RejectsNonMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/applications/submit", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	_, err := FromRequest(httptest.NewRecorder(), req, 1024)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
