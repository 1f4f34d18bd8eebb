package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/config"
	"github.com/diewo77/arte/internal/gate"
	"github.com/diewo77/arte/internal/httpx"
	"github.com/diewo77/arte/internal/logging"
	"github.com/diewo77/arte/internal/models"
	"github.com/diewo77/arte/internal/policy"
	"github.com/diewo77/arte/internal/server"
	"github.com/diewo77/arte/internal/storage"
	"github.com/diewo77/arte/internal/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type harness struct {
	db     *gorm.DB
	srv    *server.Server
	tokens *auth.Tokens
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Storage.UploadMaxBytes = 1 << 20
	tokens := auth.NewTokens("test-secret", time.Hour, auth.NewMemoryRevoker())
	actors := gate.NewCachedResolver[uint, auth.Actor](auth.NewDBActorResolver(db), time.Minute)

	srv := server.New(server.Deps{
		DB:     db,
		Config: cfg,
		Logger: logging.NewWithWriter(io.Discard, "error", "text"),
		Gate:   policy.NewGate(),
		Tokens: tokens,
		Actors: actors,
		Store:  store,
	})
	return &harness{db: db, srv: srv, tokens: tokens}
}

func (h *harness) token(t *testing.T, u models.User) string {
	t.Helper()
	tok, _, err := h.tokens.Issue(u)
	require.NoError(t, err)
	return tok
}

// do sends a JSON request; body may be nil. token may be empty.
func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	return rec
}

func (h *harness) send(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[httpx.ErrorResponse](t, rec).Error
}
