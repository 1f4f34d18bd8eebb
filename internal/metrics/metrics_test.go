package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalPath(t *testing.T) {
	tests := map[string]string{
		"":                               "/",
		"/":                              "/",
		"/api/applications":              "/api/applications",
		"/api/applications/12/approve":   "/api/applications/:id/approve",
		"/api/messages/conversations/7/": "/api/messages/conversations/:id",
	}
	for in, want := range tests {
		assert.Equal(t, want, CanonicalPath(in), in)
	}
}

func TestInstrumentCountsRequests(t *testing.T) {
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/stages/3", nil))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `arte_http_requests_total{method="GET",path="/api/stages/:id",status="418"} 1`)
}

func TestHandlerExposesDomainCounters(t *testing.T) {
	RecordTransition("pending", "approved", "applied")
	RecordSubmission("accepted")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `arte_workflow_transitions_total{from="pending",result="applied",to="approved"}`))
	assert.True(t, strings.Contains(body, "arte_applications_submissions_total"))
}
