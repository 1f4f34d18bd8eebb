// Package httpx writes JSON responses and the error envelope.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/diewo77/arte/internal/apperr"
	"github.com/diewo77/arte/internal/logging"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// best-effort error response; avoid writing partial JSON
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func JSONError(w http.ResponseWriter, status int, msg string, details any) {
	JSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// Error classifies err and writes the matching envelope. Internal errors are
// logged with the request entry and reported without details.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	ae := apperr.From(err)
	if ae.Kind == apperr.KindInternal {
		logging.FromContext(r.Context()).WithError(err).Error("request failed")
		JSONError(w, ae.Kind.Status(), "internal_error", nil)
		return
	}
	JSONError(w, ae.Kind.Status(), ae.Code, ae.Details)
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.BadRequest("invalid_json")
	}
	return nil
}
