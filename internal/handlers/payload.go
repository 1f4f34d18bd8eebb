package handlers

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/diewo77/arte/internal/apperr"
	"github.com/diewo77/arte/internal/httpx"
	"github.com/diewo77/arte/internal/storage"
	"github.com/diewo77/arte/internal/validation"
)

// decodeOptional decodes a JSON body when one is present. An empty body
// leaves dst untouched.
func decodeOptional(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil
	}
	return httpx.DecodeJSON(r, dst)
}

// setString trims *src into dst when src is present.
func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

// parseOptionalDate parses a YYYY-MM-DD pointer; nil and "" mean absent.
func parseOptionalDate(field string, src *string, v validation.Violations) (*time.Time, bool) {
	if src == nil || strings.TrimSpace(*src) == "" {
		return nil, false
	}
	d, ok := validation.Date(field, *src, v)
	if !ok {
		return nil, false
	}
	return &d, true
}

// parseMoment accepts RFC 3339 timestamps or plain dates.
func parseMoment(field, s string, v validation.Violations) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	if t, err := time.Parse(validation.DateLayout, s); err == nil {
		return &t
	}
	v.Add(field, "invalid_date")
	return nil
}

// serveStored streams a stored file as an attachment.
func serveStored(w http.ResponseWriter, r *http.Request, store storage.Store, key, filename, contentType string) {
	if key == "" {
		httpx.Error(w, r, apperr.NotFound("file"))
		return
	}
	rc, err := store.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidPath) || errors.Is(err, fs.ErrNotExist) {
			httpx.Error(w, r, apperr.NotFound("file"))
			return
		}
		httpx.Error(w, r, err)
		return
	}
	defer rc.Close()
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}
