// Package validation collects field-level violations for request payloads.
package validation

import (
	"net/mail"
	"strings"
	"time"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// Violations maps a field name to a machine-readable reason.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Add records reason for field unless the field already has one.
func (v Violations) Add(field, reason string) {
	if _, ok := v[field]; !ok {
		v[field] = reason
	}
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required")
	}
}

func Email(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		return
	}
	if _, err := mail.ParseAddress(value); err != nil {
		v.Add(field, "invalid_email")
	}
}

func MaxLen(field, value string, max int, v Violations) {
	if len([]rune(value)) > max {
		v.Add(field, "too_long")
	}
}

func PositiveInt(field string, val int, v Violations) {
	if val <= 0 {
		v.Add(field, "must_be_positive")
	}
}

// Date parses a YYYY-MM-DD value. Empty values are reported as required.
func Date(field, value string, v Violations) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		v.Add(field, "required")
		return time.Time{}, false
	}
	d, err := time.Parse(DateLayout, value)
	if err != nil {
		v.Add(field, "invalid_date")
		return time.Time{}, false
	}
	return d, true
}

// DateOrder requires end to be on or after start.
func DateOrder(field string, start, end time.Time, v Violations) {
	if end.Before(start) {
		v.Add(field, "before_start_date")
	}
}

// OneOf requires value to be one of allowed.
func OneOf(field, value string, allowed []string, v Violations) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.Add(field, "invalid")
}
