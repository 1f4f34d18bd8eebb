package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/diewo77/arte/internal/apperr"
	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/httpx"
	"github.com/diewo77/arte/internal/models"
	"github.com/diewo77/arte/internal/policy"
	"github.com/diewo77/arte/internal/validation"
	"gorm.io/gorm"
)

type presencePayload struct {
	StageID       *uint   `json:"stage_id"`
	Date          *string `json:"date"`
	Present       *bool   `json:"present"`
	Justification *string `json:"justification"`
}

// NewPresenceResource serves /api/presences. A presence belongs to a stage;
// stage and date are fixed once recorded.
func NewPresenceResource(db *gorm.DB, g *policy.Gate) *Resource[models.Presence] {
	return &Resource[models.Presence]{
		Name:    policy.Presences,
		DB:      db,
		Gate:    g,
		Columns: []string{"present", "justification"},
		Preload: []string{"Stage"},
		Order:   "date DESC, id DESC",
		Scope:   policy.ScopePresences,
		Filter: func(db *gorm.DB, q url.Values) *gorm.DB {
			if id, err := strconv.ParseUint(q.Get("stage_id"), 10, 64); err == nil {
				db = db.Where("stage_id = ?", id)
			}
			if from := q.Get("from"); from != "" {
				db = db.Where("date >= ?", from)
			}
			if to := q.Get("to"); to != "" {
				db = db.Where("date <= ?", to)
			}
			return db
		},
		Build: func(r *http.Request, a auth.Actor) (*models.Presence, error) {
			var p presencePayload
			if err := httpx.DecodeJSON(r, &p); err != nil {
				return nil, err
			}
			v := make(validation.Violations)
			pr := &models.Presence{Present: true, RecordedByID: a.ID}
			if p.StageID == nil || *p.StageID == 0 {
				v.Add("stage_id", "required")
			} else {
				pr.StageID = *p.StageID
			}
			date := ""
			if p.Date != nil {
				date = *p.Date
			}
			if d, ok := validation.Date("date", date, v); ok {
				pr.Date = d.Format(validation.DateLayout)
			}
			if p.Present != nil {
				pr.Present = *p.Present
			}
			setString(&pr.Justification, p.Justification)
			validation.MaxLen("justification", pr.Justification, 2000, v)
			if !v.Empty() {
				return nil, apperr.Validation(v)
			}
			return pr, nil
		},
		Apply: func(r *http.Request, _ auth.Actor, pr *models.Presence) error {
			var p presencePayload
			if err := httpx.DecodeJSON(r, &p); err != nil {
				return err
			}
			v := make(validation.Violations)
			if p.StageID != nil && *p.StageID != pr.StageID {
				v.Add("stage_id", "immutable")
			}
			if p.Date != nil && strings.TrimSpace(*p.Date) != pr.Date {
				v.Add("date", "immutable")
			}
			if p.Present != nil {
				pr.Present = *p.Present
			}
			setString(&pr.Justification, p.Justification)
			validation.MaxLen("justification", pr.Justification, 2000, v)
			if !v.Empty() {
				return apperr.Validation(v)
			}
			return nil
		},
		Hydrate: func(ctx context.Context, db *gorm.DB, pr *models.Presence) error {
			var st models.Stage
			if err := db.First(&st, pr.StageID).Error; err != nil {
				return apperr.Field("stage_id", "not_found")
			}
			pr.Stage = &st
			return nil
		},
	}
}
