package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/diewo77/arte/internal/apperr"
	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/httpx"
	"github.com/diewo77/arte/internal/models"
	"github.com/diewo77/arte/internal/policy"
	"github.com/diewo77/arte/internal/validation"
	"gorm.io/gorm"
)

// ActorCache drops cached actor lookups after a role change or deletion.
type ActorCache interface {
	Invalidate(userID uint)
}

type userPayload struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

func (p userPayload) apply(u *models.User, v validation.Violations) {
	setString(&u.Name, p.Name)
	if p.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*p.Email))
	}
	if p.Role != nil {
		role, err := models.ParseRole(*p.Role)
		if err != nil {
			v.Add("role", "invalid")
		} else {
			u.Role = role
		}
	}
	if p.Password != nil {
		if len(*p.Password) < 8 {
			v.Add("password", "too_short")
		} else if hash, err := auth.HashPassword(*p.Password); err != nil {
			v.Add("password", "invalid")
		} else {
			u.Password = hash
		}
	}
	validation.Required("name", u.Name, v)
	validation.MaxLen("name", u.Name, 255, v)
	validation.Required("email", u.Email, v)
	validation.Email("email", u.Email, v)
}

// NewUserResource serves /api/users. Creating accounts and changing roles is
// reserved to admins; everyone may edit their own name, email and password.
func NewUserResource(db *gorm.DB, g *policy.Gate, cache ActorCache) *Resource[models.User] {
	invalidate := func(id uint) {
		if cache != nil {
			cache.Invalidate(id)
		}
	}
	return &Resource[models.User]{
		Name:    policy.Users,
		DB:      db,
		Gate:    g,
		Columns: []string{"name", "email", "password", "role"},
		Order:   "name ASC, id ASC",
		Scope:   policy.ScopeUsers,
		Filter: func(db *gorm.DB, q url.Values) *gorm.DB {
			if role := q.Get("role"); role != "" {
				db = db.Where("role = ?", role)
			}
			if s := strings.TrimSpace(q.Get("q")); s != "" {
				like := "%" + strings.ToLower(s) + "%"
				db = db.Where("(LOWER(name) LIKE ? OR LOWER(email) LIKE ?)", like, like)
			}
			return db
		},
		Build: func(r *http.Request, _ auth.Actor) (*models.User, error) {
			var p userPayload
			if err := httpx.DecodeJSON(r, &p); err != nil {
				return nil, err
			}
			u := &models.User{}
			v := make(validation.Violations)
			if p.Password == nil {
				v.Add("password", "required")
			}
			if p.Role == nil {
				v.Add("role", "required")
			}
			p.apply(u, v)
			if !v.Empty() {
				return nil, apperr.Validation(v)
			}
			return u, nil
		},
		Apply: func(r *http.Request, a auth.Actor, u *models.User) error {
			var p userPayload
			if err := httpx.DecodeJSON(r, &p); err != nil {
				return err
			}
			v := make(validation.Violations)
			if p.Role != nil && models.Role(*p.Role) != u.Role && !a.IsAdmin() {
				return apperr.Forbidden()
			}
			p.apply(u, v)
			if !v.Empty() {
				return apperr.Validation(v)
			}
			return nil
		},
		AfterUpdate: func(_ context.Context, _ *gorm.DB, _ auth.Actor, u *models.User) error {
			invalidate(u.ID)
			return nil
		},
		BeforeDelete: func(_ context.Context, a auth.Actor, u *models.User) error {
			if u.ID == a.ID {
				return apperr.Conflict("cannot_delete_self")
			}
			return nil
		},
		AfterDelete: func(_ context.Context, _ auth.Actor, u *models.User) {
			invalidate(u.ID)
		},
	}
}
