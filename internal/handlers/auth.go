package handlers

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/diewo77/arte/internal/apperr"
	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/gate"
	"github.com/diewo77/arte/internal/httpx"
	"github.com/diewo77/arte/internal/logging"
	"github.com/diewo77/arte/internal/models"
	"github.com/diewo77/arte/internal/policy"
	"github.com/diewo77/arte/internal/validation"
	"gorm.io/gorm"
)

// abilityActions are reported by /api/auth/me for every resource.
var abilityActions = append(append([]gate.Action{}, gate.CRUD...),
	policy.ActionTransition, policy.ActionAssign, policy.ActionReview)

type AuthHandler struct {
	db     *gorm.DB
	tokens *auth.Tokens
	gate   *policy.Gate
}

func NewAuthHandler(db *gorm.DB, tokens *auth.Tokens, g *policy.Gate) *AuthHandler {
	return &AuthHandler{db: db, tokens: tokens, gate: g}
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

// Login: POST /api/auth/login {"email", "password"}
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httpx.DecodeJSON(r, &p); err != nil {
		httpx.Error(w, r, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(p.Email))
	v := make(validation.Violations)
	validation.Required("email", email, v)
	validation.Required("password", p.Password, v)
	if !v.Empty() {
		httpx.Error(w, r, apperr.Validation(v))
		return
	}

	var u models.User
	err := h.db.WithContext(r.Context()).Where("email = ?", email).First(&u).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		httpx.Error(w, r, err)
		return
	}
	if err != nil || !auth.CheckPassword(u.Password, p.Password) {
		logging.FromContext(r.Context()).WithField("email", email).Info("login failed")
		httpx.Error(w, r, apperr.Unauthenticated())
		return
	}

	token, exp, err := h.tokens.Issue(u)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp, User: u})
}

// Logout: POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httpx.Error(w, r, apperr.Unauthenticated())
		return
	}
	if err := h.tokens.Revoke(r.Context(), claims); err != nil {
		httpx.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me: GET /api/auth/me returns the user and the permission strings the SPA
// uses to show or hide actions.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	a := actorOf(r)
	var u models.User
	if err := h.db.WithContext(r.Context()).First(&u, a.ID).Error; err != nil {
		httpx.Error(w, r, err)
		return
	}
	perms := h.gate.Abilities(r.Context(), a, abilityActions...)
	abilities := make([]string, 0, len(perms))
	for _, p := range perms {
		abilities = append(abilities, string(p))
	}
	sort.Strings(abilities)
	httpx.JSON(w, http.StatusOK, map[string]any{"user": u, "abilities": abilities})
}
