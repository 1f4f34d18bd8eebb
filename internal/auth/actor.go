// Package auth authenticates requests with bearer tokens and carries the
// resulting Actor through the request context.
package auth

import (
	"context"

	"github.com/diewo77/arte/internal/models"
	"gorm.io/gorm"
)

// Actor is the authenticated subject of a request. The zero value means
// "nobody", which the gate rejects as unauthenticated.
type Actor struct {
	ID   uint
	Role models.Role
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// IsAdmin is the global bypass evaluated first by the gate.
func IsAdmin(a Actor) bool { return a.IsAdmin() }

type ctxKey string

const (
	actorCtxKey  = ctxKey("actor")
	claimsCtxKey = ctxKey("claims")
)

// WithActor stores the actor in context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey, a)
}

// ActorFromContext extracts the actor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorCtxKey).(Actor)
	return a, ok && a != Actor{}
}

func withClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, c)
}

// ClaimsFromContext returns the verified token claims of the request.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsCtxKey).(*Claims)
	return c, ok
}

// DBActorResolver loads actors from the users table so that role changes and
// deletions take effect without re-issuing tokens.
type DBActorResolver struct {
	DB *gorm.DB
}

func NewDBActorResolver(db *gorm.DB) *DBActorResolver {
	return &DBActorResolver{DB: db}
}

// Resolve returns the actor for userID or gorm.ErrRecordNotFound.
func (r *DBActorResolver) Resolve(ctx context.Context, userID uint) (Actor, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).Select("id", "role").First(&u, userID).Error; err != nil {
		return Actor{}, err
	}
	return Actor{ID: u.ID, Role: u.Role}, nil
}
