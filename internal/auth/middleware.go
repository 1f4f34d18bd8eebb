package auth

import (
	"net/http"

	"github.com/diewo77/arte/internal/apperr"
	"github.com/diewo77/arte/internal/gate"
	"github.com/diewo77/arte/internal/httpx"
	"github.com/diewo77/arte/internal/logging"
)

// Middleware attaches the actor to the request context when a valid bearer
// token is present. Requests without one pass through anonymous; protected
// routes add RequireAuth.
func Middleware(tokens *Tokens, actors gate.Resolver[uint, Actor]) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := tokens.Parse(r.Context(), header)
			if err != nil {
				logging.FromContext(r.Context()).WithError(err).Debug("bearer token rejected")
				next.ServeHTTP(w, r)
				return
			}
			actor, err := actors.Resolve(r.Context(), claims.UserID)
			if err != nil {
				// Token refers to a deleted user: treat as anonymous.
				next.ServeHTTP(w, r)
				return
			}
			ctx := withClaims(WithActor(r.Context(), actor), claims)
			ctx = logging.WithEntry(ctx, logging.FromContext(ctx).WithField("user_id", actor.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth returns 401 JSON when no actor is attached.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ActorFromContext(r.Context()); !ok {
			httpx.Error(w, r, apperr.Unauthenticated())
			return
		}
		next.ServeHTTP(w, r)
	})
}
