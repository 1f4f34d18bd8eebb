// Package server wires the HTTP routes of the ARTE API.
package server

import (
	"net/http"

	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/config"
	"github.com/diewo77/arte/internal/db"
	"github.com/diewo77/arte/internal/document"
	"github.com/diewo77/arte/internal/gate"
	"github.com/diewo77/arte/internal/handlers"
	"github.com/diewo77/arte/internal/httpx"
	"github.com/diewo77/arte/internal/messaging"
	"github.com/diewo77/arte/internal/metrics"
	"github.com/diewo77/arte/internal/middleware"
	"github.com/diewo77/arte/internal/notify"
	"github.com/diewo77/arte/internal/policy"
	"github.com/diewo77/arte/internal/storage"
	"github.com/diewo77/arte/internal/submission"
	"github.com/diewo77/arte/internal/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Deps are the long-lived collaborators the routes are built from.
type Deps struct {
	DB     *gorm.DB
	Config *config.Config
	Logger *logrus.Logger
	Gate   *policy.Gate
	Tokens *auth.Tokens
	// Actors resolves token subjects; a *gate.CachedResolver is also
	// invalidated on role changes and deletions.
	Actors gate.Resolver[uint, auth.Actor]
	Store  storage.Store
}

// Server is the root HTTP handler.
type Server struct {
	mux     *http.ServeMux
	handler http.Handler
	deps    Deps
}

// New builds the services and registers every route.
func New(d Deps) *Server {
	s := &Server{mux: http.NewServeMux(), deps: d}
	s.setupRoutes()
	s.handler = middleware.Chain(s.mux,
		metrics.Instrument,
		middleware.Logging(d.Logger),
		middleware.Recover,
		middleware.NewCORS(d.Config.CORS.AllowedOrigins).Handler,
		auth.Middleware(d.Tokens, d.Actors),
	)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) protected(h http.HandlerFunc) http.Handler {
	return auth.RequireAuth(h)
}

// crud registers the generic resource routes under prefix. Nil create
// skips POST so a dedicated handler can own it.
func crud[T any](s *Server, prefix string, res *handlers.Resource[T], create http.HandlerFunc) {
	s.mux.Handle("GET "+prefix, s.protected(res.List))
	s.mux.Handle("GET "+prefix+"/{id}", s.protected(res.Show))
	if create == nil {
		create = res.Store
	}
	s.mux.Handle("POST "+prefix, s.protected(create))
	s.mux.Handle("PUT "+prefix+"/{id}", s.protected(res.Update))
	s.mux.Handle("PATCH "+prefix+"/{id}", s.protected(res.Update))
	s.mux.Handle("DELETE "+prefix+"/{id}", s.protected(res.Destroy))
}

func (s *Server) setupRoutes() {
	d := s.deps
	cfg := d.Config
	notifier := notify.New(d.DB)
	maxBytes := cfg.Storage.UploadMaxBytes

	var cache handlers.ActorCache
	if c, ok := d.Actors.(*gate.CachedResolver[uint, auth.Actor]); ok {
		cache = c
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Ops
	// ─────────────────────────────────────────────────────────────────────────
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(d.DB); err != nil {
			d.Logger.WithError(err).Error("health check failed")
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.mux.Handle("GET /metrics", metrics.Handler())

	// ─────────────────────────────────────────────────────────────────────────
	// Authentication
	// ─────────────────────────────────────────────────────────────────────────
	ah := handlers.NewAuthHandler(d.DB, d.Tokens, d.Gate)
	s.mux.HandleFunc("POST /api/auth/login", ah.Login)
	s.mux.Handle("POST /api/auth/logout", s.protected(ah.Logout))
	s.mux.Handle("GET /api/auth/me", s.protected(ah.Me))

	// ─────────────────────────────────────────────────────────────────────────
	// Applications
	// ─────────────────────────────────────────────────────────────────────────
	apps := handlers.NewApplicationResource(d.DB, d.Gate)
	apph := handlers.NewApplicationHandler(apps,
		workflow.NewService(d.DB, d.Gate, notifier),
		submission.NewService(d.DB, d.Store, maxBytes),
		d.Store, maxBytes)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	s.mux.Handle("POST /api/applications/submit", limiter.Handler(http.HandlerFunc(apph.Submit)))
	crud(s, "/api/applications", apps, nil)
	s.mux.Handle("POST /api/applications/{id}/interview", s.protected(apph.Interview))
	s.mux.Handle("POST /api/applications/{id}/approve", s.protected(apph.Approve))
	s.mux.Handle("POST /api/applications/{id}/reject", s.protected(apph.Reject))
	s.mux.Handle("POST /api/applications/{id}/transition", s.protected(apph.Transition))
	s.mux.Handle("GET /api/applications/{id}/files/{slot}", s.protected(apph.File))

	// ─────────────────────────────────────────────────────────────────────────
	// Stages
	// ─────────────────────────────────────────────────────────────────────────
	stages := handlers.NewStageResource(d.DB, d.Gate, notifier)
	sh := handlers.NewStageHandler(stages, d.Gate, notifier,
		document.NewGenerator(document.PDFRenderer{}), d.Store, cfg.App.Organization)
	crud(s, "/api/stages", stages, nil)
	s.mux.Handle("POST /api/stages/{id}/assign", s.protected(sh.Assign))
	s.mux.Handle("GET /api/stages/{id}/documents/{kind}", s.protected(sh.Generate))

	// ─────────────────────────────────────────────────────────────────────────
	// Documents
	// ─────────────────────────────────────────────────────────────────────────
	docs := handlers.NewDocumentResource(d.DB, d.Gate)
	dh := handlers.NewDocumentHandler(docs, d.Gate, d.Store, notifier, maxBytes)
	crud(s, "/api/documents", docs, dh.Upload)
	s.mux.Handle("GET /api/documents/{id}/download", s.protected(dh.Download))
	s.mux.Handle("POST /api/documents/{id}/status", s.protected(dh.Review))

	// ─────────────────────────────────────────────────────────────────────────
	// Presences, messages, notifications, users
	// ─────────────────────────────────────────────────────────────────────────
	crud(s, "/api/presences", handlers.NewPresenceResource(d.DB, d.Gate), nil)

	mh := handlers.NewMessageHandler(messaging.NewService(d.DB, d.Gate, notifier))
	s.mux.Handle("GET /api/messages/inbox", s.protected(mh.Inbox))
	s.mux.Handle("GET /api/messages/conversations/{userID}", s.protected(mh.Conversation))
	s.mux.Handle("POST /api/messages/{id}/read", s.protected(mh.Read))
	crud(s, "/api/messages", handlers.NewMessageResource(d.DB, d.Gate), mh.Send)

	nh := handlers.NewNotificationHandler(d.Gate, notifier)
	s.mux.Handle("POST /api/notifications/read-all", s.protected(nh.ReadAll))
	s.mux.Handle("POST /api/notifications/{id}/read", s.protected(nh.Read))
	crud(s, "/api/notifications", handlers.NewNotificationResource(d.DB, d.Gate), nil)

	crud(s, "/api/users", handlers.NewUserResource(d.DB, d.Gate, cache), nil)

	s.mux.Handle("GET /api/dashboard", s.protected(handlers.NewDashboardHandler(d.DB).Show))
}
