package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/config"
	"github.com/diewo77/arte/internal/gate"
	"github.com/diewo77/arte/internal/policy"
	"github.com/diewo77/arte/internal/server"
	"github.com/diewo77/arte/internal/storage"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App owns the HTTP handler and the resources that must be released on
// shutdown.
type App struct {
	handler http.Handler
	closers []func() error
}

// NewApp builds the token service, actor cache, file store and routes.
func NewApp(cfg *config.Config, log *logrus.Logger, db *gorm.DB) (*App, error) {
	app := &App{}

	var revoker auth.Revoker = auth.NewMemoryRevoker()
	if cfg.Redis.URL != "" {
		rr, err := auth.NewRedisRevoker(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("redis revoker: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rr.Ping(ctx); err != nil {
			_ = rr.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		revoker = rr
		app.closers = append(app.closers, rr.Close)
		log.Info("token revocation backed by redis")
	}

	store, err := storage.NewLocal(cfg.Storage.Dir)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	actors := gate.NewCachedResolver[uint, auth.Actor](auth.NewDBActorResolver(db), cfg.Auth.CacheTTL)
	app.handler = server.New(server.Deps{
		DB:     db,
		Config: cfg,
		Logger: log,
		Gate:   policy.NewGate(),
		Tokens: auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, revoker),
		Actors: actors,
		Store:  store,
	})
	return app, nil
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// Close releases external connections.
func (a *App) Close() {
	for _, c := range a.closers {
		_ = c()
	}
}
