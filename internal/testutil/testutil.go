// Package testutil provides database fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/arte/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens an isolated in-memory SQLite database with the full schema.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// User creates a user with role. The password hash is a placeholder.
func User(t *testing.T, db *gorm.DB, role models.Role, email string) models.User {
	t.Helper()
	u := models.User{Name: strings.Split(email, "@")[0], Email: email, Password: "x", Role: role}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("user %s: %v", email, err)
	}
	return u
}

// Application creates a pending application owned by owner (nil for public).
func Application(t *testing.T, db *gorm.DB, owner *models.User) models.Application {
	t.Helper()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	app := models.Application{
		Reference: "tmp-" + fmt.Sprint(time.Now().UnixNano()),
		FullName:  "Awa Diop",
		Email:     "awa@example.org",
		Phone:     "+221700000000",
		Field:     "Informatique",
		School:    "ESP",
		Duration:  3,
		StartDate: start,
		EndDate:   start.AddDate(0, 3, 0),
		Status:    models.ApplicationStatusPending,
	}
	if owner != nil {
		app.OwnerID = &owner.ID
		app.Email = owner.Email
	}
	if err := db.Create(&app).Error; err != nil {
		t.Fatalf("application: %v", err)
	}
	app.Reference = models.ReferenceCode(app.ID)
	if err := db.Model(&app).Update("reference", app.Reference).Error; err != nil {
		t.Fatalf("application reference: %v", err)
	}
	return app
}

// Stage creates an ongoing stage for stagiaire supervised by encadreur (may be nil).
func Stage(t *testing.T, db *gorm.DB, stagiaire models.User, encadreur *models.User) models.Stage {
	t.Helper()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 3, 0)
	st := models.Stage{
		StagiaireID: stagiaire.ID,
		Title:       "Developpeur backend",
		Department:  "DSI",
		StartDate:   &start,
		EndDate:     &end,
		Status:      models.StageStatusOngoing,
	}
	if encadreur != nil {
		st.EncadreurID = &encadreur.ID
	}
	if err := db.Create(&st).Error; err != nil {
		t.Fatalf("stage: %v", err)
	}
	return st
}

// Presence records attendance for stage on date.
func Presence(t *testing.T, db *gorm.DB, stage models.Stage, date string, recordedBy uint) models.Presence {
	t.Helper()
	p := models.Presence{StageID: stage.ID, Date: date, Present: true, RecordedByID: recordedBy}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("presence: %v", err)
	}
	return p
}
