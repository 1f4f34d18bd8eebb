package db

import (
	"errors"
	"strings"

	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/models"
	"gorm.io/gorm"
)

// ErrNoAdminPassword is returned when seeding is requested without
// ADMIN_PASSWORD.
var ErrNoAdminPassword = errors.New("seed: admin password is empty")

// SeedAdmin creates the admin account if no user has that email. It never
// changes an existing account and reports whether a row was created.
func SeedAdmin(db *gorm.DB, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if password == "" {
		return false, ErrNoAdminPassword
	}
	var existing models.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}
	admin := models.User{Name: "Administrateur", Email: email, Password: hash, Role: models.RoleAdmin}
	if err := db.Create(&admin).Error; err != nil {
		return false, err
	}
	return true, nil
}
