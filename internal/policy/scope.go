package policy

import (
	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/models"
	"gorm.io/gorm"
)

// Scopes restrict list queries to the rows an actor may view. They mirror
// the view predicates of the policies above.

func seesEverything(a auth.Actor) bool {
	return a.Role == models.RoleAdmin || a.Role == models.RoleRH
}

func supervisedStageIDs(db *gorm.DB, userID uint) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).Model(&models.Stage{}).Select("id").Where("encadreur_id = ?", userID)
}

func ownStageIDs(db *gorm.DB, userID uint) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).Model(&models.Stage{}).Select("id").Where("stagiaire_id = ?", userID)
}

func ScopeApplications(db *gorm.DB, a auth.Actor) *gorm.DB {
	switch {
	case seesEverything(a):
		return db
	case a.Role == models.RoleEncadreur:
		sub := db.Session(&gorm.Session{NewDB: true}).Model(&models.Stage{}).
			Select("application_id").Where("encadreur_id = ? AND application_id IS NOT NULL", a.ID)
		return db.Where("id IN (?)", sub)
	case a.Role == models.RoleStagiaire:
		return db.Where("owner_id = ?", a.ID)
	}
	return db.Where("1 = 0")
}

func ScopeStages(db *gorm.DB, a auth.Actor) *gorm.DB {
	switch {
	case seesEverything(a):
		return db
	case a.Role == models.RoleEncadreur:
		return db.Where("encadreur_id = ?", a.ID)
	case a.Role == models.RoleStagiaire:
		return db.Where("stagiaire_id = ?", a.ID)
	}
	return db.Where("1 = 0")
}

func ScopeDocuments(db *gorm.DB, a auth.Actor) *gorm.DB {
	switch {
	case seesEverything(a):
		return db
	case a.Role == models.RoleEncadreur:
		return db.Where("(owner_id = ? OR stage_id IN (?))", a.ID, supervisedStageIDs(db, a.ID))
	case a.Role == models.RoleStagiaire:
		apps := db.Session(&gorm.Session{NewDB: true}).Model(&models.Application{}).Select("id").Where("owner_id = ?", a.ID)
		return db.Where("(owner_id = ? OR stage_id IN (?) OR application_id IN (?))", a.ID, ownStageIDs(db, a.ID), apps)
	}
	return db.Where("1 = 0")
}

func ScopePresences(db *gorm.DB, a auth.Actor) *gorm.DB {
	switch {
	case seesEverything(a):
		return db
	case a.Role == models.RoleEncadreur:
		return db.Where("stage_id IN (?)", supervisedStageIDs(db, a.ID))
	case a.Role == models.RoleStagiaire:
		return db.Where("stage_id IN (?)", ownStageIDs(db, a.ID))
	}
	return db.Where("1 = 0")
}

// ScopeMessages applies to admins too: private conversations stay private
// in listings.
func ScopeMessages(db *gorm.DB, a auth.Actor) *gorm.DB {
	return db.Where("(sender_id = ? OR receiver_id = ?)", a.ID, a.ID)
}

func ScopeNotifications(db *gorm.DB, a auth.Actor) *gorm.DB {
	return db.Where("user_id = ?", a.ID)
}

func ScopeUsers(db *gorm.DB, a auth.Actor) *gorm.DB {
	switch a.Role {
	case models.RoleAdmin, models.RoleRH, models.RoleEncadreur:
		return db
	}
	return db.Where("id = ?", a.ID)
}
