package models

import (
	"time"

	"gorm.io/gorm"
)

// StageStatus is the state of an internship.
type StageStatus string

const (
	StageStatusOngoing   StageStatus = "ongoing"
	StageStatusCompleted StageStatus = "completed"
)

func (s StageStatus) Valid() bool {
	return s == StageStatusOngoing || s == StageStatusCompleted
}

// Stage is an internship assignment created from an approved application.
type Stage struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// One live stage per application; soft-deleted rows free the slot.
	ApplicationID *uint        `gorm:"uniqueIndex:idx_stages_application_id,where:deleted_at IS NULL" json:"application_id,omitempty"`
	Application   *Application `gorm:"foreignKey:ApplicationID" json:"application,omitempty"`

	StagiaireID uint  `gorm:"index;not null" json:"stagiaire_id"`
	Stagiaire   *User `gorm:"foreignKey:StagiaireID" json:"stagiaire,omitempty"`

	// EncadreurID is the supervisor; only rh/admin may reassign it.
	EncadreurID *uint `gorm:"index" json:"encadreur_id,omitempty"`
	Encadreur   *User `gorm:"foreignKey:EncadreurID" json:"encadreur,omitempty"`

	Title      string      `gorm:"size:255" json:"title"`
	Department string      `gorm:"size:255" json:"department"`
	StartDate  *time.Time  `json:"start_date,omitempty"`
	EndDate    *time.Time  `json:"end_date,omitempty"`
	Status     StageStatus `gorm:"size:20;not null;default:'ongoing'" json:"status"`
}

// SupervisedBy reports whether userID is the assigned encadreur.
func (s *Stage) SupervisedBy(userID uint) bool {
	return s != nil && s.EncadreurID != nil && *s.EncadreurID == userID
}

// BelongsTo reports whether userID is the stagiaire of the stage.
func (s *Stage) BelongsTo(userID uint) bool {
	return s != nil && s.StagiaireID == userID
}
