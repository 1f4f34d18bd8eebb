package models

import "time"

// Presence is the attendance record of a stage for one calendar day.
type Presence struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	StageID uint   `gorm:"not null;uniqueIndex:idx_presence_stage_date" json:"stage_id"`
	Stage   *Stage `gorm:"foreignKey:StageID" json:"-"`
	// Date is stored as YYYY-MM-DD so the per-day unique index is exact.
	Date string `gorm:"size:10;not null;uniqueIndex:idx_presence_stage_date" json:"date"`

	Present       bool   `json:"present"`
	Justification string `gorm:"type:text" json:"justification,omitempty"`
	RecordedByID  uint   `gorm:"index" json:"recorded_by_id"`
}
