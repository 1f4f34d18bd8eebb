package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ApplicationStatus is the lifecycle state of a candidature.
type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "pending"
	ApplicationStatusInterview ApplicationStatus = "interview"
	ApplicationStatusApproved  ApplicationStatus = "approved"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
)

// ParseApplicationStatus accepts the canonical names plus "accepted",
// an older spelling of approved.
func ParseApplicationStatus(s string) (ApplicationStatus, error) {
	switch st := ApplicationStatus(s); st {
	case ApplicationStatusPending, ApplicationStatusInterview, ApplicationStatusApproved, ApplicationStatusRejected:
		return st, nil
	case "accepted":
		return ApplicationStatusApproved, nil
	}
	return "", fmt.Errorf("unknown application status %q", s)
}

// IsTerminal reports states with no outgoing transition.
func (s ApplicationStatus) IsTerminal() bool {
	return s == ApplicationStatusApproved || s == ApplicationStatusRejected
}

// Attachment slots stored for each application.
const (
	SlotCV               = "cv"
	SlotCertificate      = "certificate"
	SlotIdentity         = "identity"
	SlotMotivationLetter = "motivation_letter"
)

// Application is a candidature for an internship.
type Application struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Reference string `gorm:"size:64;uniqueIndex;not null" json:"reference"`

	// OwnerID is the stagiaire account; nil for anonymous public submissions.
	OwnerID *uint `gorm:"index" json:"owner_id,omitempty"`
	Owner   *User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`

	FullName   string    `gorm:"size:255;not null" json:"full_name"`
	Email      string    `gorm:"size:255;not null;index" json:"email"`
	Phone      string    `gorm:"size:32" json:"phone"`
	Field      string    `gorm:"size:255" json:"field"`
	School     string    `gorm:"size:255" json:"school"`
	Duration   int       `json:"duration"` // months
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	Motivation string    `gorm:"type:text" json:"motivation"`

	Status          ApplicationStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	RejectionReason string            `gorm:"type:text" json:"rejection_reason,omitempty"`
	InterviewAt     *time.Time        `json:"interview_at,omitempty"`
	DecidedAt       *time.Time        `json:"decided_at,omitempty"`

	CVPath               string `gorm:"size:512" json:"-"`
	CertificatePath      string `gorm:"size:512" json:"-"`
	IdentityPath         string `gorm:"size:512" json:"-"`
	MotivationLetterPath string `gorm:"size:512" json:"-"`

	Stage *Stage `gorm:"foreignKey:ApplicationID" json:"stage,omitempty"`

	// StageEligible is derived on load: approved and no stage yet.
	StageEligible bool `gorm:"-" json:"stage_eligible"`
}

// ReferenceCode renders the human-readable code of an application id. Four
// digits is a minimum width: ids above 9999 keep all their digits.
func ReferenceCode(id uint) string {
	return fmt.Sprintf("APP-%04d", id)
}

// OwnedBy reports whether userID is the owning stagiaire.
func (a *Application) OwnedBy(userID uint) bool {
	return a.OwnerID != nil && *a.OwnerID == userID
}

// IsPending returns true while the application awaits a decision.
func (a *Application) IsPending() bool {
	return a.Status == ApplicationStatusPending
}

// FilePath returns the stored path of an attachment slot.
func (a *Application) FilePath(slot string) string {
	switch slot {
	case SlotCV:
		return a.CVPath
	case SlotCertificate:
		return a.CertificatePath
	case SlotIdentity:
		return a.IdentityPath
	case SlotMotivationLetter:
		return a.MotivationLetterPath
	}
	return ""
}

// AfterFind derives StageEligible. Without a preloaded Stage the stages
// table is asked directly, so nested loads report the same value.
func (a *Application) AfterFind(tx *gorm.DB) error {
	a.StageEligible = false
	if a.Status != ApplicationStatusApproved || a.Stage != nil {
		return nil
	}
	var n int64
	if err := tx.Session(&gorm.Session{NewDB: true}).Model(&Stage{}).Where("application_id = ?", a.ID).Count(&n).Error; err != nil {
		return err
	}
	a.StageEligible = n == 0
	return nil
}
