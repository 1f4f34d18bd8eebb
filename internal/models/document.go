package models

import (
	"time"

	"gorm.io/gorm"
)

// DocumentKind is the type of a stored or generated document.
type DocumentKind string

const (
	DocumentKindLetter      DocumentKind = "letter"
	DocumentKindCertificate DocumentKind = "certificate"
	DocumentKindReport      DocumentKind = "report"
	DocumentKindOther       DocumentKind = "other"
)

func (k DocumentKind) Valid() bool {
	switch k {
	case DocumentKindLetter, DocumentKindCertificate, DocumentKindReport, DocumentKindOther:
		return true
	}
	return false
}

// DocumentStatus tracks a document through review and delivery.
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusApproved DocumentStatus = "approved"
	DocumentStatusSigned   DocumentStatus = "signed"
	DocumentStatusSent     DocumentStatus = "sent"
)

var documentStatusOrder = map[DocumentStatus]int{
	DocumentStatusPending:  0,
	DocumentStatusApproved: 1,
	DocumentStatusSigned:   2,
	DocumentStatusSent:     3,
}

func (s DocumentStatus) Valid() bool {
	_, ok := documentStatusOrder[s]
	return ok
}

// CanAdvanceTo allows forward moves only (pending → approved → signed → sent,
// skipping steps is allowed).
func (s DocumentStatus) CanAdvanceTo(next DocumentStatus) bool {
	from, ok1 := documentStatusOrder[s]
	to, ok2 := documentStatusOrder[next]
	return ok1 && ok2 && to > from
}

// Document is an uploaded or generated artifact tied to an application or stage.
// Implements the Ownable interface: the owner is the uploading user.
type Document struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	OwnerID uint  `gorm:"index;not null" json:"owner_id"`
	Owner   *User `gorm:"foreignKey:OwnerID" json:"-"`

	ApplicationID *uint        `gorm:"index" json:"application_id,omitempty"`
	Application   *Application `gorm:"foreignKey:ApplicationID" json:"-"`
	StageID       *uint        `gorm:"index" json:"stage_id,omitempty"`
	Stage         *Stage       `gorm:"foreignKey:StageID" json:"-"`

	Kind        DocumentKind   `gorm:"size:20;not null" json:"kind"`
	Status      DocumentStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	Title       string         `gorm:"size:255" json:"title"`
	FileName    string         `gorm:"size:255" json:"file_name"`
	ContentType string         `gorm:"size:100" json:"content_type"`
	Size        int64          `json:"size"`
	Path        string         `gorm:"size:512" json:"-"`
}

// GetUserID implements the Ownable interface for authorization.
func (d *Document) GetUserID() uint {
	return d.OwnerID
}

// LinkedStage returns the stage the document belongs to, directly or
// through its application. Relations must be preloaded.
func (d *Document) LinkedStage() *Stage {
	if d.Stage != nil {
		return d.Stage
	}
	if d.Application != nil {
		return d.Application.Stage
	}
	return nil
}
