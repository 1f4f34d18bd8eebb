package models

import "time"

// Notification kinds emitted by the backend.
const (
	NotificationApplicationStatus = "application_status"
	NotificationMessage           = "message"
	NotificationStageCreated      = "stage_created"
	NotificationDocumentStatus    = "document_status"
)

// Notification is a one-way system-to-user record.
// Implements the Ownable interface: the owner is the recipient.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint       `gorm:"index;not null" json:"user_id"`
	Kind   string     `gorm:"size:50;not null" json:"kind"`
	Title  string     `gorm:"size:255;not null" json:"title"`
	Body   string     `gorm:"type:text" json:"body,omitempty"`
	Link   string     `gorm:"size:255" json:"link,omitempty"`
	Read   bool       `gorm:"not null;default:false" json:"read"`
	ReadAt *time.Time `json:"read_at,omitempty"`
}

func (n *Notification) GetUserID() uint {
	return n.UserID
}
