package models

import "time"

// Message is immutable once created; only the receiver's read flag changes.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SenderID   uint  `gorm:"index;not null" json:"sender_id"`
	Sender     *User `gorm:"foreignKey:SenderID" json:"-"`
	ReceiverID uint  `gorm:"index;not null" json:"receiver_id"`
	Receiver   *User `gorm:"foreignKey:ReceiverID" json:"-"`

	Content string     `gorm:"type:text;not null" json:"content"`
	Read    bool       `gorm:"not null;default:false" json:"read"`
	ReadAt  *time.Time `json:"read_at,omitempty"`
}
