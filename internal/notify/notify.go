// Package notify records system-to-user notifications.
package notify

import (
	"context"
	"time"

	"github.com/diewo77/arte/internal/models"
	"gorm.io/gorm"
)

// Notifier writes notifications. Callers that mutate domain rows pass their
// transaction so the notification commits or rolls back with the change.
type Notifier struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Notifier {
	return &Notifier{db: db}
}

// Event describes a notification before it is stored.
type Event struct {
	Kind  string
	Title string
	Body  string
	Link  string
}

// Notify stores ev for userID using tx, or the notifier's own handle when tx
// is nil. A zero userID (anonymous application) is a no-op.
func (n *Notifier) Notify(ctx context.Context, tx *gorm.DB, userID uint, ev Event) error {
	if userID == 0 {
		return nil
	}
	if tx == nil {
		tx = n.db
	}
	rec := models.Notification{UserID: userID, Kind: ev.Kind, Title: ev.Title, Body: ev.Body, Link: ev.Link}
	return tx.WithContext(ctx).Create(&rec).Error
}

// MarkRead flags one notification of userID as read. Already-read rows keep
// their original read_at.
func (n *Notifier) MarkRead(ctx context.Context, userID, id uint) (*models.Notification, error) {
	var rec models.Notification
	if err := n.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&rec).Error; err != nil {
		return nil, err
	}
	if rec.Read {
		return &rec, nil
	}
	now := time.Now()
	if err := n.db.WithContext(ctx).Model(&rec).Updates(map[string]any{"read": true, "read_at": now}).Error; err != nil {
		return nil, err
	}
	rec.Read, rec.ReadAt = true, &now
	return &rec, nil
}

// MarkAllRead flags every unread notification of userID and returns how many
// changed.
func (n *Notifier) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := n.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Updates(map[string]any{"read": true, "read_at": time.Now()})
	return res.RowsAffected, res.Error
}

// Unread counts the unread notifications of userID.
func (n *Notifier) Unread(ctx context.Context, userID uint) (int64, error) {
	var c int64
	err := n.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).Count(&c).Error
	return c, err
}
