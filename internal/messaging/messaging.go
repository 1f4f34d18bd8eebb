// Package messaging is the append-only message store between users.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/arte/internal/apperr"
	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/gate"
	"github.com/diewo77/arte/internal/models"
	"github.com/diewo77/arte/internal/notify"
	"github.com/diewo77/arte/internal/policy"
	"github.com/diewo77/arte/internal/validation"
	"gorm.io/gorm"
)

const maxContentLen = 5000

type Service struct {
	db     *gorm.DB
	gate   *policy.Gate
	notify *notify.Notifier
}

func NewService(db *gorm.DB, g *policy.Gate, n *notify.Notifier) *Service {
	return &Service{db: db, gate: g, notify: n}
}

// Send appends a message from actor to receiverID and notifies the receiver.
func (s *Service) Send(ctx context.Context, actor auth.Actor, receiverID uint, content string) (*models.Message, error) {
	msg := &models.Message{SenderID: actor.ID, ReceiverID: receiverID, Content: strings.TrimSpace(content)}
	if err := s.gate.Authorize(ctx, actor, gate.ActionCreate, policy.Messages, msg); err != nil {
		return nil, err
	}

	v := make(validation.Violations)
	validation.Required("content", msg.Content, v)
	validation.MaxLen("content", msg.Content, maxContentLen, v)
	if receiverID == 0 {
		v.Add("receiver_id", "required")
	} else if receiverID == actor.ID {
		v.Add("receiver_id", "self")
	}
	if !v.Empty() {
		return nil, apperr.Validation(v)
	}

	var receiver models.User
	if err := s.db.WithContext(ctx).Select("id").First(&receiver, receiverID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Field("receiver_id", "not_found")
		}
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return s.notify.Notify(ctx, tx, receiverID, notify.Event{
			Kind:  models.NotificationMessage,
			Title: "Nouveau message",
			Body:  preview(msg.Content),
			Link:  fmt.Sprintf("/messages/%d", actor.ID),
		})
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Conversation returns every message exchanged between actor and other, in
// insertion order.
func (s *Service) Conversation(ctx context.Context, actor auth.Actor, otherID uint) ([]models.Message, error) {
	if err := s.gate.Authorize(ctx, actor, gate.ActionViewAny, policy.Messages, nil); err != nil {
		return nil, err
	}
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", actor.ID, otherID, otherID, actor.ID).
		Order("id ASC").
		Find(&msgs).Error
	return msgs, err
}

// Inbox is the latest received messages plus the unread count.
type Inbox struct {
	Messages []models.Message `json:"messages"`
	Unread   int64            `json:"unread"`
}

func (s *Service) Inbox(ctx context.Context, actor auth.Actor, limit int) (*Inbox, error) {
	if err := s.gate.Authorize(ctx, actor, gate.ActionViewAny, policy.Messages, nil); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	in := &Inbox{Messages: []models.Message{}}
	db := s.db.WithContext(ctx)
	if err := db.Where("receiver_id = ?", actor.ID).Order("id DESC").Limit(limit).Find(&in.Messages).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Message{}).Where("receiver_id = ? AND read = ?", actor.ID, false).Count(&in.Unread).Error; err != nil {
		return nil, err
	}
	return in, nil
}

// MarkRead sets the read flag. Only the receiver may do it; marking twice
// keeps the first read_at.
func (s *Service) MarkRead(ctx context.Context, actor auth.Actor, id uint) (*models.Message, error) {
	var msg models.Message
	if err := s.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(policy.Messages)
		}
		return nil, err
	}
	if err := s.gate.Authorize(ctx, actor, gate.ActionUpdate, policy.Messages, &msg); err != nil {
		return nil, err
	}
	if msg.Read {
		return &msg, nil
	}
	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&msg).Updates(map[string]any{"read": true, "read_at": now}).Error; err != nil {
		return nil, err
	}
	msg.Read, msg.ReadAt = true, &now
	return &msg, nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= 80 {
		return s
	}
	return string(r[:80]) + "..."
}
