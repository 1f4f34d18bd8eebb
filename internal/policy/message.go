package policy

import (
	"context"

	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/gate"
	"github.com/diewo77/arte/internal/models"
)

// MessagePolicy applies to every role alike: participants read, the sender
// creates, the receiver toggles the read flag. Messages are never edited or
// deleted.
type MessagePolicy struct{}

func (MessagePolicy) Can(_ context.Context, a auth.Actor, action gate.Action, resource any) bool {
	if !a.Role.Valid() {
		return false
	}
	m, _ := resource.(*models.Message)

	switch action {
	case gate.ActionViewAny:
		return true
	case gate.ActionView:
		return m != nil && (m.SenderID == a.ID || m.ReceiverID == a.ID)
	case gate.ActionCreate:
		return m != nil && m.SenderID == a.ID
	case gate.ActionUpdate:
		return m != nil && m.ReceiverID == a.ID
	}
	return false
}
