package policy

import (
	"context"

	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/gate"
	"github.com/diewo77/arte/internal/models"
)

type NotificationPolicy struct{}

func (NotificationPolicy) Can(_ context.Context, a auth.Actor, action gate.Action, resource any) bool {
	if !a.Role.Valid() {
		return false
	}
	switch action {
	case gate.ActionViewAny:
		return true
	case gate.ActionCreate:
		return a.Role == models.RoleRH
	case gate.ActionView, gate.ActionUpdate, gate.ActionDelete:
		return owns(a.ID, resource)
	}
	return false
}
