package policy

import (
	"context"

	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/gate"
	"github.com/diewo77/arte/internal/models"
)

// PresencePolicy scopes attendance to the stage: its stagiaire checks in and
// reads, its encadreur records and reads, rh does everything.
type PresencePolicy struct{}

func (PresencePolicy) Can(_ context.Context, a auth.Actor, action gate.Action, resource any) bool {
	p, _ := resource.(*models.Presence)
	var st *models.Stage
	if p != nil {
		st = p.Stage
	}

	switch a.Role {
	case models.RoleRH:
		return true
	case models.RoleEncadreur:
		switch action {
		case gate.ActionViewAny:
			return true
		case gate.ActionView, gate.ActionCreate, gate.ActionUpdate:
			return st.SupervisedBy(a.ID)
		}
		return false
	case models.RoleStagiaire:
		switch action {
		case gate.ActionViewAny:
			return true
		case gate.ActionView, gate.ActionCreate, gate.ActionUpdate:
			return st.BelongsTo(a.ID)
		}
		return false
	}
	return false
}
