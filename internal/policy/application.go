package policy

import (
	"context"

	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/gate"
	"github.com/diewo77/arte/internal/models"
)

// ApplicationPolicy: rh manages every candidature; an encadreur sees the ones
// behind the stages they supervise; a stagiaire sees and edits their own while
// it is still pending.
type ApplicationPolicy struct{}

func (ApplicationPolicy) Can(_ context.Context, a auth.Actor, action gate.Action, resource any) bool {
	app, _ := resource.(*models.Application)

	switch a.Role {
	case models.RoleRH:
		return true
	case models.RoleEncadreur:
		switch action {
		case gate.ActionViewAny:
			return true
		case gate.ActionView:
			return app != nil && app.Stage.SupervisedBy(a.ID)
		}
		return false
	case models.RoleStagiaire:
		switch action {
		case gate.ActionViewAny, gate.ActionCreate:
			return true
		case gate.ActionView:
			return app != nil && app.OwnedBy(a.ID)
		case gate.ActionUpdate, gate.ActionDelete:
			return app != nil && app.OwnedBy(a.ID) && app.IsPending()
		}
		return false
	}
	return false
}
