package policy

import (
	"context"

	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/gate"
	"github.com/diewo77/arte/internal/models"
)

type StagePolicy struct{}

func (StagePolicy) Can(_ context.Context, a auth.Actor, action gate.Action, resource any) bool {
	st, _ := resource.(*models.Stage)

	switch a.Role {
	case models.RoleRH:
		return true
	case models.RoleEncadreur:
		switch action {
		case gate.ActionViewAny:
			return true
		case gate.ActionView, gate.ActionUpdate:
			return st.SupervisedBy(a.ID)
		}
		return false
	case models.RoleStagiaire:
		switch action {
		case gate.ActionViewAny:
			return true
		case gate.ActionView:
			return st.BelongsTo(a.ID)
		}
		return false
	}
	return false
}
