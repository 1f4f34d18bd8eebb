package policy

import (
	"context"

	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/gate"
	"github.com/diewo77/arte/internal/models"
)

// UserPolicy: accounts are managed by admins (through the bypass). rh and
// encadreurs browse the directory; everyone reads and edits their own profile.
type UserPolicy struct{}

func (UserPolicy) Can(_ context.Context, a auth.Actor, action gate.Action, resource any) bool {
	u, _ := resource.(*models.User)
	self := u != nil && u.ID == a.ID

	switch a.Role {
	case models.RoleRH, models.RoleEncadreur:
		switch action {
		case gate.ActionViewAny, gate.ActionView:
			return true
		case gate.ActionUpdate:
			return self
		}
		return false
	case models.RoleStagiaire:
		switch action {
		case gate.ActionView, gate.ActionUpdate:
			return self
		}
		return false
	}
	return false
}
