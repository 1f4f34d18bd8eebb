// Package policy holds the per-resource authorization rules of ARTE and wires
// them into a gate. Every predicate is pure: it inspects the actor and the
// (preloaded) instance and never touches the store.
package policy

import (
	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/gate"
)

// Resource type names registered on the gate.
const (
	Applications  = "application"
	Stages        = "stage"
	Documents     = "document"
	Presences     = "presence"
	Messages      = "message"
	Notifications = "notification"
	Users         = "user"
)

// Domain actions beyond CRUD.
const (
	// ActionTransition moves an application through its workflow.
	ActionTransition gate.Action = "transition"
	// ActionAssign reassigns the supervisor of a stage.
	ActionAssign gate.Action = "assign"
	// ActionReview changes the status of a document.
	ActionReview gate.Action = "review"
)

// Gate is the authorization gate specialised for request actors.
type Gate = gate.Gate[auth.Actor]

// NewGate builds the gate: admin bypass first, then one policy per resource.
func NewGate() *Gate {
	g := gate.NewGate[auth.Actor](auth.IsAdmin)
	g.Register(Applications, ApplicationPolicy{})
	g.Register(Stages, StagePolicy{})
	g.Register(Documents, DocumentPolicy{})
	g.Register(Presences, PresencePolicy{})
	g.Register(Messages, MessagePolicy{})
	g.Register(Notifications, NotificationPolicy{})
	g.Register(Users, UserPolicy{})
	return g
}
