package gate

// Action describes the kind of operation a user wants to perform.
type Action string

const (
	ActionViewAny     Action = "viewAny"
	ActionView        Action = "view"
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionRestore     Action = "restore"
	ActionForceDelete Action = "forceDelete"
)

// CRUD lists the five actions every resource policy answers.
var CRUD = []Action{ActionViewAny, ActionView, ActionCreate, ActionUpdate, ActionDelete}
