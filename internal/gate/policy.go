package gate

import "context"

// Policy defines authorization rules for a resource type.
// Implementations must be pure: no store access, no mutation.
type Policy[U any] interface {
	// Can returns true if user is authorized to perform action on resource.
	// For viewAny, resource is nil; for create it is the unsaved instance.
	Can(ctx context.Context, user U, action Action, resource any) bool
}

// PolicyFunc adapts a plain function to the Policy interface.
type PolicyFunc[U any] func(ctx context.Context, user U, action Action, resource any) bool

// Can calls f.
func (f PolicyFunc[U]) Can(ctx context.Context, user U, action Action, resource any) bool {
	return f(ctx, user, action, resource)
}
