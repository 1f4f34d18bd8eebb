package policy

// Ownable is implemented by models that have a single owning user.
type Ownable interface {
	GetUserID() uint
}

// owns reports whether userID owns resource. Resources that do not
// implement Ownable are never owned.
func owns(userID uint, resource any) bool {
	o, ok := resource.(Ownable)
	if !ok || o == nil {
		return false
	}
	return o.GetUserID() == userID
}
