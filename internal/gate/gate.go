// Package gate is the authorization checkpoint of the application.
// Each resource type registers a Policy; the Gate evaluates requests in a
// fixed order: reject anonymous actors, apply the global bypass, then ask the
// resource policy. The package knows nothing about domain models.
//
// The package uses generics so the subject can be any comparable value whose
// zero value means "no actor", e.g. Gate[uint] or Gate[auth.Actor].
package gate

import (
	"context"
	"sort"
)

// BypassFunc is the global override evaluated before any resource policy.
// Returning true allows the request and stops evaluation.
type BypassFunc[U any] func(user U) bool

// Gate is the central authorization checkpoint.
type Gate[U comparable] struct {
	bypass   BypassFunc[U]
	policies map[string]Policy[U]
}

// NewGate creates an empty Gate. bypass may be nil.
func NewGate[U comparable](bypass BypassFunc[U]) *Gate[U] {
	return &Gate[U]{bypass: bypass, policies: make(map[string]Policy[U])}
}

// Register adds a policy for a resource type (e.g. "application").
// Overwrites any existing policy for that type.
func (g *Gate[U]) Register(resourceType string, p Policy[U]) {
	g.policies[resourceType] = p
}

// Authorize returns nil when user may perform action on resource.
//
//  1. zero-value user: ErrUnauthenticated
//  2. bypass(user) true: nil
//  3. no policy for resourceType: ErrNoPolicyDefined
//  4. policy denies: ErrForbidden
func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string, resource any) error {
	var zero U
	if user == zero {
		return ErrUnauthenticated
	}
	if g.bypass != nil && g.bypass(user) {
		return nil
	}
	p, ok := g.policies[resourceType]
	if !ok {
		return ErrNoPolicyDefined
	}
	if !p.Can(ctx, user, action, resource) {
		return ErrForbidden
	}
	return nil
}

// Can is a convenience wrapper returning bool instead of error.
func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, user, action, resourceType, resource) == nil
}

// Abilities lists the resource-level permissions of user for the given
// actions, evaluated without a concrete resource. The SPA uses it to decide
// which screens and buttons to show; it is never a substitute for Authorize.
func (g *Gate[U]) Abilities(ctx context.Context, user U, actions ...Action) []Permission {
	types := make([]string, 0, len(g.policies))
	for t := range g.policies {
		types = append(types, t)
	}
	sort.Strings(types)

	var perms []Permission
	for _, t := range types {
		for _, a := range actions {
			if g.Can(ctx, user, a, t, nil) {
				perms = append(perms, NewPermission(t, a))
			}
		}
	}
	return perms
}
