// Package identity carries the authenticated caller through the application.
//
// An Identity always has a stable user id. The email may be empty for a
// freshly created session; callers treat that as "collaborator of nothing".
package identity

import (
	"context"
	"errors"
	"strings"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

func (i Identity) HasEmail() bool {
	return i.Email != ""
}

// NormalizeEmail is the canonical form used wherever emails are compared
// or stored as cross-reference keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Provider yields the identity of the current caller.
type Provider interface {
	Current(ctx context.Context) (Identity, error)
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.ID != ""
}

// ContextProvider reads the identity stored by WithIdentity, typically by
// the HTTP authentication middleware.
type ContextProvider struct{}

func (ContextProvider) Current(ctx context.Context) (Identity, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	return id, nil
}

// Static always returns the same identity. Used by tools and tests.
type Static Identity

func (s Static) Current(context.Context) (Identity, error) {
	if s.ID == "" {
		return Identity{}, ErrUnauthenticated
	}
	return Identity(s), nil
}
