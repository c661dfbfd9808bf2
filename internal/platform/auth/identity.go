package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller attached to each request after bearer
// verification. HospitalID and BranchID are nil for roles whose scope does
// not include them (master admins have neither, hospital admins have no
// branch).
type Identity struct {
	ID         uuid.UUID
	Role       string
	HospitalID *uuid.UUID
	BranchID   *uuid.UUID
	Name       string
}

// IsZero reports whether no identity was attached to the request.
func (i Identity) IsZero() bool {
	return i.ID == uuid.Nil && i.Role == ""
}

// WithIdentity returns a context carrying the authenticated identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the authenticated identity from the context.
// The zero Identity is returned when no identity was attached.
func IdentityFromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey).(Identity)
	return id
}
