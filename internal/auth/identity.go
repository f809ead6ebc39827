package auth

import (
	"context"

	"github.com/google/uuid"
)

type Role string

const (
	RolePetOwner     Role = "pet_owner"
	RoleVeterinarian Role = "veterinarian"
	RoleAdmin        Role = "admin"
)

func (r Role) IsValid() bool {
	return r == RolePetOwner || r == RoleVeterinarian || r == RoleAdmin
}

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
