package auth

import "context"

// Role is the privilege level granted by an API key.
type Role string

const (
	// RoleAnon is granted by the public key shipped with client apps.
	RoleAnon Role = "anon"
	// RoleService is granted by the server-side key used by dashboards and jobs.
	RoleService Role = "service"
)

// Allows reports whether r may act with the privileges of want. The service
// role includes the anon role.
func (r Role) Allows(want Role) bool {
	switch r {
	case RoleService:
		return want == RoleService || want == RoleAnon
	case RoleAnon:
		return want == RoleAnon
	}
	return false
}

type contextKey struct{}

type AuthContext struct {
	Role Role
	// ClientInfo is the caller's self-reported client, from x-client-info.
	ClientInfo string
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func RoleFrom(ctx context.Context) Role {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.Role
}

func IsService(ctx context.Context) bool {
	return RoleFrom(ctx) == RoleService
}
