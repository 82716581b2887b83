package auth

import "context"

type contextKey string

const (
	contextKeyRole  contextKey = "auth.role"
	contextKeyActor contextKey = "auth.actor_id"
)

// WithIdentity stores auth identity details in context.
func WithIdentity(ctx context.Context, actorID string, role Role) context.Context {
	ctx = context.WithValue(ctx, contextKeyActor, actorID)
	ctx = context.WithValue(ctx, contextKeyRole, role)
	return ctx
}

// ActorIDFromContext extracts the authenticated actor id from context.
func ActorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value := ctx.Value(contextKeyActor)
	if actorID, ok := value.(string); ok {
		return actorID
	}
	return ""
}

// RoleFromContext extracts role from context.
func RoleFromContext(ctx context.Context) Role {
	if ctx == nil {
		return ""
	}
	value := ctx.Value(contextKeyRole)
	if role, ok := value.(Role); ok {
		return role
	}
	if role, ok := value.(string); ok {
		if normalized, valid := NormalizeRole(role); valid {
			return normalized
		}
	}
	return ""
}
