package common

import "context"

type ctxKey string

const (
	userIDKey   ctxKey = "auth/user-id"
	userRoleKey ctxKey = "auth/user-role"
)

// WithUserID attaches the authenticated user's id to the context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID returns the authenticated user's id, or "" for anonymous
// requests.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// WithUserRole attaches the authenticated user's role to the context.
func WithUserRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, userRoleKey, role)
}

// UserRole returns the authenticated user's role, or "".
func UserRole(ctx context.Context) string {
	role, _ := ctx.Value(userRoleKey).(string)
	return role
}
