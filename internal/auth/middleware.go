package auth

import (
	"context"
	"strings"
)

type contextKey string

const userIDContextKey contextKey = "user_id"

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. Returns ErrTokenMissing when the header is absent or not in
// bearer form.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrTokenMissing
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", ErrTokenMissing
	}
	return parts[1], nil
}

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext returns the authenticated user id, or "" when the
// request did not pass the auth gate.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDContextKey).(string); ok {
		return id
	}
	return ""
}
