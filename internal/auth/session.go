package auth

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type contextKey string

const sessionKey contextKey = "session"

// Session is the caller identity resolved from the session token. TenantID
// is the only tenant a handler may read or write for this request.
type Session struct {
	TenantID    uint
	UserID      uint
	Permissions PermissionSet
}

func (s *Session) Can(p Permission) bool {
	return s != nil && s.Permissions.Has(p)
}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok && s != nil
}

func EnsureAuthenticated(ctx context.Context) (*Session, error) {
	s, ok := FromContext(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("Unauthorized")
	}
	return s, nil
}

// EnsurePermission requires every listed permission.
func EnsurePermission(ctx context.Context, perms ...Permission) (*Session, error) {
	s, err := EnsureAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range perms {
		if !s.Can(p) {
			return nil, huma.Error403Forbidden("Missing permission " + string(p))
		}
	}
	return s, nil
}
