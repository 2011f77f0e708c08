package handlers

import (
	"context"

	"github.com/iudanet/accounts/internal/models"
)

type contextKey string

const sessionKey contextKey = "session"

// Session is the authenticated identity attached to a request
type Session struct {
	User  *models.User
	Token string
}

// WithSession returns a copy of ctx carrying s
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext extracts the session set by the auth middleware
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	if !ok || s == nil || s.User == nil {
		return nil, false
	}
	return s, true
}
