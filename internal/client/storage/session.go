package storage

import (
	"context"
	"time"
)

// SessionStorage keeps the single current session of the CLI user
type SessionStorage interface {
	// SaveSession replaces the stored session
	SaveSession(ctx context.Context, session *Session) error

	// GetSession returns the stored session
	// Returns ErrSessionNotFound if nobody is logged in
	GetSession(ctx context.Context) (*Session, error)

	// DeleteSession removes the stored session
	// Returns ErrSessionNotFound if nobody is logged in
	DeleteSession(ctx context.Context) error
}

// Session is the locally cached login
type Session struct {
	ExpiresAt time.Time `json:"expires_at"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ServerURL string    `json:"server_url"`
}

// Expired reports whether the token is past its expiry at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
