package handlers

import (
	"context"
	"time"
)

// SessionCodec issues and verifies session tokens
type SessionCodec interface {
	Issue(userID string, ttl time.Duration) (string, time.Time, error)
	Verify(token string) (string, time.Time, error)
}

// PasswordHasher hashes and checks passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) (bool, error)
}

// EmailTokenIssuer creates and checks email verification tokens
type EmailTokenIssuer interface {
	Issue(email string) (string, error)
	Validate(token, email string) error
}

// VerificationMailer delivers the verification link
type VerificationMailer interface {
	SendVerification(ctx context.Context, to, name, token string) error
}
