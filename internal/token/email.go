package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidEmailToken is returned for a verification token that is
// malformed, signed with another key, issued for another email, or expired.
var ErrInvalidEmailToken = errors.New("invalid email verification token")

const emailTokenIssuer = "accounts"

// EmailTokens issues HS256-signed email verification tokens.
// A zero ttl produces tokens that never expire.
type EmailTokens struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewEmailTokens returns an issuer keyed by secret.
func NewEmailTokens(secret string, ttl time.Duration, opts ...Option) (*EmailTokens, error) {
	if secret == "" {
		return nil, fmt.Errorf("secret cannot be empty")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("email token ttl cannot be negative, got %s", ttl)
	}

	o := newOptions(opts)
	return &EmailTokens{
		// Separate key domain from the session cipher key.
		key: []byte("email-verification:" + secret),
		ttl: ttl,
		now: o.now,
	}, nil
}

// TTL reports how long issued tokens stay valid; zero means forever.
func (e *EmailTokens) TTL() time.Duration {
	return e.ttl
}

// Issue returns a new single-use token for email.
func (e *EmailTokens) Issue(email string) (string, error) {
	now := e.now()
	claims := jwt.RegisteredClaims{
		ID:       uuid.NewString(),
		Subject:  email,
		Issuer:   emailTokenIssuer,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if e.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(e.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(e.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign email token: %w", err)
	}

	return signed, nil
}

// Validate checks the signature, subject and expiry of token.
func (e *EmailTokens) Validate(token, email string) error {
	_, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
		return e.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(emailTokenIssuer),
		jwt.WithSubject(email),
		jwt.WithTimeFunc(e.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEmailToken, err)
	}

	return nil
}
