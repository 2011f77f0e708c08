package token

import (
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iudanet/accounts/internal/crypto"
)

var (
	// ErrDecode covers every reason a session token cannot be read:
	// bad encoding, failed authentication, or an unparsable payload.
	// The cases are deliberately indistinguishable.
	ErrDecode = errors.New("invalid session token")

	// ErrExpired is returned by Verify for a readable token past its expiry.
	ErrExpired = errors.New("session token expired")
)

const payloadSeparator = "."

// Codec encrypts (userID, expiry) pairs into opaque session tokens.
// It is safe for concurrent use.
type Codec struct {
	aead cipher.AEAD
	now  func() time.Time
}

// NewCodec derives the cipher key from secret and prepares the named algorithm.
func NewCodec(secret, algorithm string, opts ...Option) (*Codec, error) {
	key, err := crypto.DeriveKey(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to derive token key: %w", err)
	}

	aead, err := crypto.NewAEAD(algorithm, key)
	if err != nil {
		return nil, err
	}

	o := newOptions(opts)
	return &Codec{aead: aead, now: o.now}, nil
}

// Issue returns a token for userID that expires ttl from now, and its expiry.
func (c *Codec) Issue(userID string, ttl time.Duration) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("user id cannot be empty")
	}
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	expiresAt := time.UnixMilli(c.now().Add(ttl).UnixMilli())
	payload := userID + payloadSeparator + strconv.FormatInt(expiresAt.UnixMilli(), 10)

	sealed, err := crypto.Seal(c.aead, []byte(payload))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to encrypt token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(sealed), expiresAt, nil
}

// Decode returns the user id and expiry sealed in token. It does not look at
// the expiry; use Verify for that.
func (c *Codec) Decode(token string) (string, time.Time, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", time.Time{}, ErrDecode
	}

	plaintext, err := crypto.Open(c.aead, sealed)
	if err != nil {
		return "", time.Time{}, ErrDecode
	}

	payload := string(plaintext)
	idx := strings.LastIndex(payload, payloadSeparator)
	if idx <= 0 {
		return "", time.Time{}, ErrDecode
	}

	millis, err := strconv.ParseInt(payload[idx+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, ErrDecode
	}

	return payload[:idx], time.UnixMilli(millis), nil
}

// Verify decodes token and rejects it once its expiry has been reached.
func (c *Codec) Verify(token string) (string, time.Time, error) {
	userID, expiresAt, err := c.Decode(token)
	if err != nil {
		return "", time.Time{}, err
	}

	if !c.now().Before(expiresAt) {
		return "", time.Time{}, ErrExpired
	}

	return userID, expiresAt, nil
}
