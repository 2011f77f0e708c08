package crypto

import (
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters used to stretch the configured secret into a cipher key.
// The derivation runs once per process, so the cost only affects startup.
const (
	Argon2Time    = 2
	Argon2Memory  = 19 * 1024
	Argon2Threads = 2
)

// sessionKeySalt is fixed: the same secret must always yield the same key,
// otherwise tokens would not survive a restart.
var sessionKeySalt = []byte("accounts/session-token/v1")

// DeriveKey turns a shared secret of any length into a KeySize-byte key.
func DeriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("secret cannot be empty")
	}

	return argon2.IDKey([]byte(secret), sessionKeySalt, Argon2Time, Argon2Memory, Argon2Threads, KeySize), nil
}
