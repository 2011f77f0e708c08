package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Supported AEAD algorithms for session token encryption.
const (
	AlgorithmAES256GCM        = "aes-256-gcm"
	AlgorithmChaCha20Poly1305 = "chacha20-poly1305"
	// AlgorithmAES256 is the legacy name of aes-256-gcm
	AlgorithmAES256 = "aes256"

	// KeySize is the key length required by every supported algorithm.
	KeySize = 32
)

// ErrUnknownAlgorithm is returned for an algorithm name NewAEAD does not support.
var ErrUnknownAlgorithm = errors.New("unknown cipher algorithm")

// ErrCiphertextTooShort is returned by Open when the input cannot hold a nonce.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Supported reports whether NewAEAD accepts the algorithm name
func Supported(algorithm string) bool {
	switch algorithm {
	case AlgorithmAES256GCM, AlgorithmAES256, AlgorithmChaCha20Poly1305:
		return true
	}
	return false
}

// NewAEAD builds an AEAD for the named algorithm.
// "aes256" is accepted as an alias of aes-256-gcm.
func NewAEAD(algorithm string, key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}

	switch algorithm {
	case AlgorithmAES256GCM, AlgorithmAES256:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create cipher: %w", err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCM: %w", err)
		}
		return aead, nil
	case AlgorithmChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create chacha20-poly1305: %w", err)
		}
		return aead, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
}

// Seal encrypts plaintext with a fresh random nonce.
// Output layout: nonce || ciphertext || tag.
func Seal(aead cipher.AEAD, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("plaintext cannot be empty")
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal and authenticates the ciphertext.
func Open(aead cipher.AEAD, sealed []byte) ([]byte, error) {
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: authentication failed or corrupted data: %w", err)
	}

	return plaintext, nil
}
