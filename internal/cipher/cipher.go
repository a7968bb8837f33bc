// Package cipher seals opaque session payloads for transport inside a
// cookie. Tokens are AES-256-GCM with a fresh random nonce per call, laid out
// as nonce|tag|ciphertext and base64url encoded without padding.
package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/KennethHeine/chat-ai/internal/logger"

	"golang.org/x/crypto/hkdf"
)

const (
	nonceSize = 16
	tagSize   = 16
	keySize   = 32

	keyInfo = "chat-ai session cookie v1"
)

// DevSecret is the well-known fallback used only in development.
const DevSecret = "dev-secret-change-me"

var (
	// ErrIntegrity is returned for every decryption failure: bad encoding,
	// truncated input, or a tag that does not verify.
	ErrIntegrity = errors.New("cipher: token failed integrity check")

	// ErrNoSecret is returned when no secret is configured outside
	// development.
	ErrNoSecret = errors.New("cipher: SESSION_SECRET is not set")
)

type Cipher struct {
	aead gocipher.AEAD
}

// New derives the key from secret. An empty secret is only accepted when
// development is true, in which case DevSecret is used and a warning logged.
func New(secret string, development bool) (*Cipher, error) {
	if secret == "" {
		if !development {
			return nil, ErrNoSecret
		}
		logger.Warn("SESSION_SECRET is not set, using insecure development default", nil)
		secret = DevSecret
	}

	key, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: init aes: %w", err)
	}

	aead, err := gocipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("cipher: init gcm: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext into a transport-safe token.
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("cipher: generate nonce: %w", err)
	}

	// Seal appends the tag after the ciphertext.
	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, nonceSize+tagSize+len(ct))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ct...)

	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decrypt verifies and opens a token produced by Encrypt.
func (c *Cipher) Decrypt(token string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) < nonceSize+tagSize {
		return nil, ErrIntegrity
	}

	nonce := raw[:nonceSize]
	tag := raw[nonceSize : nonceSize+tagSize]
	ct := raw[nonceSize+tagSize:]

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}

func deriveKey(secret string) ([]byte, error) {
	key := make([]byte, keySize)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("cipher: derive key: %w", err)
	}
	return key, nil
}
