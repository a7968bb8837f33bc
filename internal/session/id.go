package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// idSize is 32 bytes, 256 bits of entropy.
const idSize = 32

// GenerateID returns a fresh, unguessable, URL-safe session ID. It is never
// derived from request input.
func GenerateID() (string, error) {
	b := make([]byte, idSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: failed to generate id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
