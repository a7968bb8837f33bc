package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/KennethHeine/chat-ai/internal/cipher"
)

// MaxCookieValueSize bounds the stateless cookie value. Browsers reject
// cookies much beyond 4KB.
const MaxCookieValueSize = 3800

// ErrPayloadTooLarge is returned when a stateless session no longer fits in
// a cookie.
var ErrPayloadTooLarge = errors.New("session: payload too large for a cookie")

// Backend turns session data into a cookie value and back. A deployment
// uses exactly one implementation.
type Backend interface {
	// Create persists data and returns the cookie value identifying it.
	Create(ctx context.Context, data Data) (string, error)

	// Read resolves a cookie value. Unknown, expired or undecodable values
	// yield ErrNotFound.
	Read(ctx context.Context, value string) (*Data, error)

	// Update merges patch. It returns the replacement cookie value, or ""
	// when the existing value stays valid.
	Update(ctx context.Context, value string, patch Patch) (string, error)

	// Delete invalidates the session behind value, if any.
	Delete(ctx context.Context, value string) error

	Close() error
}

// StoreBackend is the stateful backend: the cookie carries an opaque random
// session ID and the data lives in a Store.
type StoreBackend struct {
	store Store
}

func NewStoreBackend(store Store) *StoreBackend {
	return &StoreBackend{store: store}
}

func (b *StoreBackend) Create(ctx context.Context, data Data) (string, error) {
	sessionID, err := GenerateID()
	if err != nil {
		return "", err
	}
	if err := b.store.Create(ctx, sessionID, data); err != nil {
		return "", err
	}
	return sessionID, nil
}

func (b *StoreBackend) Read(ctx context.Context, value string) (*Data, error) {
	return b.store.Read(ctx, value)
}

func (b *StoreBackend) Update(ctx context.Context, value string, patch Patch) (string, error) {
	return "", b.store.Update(ctx, value, patch)
}

func (b *StoreBackend) Delete(ctx context.Context, value string) error {
	return b.store.Delete(ctx, value)
}

func (b *StoreBackend) Close() error {
	return b.store.Close()
}

// CookieBackend is the stateless backend: the whole session is encrypted
// into the cookie value. There is no server-side record to revoke.
type CookieBackend struct {
	cipher *cipher.Cipher
	opts   storeOptions
}

func NewCookieBackend(c *cipher.Cipher, opts ...StoreOption) *CookieBackend {
	return &CookieBackend{cipher: c, opts: buildStoreOptions(opts)}
}

func (b *CookieBackend) Create(_ context.Context, data Data) (string, error) {
	data.ExpiresAt = b.opts.now().Add(b.opts.ttl).Truncate(time.Millisecond)
	return b.seal(data)
}

func (b *CookieBackend) Read(_ context.Context, value string) (*Data, error) {
	plaintext, err := b.cipher.Decrypt(value)
	if err != nil {
		return nil, ErrNotFound
	}

	var data Data
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, ErrNotFound
	}
	if data.Expired(b.opts.now()) {
		return nil, ErrNotFound
	}
	return &data, nil
}

// Update re-encrypts the merged payload. The absolute expiry is carried
// over unchanged.
func (b *CookieBackend) Update(ctx context.Context, value string, patch Patch) (string, error) {
	data, err := b.Read(ctx, value)
	if err != nil {
		return "", err
	}
	return b.seal(data.Apply(patch))
}

func (b *CookieBackend) Delete(context.Context, string) error {
	return nil
}

func (b *CookieBackend) Close() error {
	return nil
}

func (b *CookieBackend) seal(data Data) (string, error) {
	plaintext, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("session: marshal: %w", err)
	}
	value, err := b.cipher.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	if len(value) > MaxCookieValueSize {
		return "", ErrPayloadTooLarge
	}
	return value, nil
}

var (
	_ Backend = (*StoreBackend)(nil)
	_ Backend = (*CookieBackend)(nil)
)
