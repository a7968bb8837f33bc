package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/KennethHeine/chat-ai/internal/logger"
)

// Manager mints and parses the session cookie on top of a Backend.
type Manager struct {
	backend Backend
	cookies CookieOptions
}

func NewManager(backend Backend, cookies CookieOptions) *Manager {
	return &Manager{
		backend: backend,
		cookies: cookies.normalize(),
	}
}

// Create persists a new session and returns its cookie directive.
func (m *Manager) Create(ctx context.Context, data Data) (*http.Cookie, error) {
	value, err := m.backend.Create(ctx, data)
	if err != nil {
		return nil, err
	}
	return m.cookies.cookie(value), nil
}

// Get resolves the request's session. Any failure, including storage
// errors, yields nil: resolution problems only ever mean "unauthenticated".
func (m *Manager) Get(r *http.Request) *Data {
	value := m.cookies.value(r)
	if value == "" {
		return nil
	}

	data, err := m.backend.Read(r.Context(), value)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Error("session lookup failed", map[string]any{
				"error": err.Error(),
				"sid":   logger.TruncateID(value),
			})
		}
		return nil
	}
	return data
}

// Update merges patch into the request's session. It is a no-op without a
// session cookie. When the backend reissues the value (stateless mode) the
// new cookie directive is returned; otherwise the cookie is nil.
func (m *Manager) Update(r *http.Request, patch Patch) (*http.Cookie, error) {
	value := m.cookies.value(r)
	if value == "" {
		return nil, nil
	}

	next, err := m.backend.Update(r.Context(), value, patch)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if next == "" {
		return nil, nil
	}
	return m.cookies.cookie(next), nil
}

// Destroy deletes the backing record, if any, and always returns an
// expiring cookie directive. The error reports a failed delete; the cookie
// is valid either way.
func (m *Manager) Destroy(r *http.Request) (*http.Cookie, error) {
	expired := m.cookies.expired()

	value := m.cookies.value(r)
	if value == "" {
		return expired, nil
	}
	if err := m.backend.Delete(r.Context(), value); err != nil {
		return expired, err
	}
	return expired, nil
}

// Close releases the backend.
func (m *Manager) Close() error {
	return m.backend.Close()
}
