package session

import (
	"context"
	"time"
)

// Store is durable keyed storage for stateful sessions. All operations treat
// a missing record as benign: Read returns ErrNotFound, Update and Delete are
// no-ops. Every other storage error is returned to the caller unchanged.
type Store interface {
	// Create inserts a new record expiring TTL from now.
	Create(ctx context.Context, sessionID string, data Data) error

	// Read returns the session if it has not expired. An expired record is
	// deleted as a side effect and reported as ErrNotFound.
	Read(ctx context.Context, sessionID string) (*Data, error)

	// Update merges patch into an existing record.
	Update(ctx context.Context, sessionID string, patch Patch) error

	// Delete removes the record.
	Delete(ctx context.Context, sessionID string) error

	Close() error
}

type storeOptions struct {
	ttl time.Duration
	now func() time.Time
}

type StoreOption func(*storeOptions)

// WithTTL sets the lifetime given to newly created sessions.
func WithTTL(ttl time.Duration) StoreOption {
	return func(o *storeOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock injects the time source used for expiry.
func WithClock(now func() time.Time) StoreOption {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func buildStoreOptions(opts []StoreOption) storeOptions {
	o := storeOptions{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
