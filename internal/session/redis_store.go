package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldIdentityToken = "identityToken"
	fieldUserLogin     = "userLogin"
	fieldUserAvatar    = "userAvatar"
	fieldCredToken     = "credToken"
	fieldCredBaseURL   = "credBaseUrl"
	fieldCredExpiresAt = "credExpiresAt"
	fieldExpiresAt     = "expiresAt"
)

// mergeScript applies HSET only when the hash still exists, so an update
// racing a delete or expiry does not resurrect the session.
var mergeScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV))
return 1
`)

// RedisStore keeps each session as a hash under "<prefix><id>" with a
// Redis expiry matching the session's absolute expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
	opts   storeOptions
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client, opts ...StoreOption) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "session:",
		opts:   buildStoreOptions(opts),
	}
}

func (r *RedisStore) key(sessionID string) string {
	return r.prefix + sessionID
}

func (r *RedisStore) Create(ctx context.Context, sessionID string, data Data) error {
	if sessionID == "" {
		return fmt.Errorf("session: missing session_id")
	}

	expiresAt := r.opts.now().Add(r.opts.ttl)
	values := map[string]any{
		fieldIdentityToken: data.IdentityToken,
		fieldUserLogin:     data.User.Login,
		fieldUserAvatar:    data.User.AvatarURL,
		fieldCredToken:     "",
		fieldCredBaseURL:   "",
		fieldCredExpiresAt: 0,
		fieldExpiresAt:     expiresAt.UnixMilli(),
	}
	if c := data.Credential; c != nil {
		values[fieldCredToken] = c.Token
		values[fieldCredBaseURL] = c.BaseURL
		values[fieldCredExpiresAt] = c.ExpiresAt
	}

	key := r.key(sessionID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values)
		pipe.PExpire(ctx, key, r.opts.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: redis create: %w", err)
	}
	return nil
}

func (r *RedisStore) Read(ctx context.Context, sessionID string) (*Data, error) {
	key := r.key(sessionID)

	fields, err := r.client.HGetAll(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: redis read: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	data, err := decodeHash(fields)
	if err != nil {
		return nil, err
	}

	if data.Expired(r.opts.now()) {
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return nil, fmt.Errorf("session: redis delete expired: %w", err)
		}
		return nil, ErrNotFound
	}

	return data, nil
}

func (r *RedisStore) Update(ctx context.Context, sessionID string, patch Patch) error {
	if patch.empty() {
		return nil
	}

	var args []any
	if u := patch.User; u != nil {
		args = append(args, fieldUserLogin, u.Login, fieldUserAvatar, u.AvatarURL)
	}
	if c := patch.Credential; c != nil {
		args = append(args,
			fieldCredToken, c.Token,
			fieldCredBaseURL, c.BaseURL,
			fieldCredExpiresAt, c.ExpiresAt,
		)
	}

	err := mergeScript.Run(ctx, r.client, []string{r.key(sessionID)}, args...).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("session: redis update: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("session: redis delete: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func decodeHash(fields map[string]string) (*Data, error) {
	expiresAt, err := parseMillis(fields[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("session: redis decode %s: %w", fieldExpiresAt, err)
	}

	data := &Data{
		IdentityToken: fields[fieldIdentityToken],
		User: User{
			Login:     fields[fieldUserLogin],
			AvatarURL: fields[fieldUserAvatar],
		},
		ExpiresAt: time.UnixMilli(expiresAt),
	}

	if token := fields[fieldCredToken]; token != "" {
		credExpiresAt, err := parseMillis(fields[fieldCredExpiresAt])
		if err != nil {
			return nil, fmt.Errorf("session: redis decode %s: %w", fieldCredExpiresAt, err)
		}
		data.Credential = &Credential{
			Token:     token,
			BaseURL:   fields[fieldCredBaseURL],
			ExpiresAt: credExpiresAt,
		}
	}

	return data, nil
}

func parseMillis(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

var _ Store = (*RedisStore)(nil)
