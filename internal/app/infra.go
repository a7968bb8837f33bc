package app

import (
	"context"
	"fmt"

	"github.com/KennethHeine/chat-ai/internal/cipher"
	"github.com/KennethHeine/chat-ai/internal/config"
	"github.com/KennethHeine/chat-ai/internal/db"
	"github.com/KennethHeine/chat-ai/internal/logger"
	"github.com/KennethHeine/chat-ai/internal/redis"
	"github.com/KennethHeine/chat-ai/internal/session"
)

type Infra struct {
	Sessions session.Backend
}

// setupInfra builds the one session backend this deployment uses.
func setupInfra(ctx context.Context, cfg *config.Config) (*Infra, error) {
	opts := []session.StoreOption{session.WithTTL(cfg.SessionTTL())}

	var backend session.Backend
	switch cfg.SessionBackend {
	case config.BackendCookie:
		c, err := cipher.New(cfg.SessionSecret, cfg.IsDevelopment())
		if err != nil {
			return nil, err
		}
		if !cfg.IsDevelopment() {
			logger.Warn("cookie session backend cannot revoke sessions server-side, logout only clears the browser copy", map[string]any{
				"env": cfg.AppEnv,
			})
		}
		backend = session.NewCookieBackend(c, opts...)

	case config.BackendRedis:
		redisClient, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		logger.Info("redis ready", map[string]any{"addr": cfg.RedisAddr})
		backend = session.NewStoreBackend(session.NewRedisStore(redisClient.Client, opts...))

	case config.BackendSQL:
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store, err := session.NewSQLStore(conn.DB, cfg.SessionTableName, opts...)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		backend = session.NewStoreBackend(store)

	case config.BackendMemory:
		logger.Warn("using in-memory session store, sessions are lost on restart", nil)
		backend = session.NewStoreBackend(session.NewMemoryStore(opts...))

	default:
		return nil, fmt.Errorf("app: unknown session backend %q", cfg.SessionBackend)
	}

	logger.Info("session backend ready", map[string]any{"backend": cfg.SessionBackend})

	return &Infra{Sessions: backend}, nil
}
