package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/KennethHeine/chat-ai/internal/db"
)

// SQLStore keeps sessions in a relational table. The table is provisioned
// lazily on first use. Placeholders are $n in ascending order so the same
// statements run on PostgreSQL and SQLite.
type SQLStore struct {
	conn  *sql.DB
	table string
	opts  storeOptions

	mu    sync.Mutex
	ready bool
}

func NewSQLStore(conn *sql.DB, table string, opts ...StoreOption) (*SQLStore, error) {
	if conn == nil {
		return nil, errors.New("session: sql connection is required")
	}
	if !db.ValidTableName(table) {
		return nil, fmt.Errorf("session: invalid table name %q", table)
	}
	return &SQLStore{
		conn:  conn,
		table: table,
		opts:  buildStoreOptions(opts),
	}, nil
}

func (s *SQLStore) ensureTable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}
	if err := db.EnsureSessionTable(ctx, s.conn, s.table); err != nil {
		return err
	}
	s.ready = true
	return nil
}

func (s *SQLStore) Create(ctx context.Context, sessionID string, data Data) error {
	if sessionID == "" {
		return fmt.Errorf("session: missing session_id")
	}
	if err := s.ensureTable(ctx); err != nil {
		return err
	}

	var cred Credential
	if data.Credential != nil {
		cred = *data.Credential
	}
	expiresAt := s.opts.now().Add(s.opts.ttl)

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO `+s.table+` (id, identity_token, user_login, user_avatar, cred_token, cred_base_url, cred_expires_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sessionID,
		data.IdentityToken,
		data.User.Login,
		data.User.AvatarURL,
		cred.Token,
		cred.BaseURL,
		cred.ExpiresAt,
		expiresAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("session: sql create: %w", err)
	}
	return nil
}

func (s *SQLStore) Read(ctx context.Context, sessionID string) (*Data, error) {
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}

	var (
		data          Data
		cred          Credential
		expiresAtUnix int64
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT identity_token, user_login, user_avatar, cred_token, cred_base_url, cred_expires_at, expires_at
		FROM `+s.table+` WHERE id = $1`,
		sessionID,
	).Scan(
		&data.IdentityToken,
		&data.User.Login,
		&data.User.AvatarURL,
		&cred.Token,
		&cred.BaseURL,
		&cred.ExpiresAt,
		&expiresAtUnix,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: sql read: %w", err)
	}

	data.ExpiresAt = time.UnixMilli(expiresAtUnix)
	if cred.Token != "" {
		data.Credential = &cred
	}

	if data.Expired(s.opts.now()) {
		if err := s.Delete(ctx, sessionID); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	return &data, nil
}

// Update merges patch into the row. A missing row affects nothing and is not
// an error.
func (s *SQLStore) Update(ctx context.Context, sessionID string, patch Patch) error {
	if patch.empty() {
		return nil
	}
	if err := s.ensureTable(ctx); err != nil {
		return err
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}
	if u := patch.User; u != nil {
		set("user_login", u.Login)
		set("user_avatar", u.AvatarURL)
	}
	if c := patch.Credential; c != nil {
		set("cred_token", c.Token)
		set("cred_base_url", c.BaseURL)
		set("cred_expires_at", c.ExpiresAt)
	}
	args = append(args, sessionID)

	query := `UPDATE ` + s.table + ` SET ` + strings.Join(sets, ", ") +
		` WHERE id = $` + strconv.Itoa(len(args))
	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("session: sql update: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.ensureTable(ctx); err != nil {
		return err
	}
	_, err := s.conn.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("session: sql delete: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.conn.Close()
}

var _ Store = (*SQLStore)(nil)
