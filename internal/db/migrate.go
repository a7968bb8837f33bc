package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidTableName reports whether name can be interpolated into DDL.
func ValidTableName(name string) bool {
	return identPattern.MatchString(name)
}

// sessionTableDDL works on both PostgreSQL and SQLite. Timestamps are unix
// milliseconds so both drivers round-trip them identically.
const sessionTableDDL = `
CREATE TABLE IF NOT EXISTS %s (
    id text PRIMARY KEY,
    identity_token text NOT NULL,
    user_login text NOT NULL DEFAULT '',
    user_avatar text NOT NULL DEFAULT '',
    cred_token text NOT NULL DEFAULT '',
    cred_base_url text NOT NULL DEFAULT '',
    cred_expires_at bigint NOT NULL DEFAULT 0,
    expires_at bigint NOT NULL
)`

// EnsureSessionTable creates the session table if it is missing. Losing a
// concurrent creation race is not an error.
func EnsureSessionTable(ctx context.Context, conn *sql.DB, table string) error {
	if !ValidTableName(table) {
		return fmt.Errorf("db: invalid table name %q", table)
	}
	_, err := conn.ExecContext(ctx, fmt.Sprintf(sessionTableDDL, table))
	if err != nil && !IsAlreadyExists(err) {
		return fmt.Errorf("db: create table %s: %w", table, err)
	}
	return nil
}

// IsAlreadyExists reports whether err is a duplicate-table error. Concurrent
// CREATE TABLE IF NOT EXISTS on PostgreSQL can fail with duplicate_table or
// with a unique violation on the catalog.
func IsAlreadyExists(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P07" || pqErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "already exists")
}
