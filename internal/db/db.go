// Package db opens the SQL database backing the sql session store.
// PostgreSQL and SQLite are supported; the driver is detected from the
// connection string.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/KennethHeine/chat-ai/internal/logger"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

type Driver string

const (
	SQLite     Driver = "sqlite3"
	PostgreSQL Driver = "postgres"
)

type DB struct {
	*sql.DB
	Driver Driver
}

// DetectDriver determines the driver from the connection string.
func DetectDriver(dsn string) Driver {
	dsn = strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(dsn, "postgres://"),
		strings.HasPrefix(dsn, "postgresql://"),
		strings.Contains(dsn, "host="):
		return PostgreSQL
	default:
		return SQLite
	}
}

// Open connects and pings the database.
func Open(ctx context.Context, dsn string) (*DB, error) {
	driver := DetectDriver(dsn)

	sqlDB, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", driver, err)
	}

	switch driver {
	case SQLite:
		// A single connection keeps :memory: databases coherent and avoids
		// SQLITE_BUSY under concurrent writers.
		sqlDB.SetMaxOpenConns(1)
	case PostgreSQL:
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db: ping %s: %w", driver, err)
	}

	logger.Info("database ready", map[string]any{"driver": string(driver)})

	return &DB{DB: sqlDB, Driver: driver}, nil
}
