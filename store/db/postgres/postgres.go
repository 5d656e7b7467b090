package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/hrygo/cohort/internal/profile"
	"github.com/hrygo/cohort/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a PostgreSQL database using the DSN from the profile.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	driver := DB{db: db, profile: profile}

	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

var migrationStmts = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS "user" (
		id SERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		nickname TEXT NOT NULL DEFAULT '',
		row_status TEXT NOT NULL DEFAULT 'NORMAL',
		created_ts BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())
	)`,
	`CREATE TABLE IF NOT EXISTS activity (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT '',
		tag TEXT NOT NULL DEFAULT '',
		created_ts BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_user_id ON activity (user_id)`,
	`CREATE TABLE IF NOT EXISTS entity_vector (
		id SERIAL PRIMARY KEY,
		kind TEXT NOT NULL,
		entity_id INTEGER NOT NULL,
		embedding vector NOT NULL,
		dimension INTEGER NOT NULL,
		updated_ts BIGINT NOT NULL,
		UNIQUE (kind, entity_id)
	)`,
	`CREATE TABLE IF NOT EXISTS study_group (
		id SERIAL PRIMARY KEY,
		uid TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PROPOSED',
		subject TEXT,
		tags TEXT NOT NULL DEFAULT '[]',
		expires_ts BIGINT,
		created_ts BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW()),
		updated_ts BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())
	)`,
	`CREATE TABLE IF NOT EXISTS group_member (
		group_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		invite_status TEXT NOT NULL DEFAULT 'PENDING',
		responded_ts BIGINT,
		row_status TEXT NOT NULL DEFAULT 'NORMAL',
		PRIMARY KEY (group_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS inbox (
		id SERIAL PRIMARY KEY,
		receiver_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		group_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'UNREAD',
		created_ts BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())
	)`,
	`CREATE INDEX IF NOT EXISTS idx_inbox_receiver_id ON inbox (receiver_id)`,
}

// Migrate applies the latest schema. Statements are idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range migrationStmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to apply migration")
		}
	}
	return nil
}

// placeholder returns the n-th positional parameter, e.g. $3.
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// placeholders returns n comma-separated positional parameters, e.g. $1, $2, $3.
func placeholders(n int) string {
	list := make([]string, n)
	for i := range list {
		list[i] = placeholder(i + 1)
	}
	return strings.Join(list, ", ")
}
