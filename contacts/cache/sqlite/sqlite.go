// Package sqlite provides the durable snapshot cache tier. Expired
// rows are kept until overwritten or deleted so they can serve as a
// fallback when the People API is unreachable.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/contactbook/contactbook-api/contacts"
	"github.com/contactbook/contactbook-api/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS contact_snapshots (
	user_id   TEXT PRIMARY KEY,
	contacts  TEXT NOT NULL,
	count     INTEGER NOT NULL,
	cached_at INTEGER NOT NULL
);`

// Cache stores snapshots in a local sqlite database.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
}

// Open creates or opens the database at path and ensures the schema.
func Open(path string, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// sqlite handles one writer at a time; the pool just adds lock
	// contention.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Cache{db: db, ttl: ttl}, nil
}

// Get returns the user's snapshot when it is still within TTL.
func (c *Cache) Get(ctx context.Context, userID string) (*contacts.Snapshot, error) {
	snap, err := c.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if time.Since(snap.CachedAt) > c.ttl {
		return nil, core.ErrNotCached
	}
	return snap, nil
}

// Stale returns the snapshot regardless of TTL.
func (c *Cache) Stale(ctx context.Context, userID string) (*contacts.Snapshot, error) {
	return c.load(ctx, userID)
}

func (c *Cache) load(ctx context.Context, userID string) (*contacts.Snapshot, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT contacts, count, cached_at FROM contact_snapshots WHERE user_id = ?`, userID)

	var (
		contactsJSON string
		count        int
		cachedAt     int64
	)
	if err := row.Scan(&contactsJSON, &count, &cachedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotCached
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var list []core.Contact
	if err := json.Unmarshal([]byte(contactsJSON), &list); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	return &contacts.Snapshot{
		Contacts: list,
		Count:    count,
		CachedAt: time.Unix(cachedAt, 0).UTC(),
	}, nil
}

// Set stores or replaces the user's snapshot.
func (c *Cache) Set(ctx context.Context, userID string, snap *contacts.Snapshot) error {
	data, err := json.Marshal(snap.Contacts)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO contact_snapshots (user_id, contacts, count, cached_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   contacts = excluded.contacts,
		   count = excluded.count,
		   cached_at = excluded.cached_at`,
		userID, string(data), snap.Count, snap.CachedAt.Unix())
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Delete removes the user's snapshot.
func (c *Cache) Delete(ctx context.Context, userID string) error {
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM contact_snapshots WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}
