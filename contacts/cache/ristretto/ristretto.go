// Package ristretto provides the in-memory snapshot cache tier.
package ristretto

import (
	"context"
	"fmt"
	"time"

	ristretto "github.com/dgraph-io/ristretto"

	"github.com/contactbook/contactbook-api/contacts"
	"github.com/contactbook/contactbook-api/core"
)

// Cache stores snapshots in a ristretto cache with the configured TTL.
// Expired entries are dropped by ristretto itself.
type Cache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// New creates the in-memory tier. maxEntries bounds the number of
// cached users; ttl <= 0 falls back to one hour.
func New(maxEntries int64, ttl time.Duration) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	// Ristretto sizing guidance: counters at 10x expected entries,
	// cost is one unit per user snapshot.
	rc, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}

	return &Cache{cache: rc, ttl: ttl}, nil
}

// Get returns the user's live snapshot.
func (c *Cache) Get(_ context.Context, userID string) (*contacts.Snapshot, error) {
	v, ok := c.cache.Get(cacheKey(userID))
	if !ok {
		return nil, core.ErrNotCached
	}
	snap, ok := v.(*contacts.Snapshot)
	if !ok {
		return nil, core.ErrNotCached
	}
	return snap, nil
}

// Set stores the snapshot. Ristretto applies writes asynchronously, so
// Wait makes the entry visible to the request that created it.
func (c *Cache) Set(_ context.Context, userID string, snap *contacts.Snapshot) error {
	if !c.cache.SetWithTTL(cacheKey(userID), snap, 1, c.ttl) {
		return fmt.Errorf("cache rejected entry for user %s", userID)
	}
	c.cache.Wait()
	return nil
}

// Delete removes the user's entry.
func (c *Cache) Delete(_ context.Context, userID string) error {
	c.cache.Del(cacheKey(userID))
	return nil
}

// Close releases the cache.
func (c *Cache) Close() error {
	c.cache.Close()
	return nil
}

func cacheKey(userID string) string {
	return "contacts:" + userID
}
