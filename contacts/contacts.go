package contacts

import (
	"context"
	"time"

	"github.com/contactbook/contactbook-api/core"
	"github.com/contactbook/contactbook-api/people"
)

// Snapshot is one user's cached contact list.
type Snapshot struct {
	Contacts []core.Contact `json:"contacts"`
	CachedAt time.Time      `json:"cached_at"`
	Count    int            `json:"count"`
}

// Cache stores per-user snapshots with a fixed TTL.
// Implementations: ristretto (in-memory), sqlite (durable), Tiered.
type Cache interface {
	// Get returns the live snapshot for the user, or core.ErrNotCached
	// when none exists or the entry has expired.
	Get(ctx context.Context, userID string) (*Snapshot, error)

	// Set stores a snapshot, replacing any previous entry.
	Set(ctx context.Context, userID string, snap *Snapshot) error

	// Delete removes the user's entry.
	Delete(ctx context.Context, userID string) error

	// Close releases resources.
	Close() error
}

// StaleReader is an optional Cache capability: return an expired
// snapshot for upstream-failure fallback. The sqlite tier implements
// it; pure in-memory tiers cannot, since ristretto drops expired
// entries outright.
type StaleReader interface {
	Stale(ctx context.Context, userID string) (*Snapshot, error)
}

// TokenSource resolves a user's Google access token. Implemented by
// auth.ClerkClient.
type TokenSource interface {
	GoogleAccessToken(ctx context.Context, userID string) (string, error)
}

// Fetcher pulls normalized contacts from the People API. Implemented
// by people.Client.
type Fetcher interface {
	Connections(ctx context.Context, accessToken string) ([]core.Contact, error)
}

// Linker runs the Google account linking flow. Implemented by
// people.OAuthFlow.
type Linker interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*people.Token, error)
}

// Event is a cache change notification fanned out to the user's other
// devices.
type Event struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	UserID   string    `json:"user_id"`
	Count    int       `json:"count,omitempty"`
	CachedAt time.Time `json:"cached_at,omitempty"`
}

// Event types.
const (
	EventRefreshed    = "contacts.refreshed"
	EventCacheCleared = "cache.cleared"
)

// Publisher receives cache change events. Implemented by sync.Hub.
type Publisher interface {
	Publish(event Event)
}
