package contacts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contactbook/contactbook-api/core"
)

// Service orchestrates token resolution, upstream fetch, normalization,
// and caching for one request.
type Service struct {
	tokens  TokenSource
	fetcher Fetcher
	cache   Cache
	linker  Linker
	pub     Publisher
	logger  *zap.Logger
}

// Option configures the service.
type Option func(*Service)

// WithLinker enables the Google account linking operations.
func WithLinker(l Linker) Option {
	return func(s *Service) {
		s.linker = l
	}
}

// WithPublisher sets the sync event publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.pub = p
	}
}

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates the contacts service.
func NewService(tokens TokenSource, fetcher Fetcher, cache Cache, opts ...Option) *Service {
	s := &Service{
		tokens:  tokens,
		fetcher: fetcher,
		cache:   cache,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch returns the user's contacts, serving from cache when a live
// snapshot exists and hitting the People API otherwise. On upstream
// failure an expired snapshot is returned when the cache has one.
func (s *Service) Fetch(ctx context.Context, id core.Identity) (*core.ContactList, error) {
	if snap, err := s.cache.Get(ctx, id.UserID); err == nil {
		s.logger.Info("serving cached contacts",
			zap.String("user_id", id.UserID), zap.Int("count", snap.Count))
		return listFrom(snap, true), nil
	}

	token, err := s.tokens.GoogleAccessToken(ctx, id.UserID)
	if err != nil {
		return nil, err
	}

	fetched, err := s.fetcher.Connections(ctx, token)
	if err != nil {
		s.logger.Warn("people api fetch failed",
			zap.String("user_id", id.UserID), zap.Error(err))
		if snap := s.stale(ctx, id.UserID); snap != nil {
			s.logger.Info("serving stale contacts after upstream failure",
				zap.String("user_id", id.UserID), zap.Int("count", snap.Count))
			return listFrom(snap, true), nil
		}
		return nil, fmt.Errorf("fetch contacts: %w", err)
	}

	snap := &Snapshot{
		Contacts: fetched,
		CachedAt: time.Now().UTC(),
		Count:    len(fetched),
	}
	if err := s.cache.Set(ctx, id.UserID, snap); err != nil {
		// A write failure degrades to uncached operation.
		s.logger.Warn("cache write failed",
			zap.String("user_id", id.UserID), zap.Error(err))
	}

	s.publish(Event{
		ID:       uuid.NewString(),
		Type:     EventRefreshed,
		UserID:   id.UserID,
		Count:    snap.Count,
		CachedAt: snap.CachedAt,
	})

	s.logger.Info("fetched contacts from people api",
		zap.String("user_id", id.UserID), zap.Int("count", snap.Count))
	return listFrom(snap, false), nil
}

// Cached returns whatever live snapshot the cache holds, or an empty
// list when there is none. It never calls the People API.
func (s *Service) Cached(ctx context.Context, id core.Identity) (*core.ContactList, error) {
	snap, err := s.cache.Get(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotCached) {
			return &core.ContactList{Contacts: []core.Contact{}, Cached: true}, nil
		}
		return nil, err
	}
	return listFrom(snap, true), nil
}

// ClearCache drops the user's snapshot and notifies their devices.
func (s *Service) ClearCache(ctx context.Context, id core.Identity) error {
	if err := s.cache.Delete(ctx, id.UserID); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	s.publish(Event{
		ID:     uuid.NewString(),
		Type:   EventCacheCleared,
		UserID: id.UserID,
	})
	s.logger.Info("cleared contact cache", zap.String("user_id", id.UserID))
	return nil
}

// LinkURL returns the Google consent URL for the caller, with the
// user id as the OAuth state.
func (s *Service) LinkURL(ctx context.Context, id core.Identity) (string, error) {
	if s.linker == nil {
		return "", errors.New("google account linking not configured")
	}
	return s.linker.AuthCodeURL(id.UserID), nil
}

// CompleteLink finishes the linking flow: the state must match the
// caller and the code must exchange cleanly.
func (s *Service) CompleteLink(ctx context.Context, id core.Identity, code, state string) error {
	if s.linker == nil {
		return errors.New("google account linking not configured")
	}
	if state != id.UserID {
		return errors.New("oauth state mismatch")
	}
	if _, err := s.linker.Exchange(ctx, code); err != nil {
		return fmt.Errorf("complete link: %w", err)
	}
	// Clerk stores the provider tokens once the account is linked;
	// nothing to persist on our side.
	s.logger.Info("linked google account", zap.String("user_id", id.UserID))
	return nil
}

func (s *Service) stale(ctx context.Context, userID string) *Snapshot {
	sr, ok := s.cache.(StaleReader)
	if !ok {
		return nil
	}
	snap, err := sr.Stale(ctx, userID)
	if err != nil {
		return nil
	}
	return snap
}

func (s *Service) publish(ev Event) {
	if s.pub != nil {
		s.pub.Publish(ev)
	}
}

func listFrom(snap *Snapshot, cached bool) *core.ContactList {
	at := snap.CachedAt
	return &core.ContactList{
		Contacts:    snap.Contacts,
		Total:       snap.Count,
		Cached:      cached,
		LastUpdated: &at,
	}
}
