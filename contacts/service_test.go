package contacts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contactbook/contactbook-api/contacts"
	"github.com/contactbook/contactbook-api/core"
	"github.com/contactbook/contactbook-api/people"
)

type fakeTokens struct {
	token string
	err   error
}

func (f *fakeTokens) GoogleAccessToken(ctx context.Context, userID string) (string, error) {
	return f.token, f.err
}

type fakeFetcher struct {
	contacts []core.Contact
	err      error
	calls    int
}

func (f *fakeFetcher) Connections(ctx context.Context, accessToken string) ([]core.Contact, error) {
	f.calls++
	return f.contacts, f.err
}

// fakeCache implements Cache and StaleReader over plain maps.
type fakeCache struct {
	live  map[string]*contacts.Snapshot
	stale map[string]*contacts.Snapshot
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		live:  make(map[string]*contacts.Snapshot),
		stale: make(map[string]*contacts.Snapshot),
	}
}

func (f *fakeCache) Get(ctx context.Context, userID string) (*contacts.Snapshot, error) {
	if snap, ok := f.live[userID]; ok {
		return snap, nil
	}
	return nil, core.ErrNotCached
}

func (f *fakeCache) Set(ctx context.Context, userID string, snap *contacts.Snapshot) error {
	f.live[userID] = snap
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, userID string) error {
	delete(f.live, userID)
	delete(f.stale, userID)
	return nil
}

func (f *fakeCache) Stale(ctx context.Context, userID string) (*contacts.Snapshot, error) {
	if snap, ok := f.stale[userID]; ok {
		return snap, nil
	}
	return nil, core.ErrNotCached
}

func (f *fakeCache) Close() error { return nil }

type fakePublisher struct {
	events []contacts.Event
}

func (f *fakePublisher) Publish(ev contacts.Event) {
	f.events = append(f.events, ev)
}

type fakeLinker struct {
	exchanged string
	err       error
}

func (f *fakeLinker) AuthCodeURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (f *fakeLinker) Exchange(ctx context.Context, code string) (*people.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.exchanged = code
	return &people.Token{AccessToken: "ya29.x"}, nil
}

var ident = core.Identity{UserID: "user_123"}

func TestFetch_CacheHit(t *testing.T) {
	cache := newFakeCache()
	cache.live["user_123"] = &contacts.Snapshot{
		Contacts: []core.Contact{{ID: "people/c1", Name: "Ada"}},
		Count:    1,
		CachedAt: time.Now().UTC(),
	}
	fetcher := &fakeFetcher{}
	svc := contacts.NewService(&fakeTokens{token: "tok"}, fetcher, cache)

	list, err := svc.Fetch(context.Background(), ident)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !list.Cached {
		t.Error("expected cached response")
	}
	if list.Total != 1 {
		t.Errorf("expected 1 contact, got %d", list.Total)
	}
	if fetcher.calls != 0 {
		t.Errorf("fetcher should not run on cache hit, ran %d times", fetcher.calls)
	}
}

func TestFetch_MissFetchesAndCaches(t *testing.T) {
	cache := newFakeCache()
	fetcher := &fakeFetcher{contacts: []core.Contact{
		{ID: "people/c1", Name: "Ada"},
		{ID: "people/c2", Name: "Alan"},
	}}
	pub := &fakePublisher{}
	svc := contacts.NewService(&fakeTokens{token: "tok"}, fetcher, cache,
		contacts.WithPublisher(pub))

	list, err := svc.Fetch(context.Background(), ident)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if list.Cached {
		t.Error("fresh fetch should not be marked cached")
	}
	if list.Total != 2 {
		t.Errorf("expected 2 contacts, got %d", list.Total)
	}

	if snap, ok := cache.live["user_123"]; !ok || snap.Count != 2 {
		t.Errorf("snapshot not cached: %+v", snap)
	}

	if len(pub.events) != 1 || pub.events[0].Type != contacts.EventRefreshed {
		t.Errorf("expected one refreshed event, got %+v", pub.events)
	}
	if pub.events[0].UserID != "user_123" || pub.events[0].Count != 2 {
		t.Errorf("event payload wrong: %+v", pub.events[0])
	}
}

func TestFetch_GoogleNotLinked(t *testing.T) {
	svc := contacts.NewService(
		&fakeTokens{err: core.ErrGoogleNotLinked},
		&fakeFetcher{},
		newFakeCache())

	_, err := svc.Fetch(context.Background(), ident)
	if !errors.Is(err, core.ErrGoogleNotLinked) {
		t.Errorf("expected ErrGoogleNotLinked, got %v", err)
	}
}

func TestFetch_UpstreamFailureFallsBackToStale(t *testing.T) {
	cache := newFakeCache()
	cache.stale["user_123"] = &contacts.Snapshot{
		Contacts: []core.Contact{{ID: "people/c1", Name: "Ada"}},
		Count:    1,
		CachedAt: time.Now().UTC().Add(-3 * time.Hour),
	}
	svc := contacts.NewService(
		&fakeTokens{token: "tok"},
		&fakeFetcher{err: core.ErrUpstream},
		cache)

	list, err := svc.Fetch(context.Background(), ident)
	if err != nil {
		t.Fatalf("expected stale fallback, got %v", err)
	}
	if !list.Cached || list.Total != 1 {
		t.Errorf("unexpected fallback list: %+v", list)
	}
}

func TestFetch_UpstreamFailureWithoutStale(t *testing.T) {
	svc := contacts.NewService(
		&fakeTokens{token: "tok"},
		&fakeFetcher{err: core.ErrUpstream},
		newFakeCache())

	_, err := svc.Fetch(context.Background(), ident)
	if !errors.Is(err, core.ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
}

func TestCached_EmptyWhenNothingStored(t *testing.T) {
	svc := contacts.NewService(&fakeTokens{token: "tok"}, &fakeFetcher{}, newFakeCache())

	list, err := svc.Cached(context.Background(), ident)
	if err != nil {
		t.Fatalf("Cached failed: %v", err)
	}
	if list.Total != 0 || list.Contacts == nil {
		t.Errorf("expected empty non-nil list, got %+v", list)
	}
}

func TestClearCache(t *testing.T) {
	cache := newFakeCache()
	cache.live["user_123"] = &contacts.Snapshot{Count: 1, CachedAt: time.Now().UTC()}
	pub := &fakePublisher{}
	svc := contacts.NewService(&fakeTokens{token: "tok"}, &fakeFetcher{}, cache,
		contacts.WithPublisher(pub))

	if err := svc.ClearCache(context.Background(), ident); err != nil {
		t.Fatalf("ClearCache failed: %v", err)
	}
	if _, ok := cache.live["user_123"]; ok {
		t.Error("entry not deleted")
	}
	if len(pub.events) != 1 || pub.events[0].Type != contacts.EventCacheCleared {
		t.Errorf("expected cache.cleared event, got %+v", pub.events)
	}
}

func TestLink(t *testing.T) {
	linker := &fakeLinker{}
	svc := contacts.NewService(&fakeTokens{token: "tok"}, &fakeFetcher{}, newFakeCache(),
		contacts.WithLinker(linker))
	ctx := context.Background()

	url, err := svc.LinkURL(ctx, ident)
	if err != nil {
		t.Fatalf("LinkURL failed: %v", err)
	}
	if url != "https://accounts.google.com/o/oauth2/auth?state=user_123" {
		t.Errorf("unexpected link url: %q", url)
	}

	if err := svc.CompleteLink(ctx, ident, "code-1", "someone_else"); err == nil {
		t.Error("state mismatch should fail")
	}

	if err := svc.CompleteLink(ctx, ident, "code-1", "user_123"); err != nil {
		t.Errorf("CompleteLink failed: %v", err)
	}
	if linker.exchanged != "code-1" {
		t.Errorf("code not exchanged: %q", linker.exchanged)
	}
}

func TestLink_NotConfigured(t *testing.T) {
	svc := contacts.NewService(&fakeTokens{token: "tok"}, &fakeFetcher{}, newFakeCache())

	if _, err := svc.LinkURL(context.Background(), ident); err == nil {
		t.Error("expected error without linker")
	}
}
