package contacts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contactbook/contactbook-api/contacts"
	"github.com/contactbook/contactbook-api/core"
)

func snap(name string) *contacts.Snapshot {
	return &contacts.Snapshot{
		Contacts: []core.Contact{{ID: "people/c1", Name: name}},
		Count:    1,
		CachedAt: time.Now().UTC(),
	}
}

func TestTiered_MemoryHit(t *testing.T) {
	mem, dur := newFakeCache(), newFakeCache()
	mem.live["user1"] = snap("from-memory")
	dur.live["user1"] = snap("from-durable")

	tiered := contacts.NewTiered(mem, dur, nil)

	got, err := tiered.Get(context.Background(), "user1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Contacts[0].Name != "from-memory" {
		t.Errorf("expected memory tier to win, got %q", got.Contacts[0].Name)
	}
}

func TestTiered_DurableHitReprimesMemory(t *testing.T) {
	mem, dur := newFakeCache(), newFakeCache()
	dur.live["user1"] = snap("from-durable")

	tiered := contacts.NewTiered(mem, dur, nil)

	got, err := tiered.Get(context.Background(), "user1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Contacts[0].Name != "from-durable" {
		t.Errorf("expected durable snapshot, got %q", got.Contacts[0].Name)
	}
	if _, ok := mem.live["user1"]; !ok {
		t.Error("memory tier not re-primed")
	}
}

func TestTiered_MissBothTiers(t *testing.T) {
	tiered := contacts.NewTiered(newFakeCache(), newFakeCache(), nil)

	if _, err := tiered.Get(context.Background(), "user1"); !errors.Is(err, core.ErrNotCached) {
		t.Errorf("expected ErrNotCached, got %v", err)
	}
}

func TestTiered_SetAndDeleteWriteBothTiers(t *testing.T) {
	mem, dur := newFakeCache(), newFakeCache()
	tiered := contacts.NewTiered(mem, dur, nil)
	ctx := context.Background()

	if err := tiered.Set(ctx, "user1", snap("x")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok := mem.live["user1"]; !ok {
		t.Error("memory tier not written")
	}
	if _, ok := dur.live["user1"]; !ok {
		t.Error("durable tier not written")
	}

	if err := tiered.Delete(ctx, "user1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := mem.live["user1"]; ok {
		t.Error("memory tier not cleared")
	}
	if _, ok := dur.live["user1"]; ok {
		t.Error("durable tier not cleared")
	}
}

func TestTiered_StaleComesFromDurable(t *testing.T) {
	mem, dur := newFakeCache(), newFakeCache()
	dur.stale["user1"] = snap("stale")

	tiered := contacts.NewTiered(mem, dur, nil)

	got, err := tiered.Stale(context.Background(), "user1")
	if err != nil {
		t.Fatalf("Stale failed: %v", err)
	}
	if got.Contacts[0].Name != "stale" {
		t.Errorf("unexpected stale snapshot: %+v", got)
	}
}

func TestTiered_NilDurable(t *testing.T) {
	mem := newFakeCache()
	tiered := contacts.NewTiered(mem, nil, nil)
	ctx := context.Background()

	if err := tiered.Set(ctx, "user1", snap("x")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := tiered.Get(ctx, "user1"); err != nil {
		t.Errorf("Get failed: %v", err)
	}
	if _, err := tiered.Stale(ctx, "user1"); !errors.Is(err, core.ErrNotCached) {
		t.Errorf("Stale without durable tier should miss, got %v", err)
	}
	if err := tiered.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
