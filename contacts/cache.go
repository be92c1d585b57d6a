package contacts

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/contactbook/contactbook-api/core"
)

// Tiered layers a fast in-memory cache over a durable one. Reads that
// miss memory but hit the durable tier re-prime memory. The durable
// tier is optional; a nil durable Tiered behaves like the memory tier
// alone.
type Tiered struct {
	memory  Cache
	durable Cache
	logger  *zap.Logger
}

// NewTiered composes the tiers. durable may be nil.
func NewTiered(memory, durable Cache, logger *zap.Logger) *Tiered {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tiered{memory: memory, durable: durable, logger: logger}
}

// Get checks memory first, then the durable tier.
func (t *Tiered) Get(ctx context.Context, userID string) (*Snapshot, error) {
	if snap, err := t.memory.Get(ctx, userID); err == nil {
		return snap, nil
	}
	if t.durable == nil {
		return nil, core.ErrNotCached
	}

	snap, err := t.durable.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := t.memory.Set(ctx, userID, snap); err != nil {
		t.logger.Warn("memory tier re-prime failed", zap.Error(err))
	}
	return snap, nil
}

// Set writes both tiers. A durable write failure is reported but does
// not invalidate the memory write.
func (t *Tiered) Set(ctx context.Context, userID string, snap *Snapshot) error {
	memErr := t.memory.Set(ctx, userID, snap)
	if t.durable != nil {
		if err := t.durable.Set(ctx, userID, snap); err != nil {
			t.logger.Warn("durable tier write failed",
				zap.String("user_id", userID), zap.Error(err))
		}
	}
	return memErr
}

// Delete removes the entry from both tiers.
func (t *Tiered) Delete(ctx context.Context, userID string) error {
	memErr := t.memory.Delete(ctx, userID)
	var durErr error
	if t.durable != nil {
		durErr = t.durable.Delete(ctx, userID)
	}
	return errors.Join(memErr, durErr)
}

// Stale returns an expired snapshot from the durable tier, when it has
// one.
func (t *Tiered) Stale(ctx context.Context, userID string) (*Snapshot, error) {
	if t.durable == nil {
		return nil, core.ErrNotCached
	}
	if sr, ok := t.durable.(StaleReader); ok {
		return sr.Stale(ctx, userID)
	}
	return nil, core.ErrNotCached
}

// Close closes both tiers.
func (t *Tiered) Close() error {
	memErr := t.memory.Close()
	var durErr error
	if t.durable != nil {
		durErr = t.durable.Close()
	}
	return errors.Join(memErr, durErr)
}
