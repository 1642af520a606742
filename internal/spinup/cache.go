package spinup

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/carbonspin/internal/ir"
)

// SnapshotStore persists spun-up pool snapshots across processes.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, key ir.CacheKey) ([]float64, bool, error)
	SaveSnapshot(ctx context.Context, key ir.CacheKey, values []float64) error
}

// Cache holds spun-up pool snapshots by cache-key fingerprint.
//
// A Cache is owned by one worker and passed to that worker's sequencers; it
// has no locks. An optional SnapshotStore is consulted on a miss and written
// on every Put.
type Cache struct {
	entries map[string][]float64
	store   SnapshotStore
	logger  *slog.Logger
}

// NewCache creates an empty cache. store may be nil.
func NewCache(store SnapshotStore, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{entries: make(map[string][]float64), store: store, logger: logger}
}

// Get returns a copy of the snapshot for key.
func (c *Cache) Get(ctx context.Context, key ir.CacheKey) ([]float64, bool, error) {
	fp := key.Fingerprint()
	if v, ok := c.entries[fp]; ok {
		return slices.Clone(v), true, nil
	}
	if c.store == nil {
		return nil, false, nil
	}
	v, ok, err := c.store.LoadSnapshot(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot %s: %w", fp, err)
	}
	if !ok {
		return nil, false, nil
	}
	c.entries[fp] = slices.Clone(v)
	return v, true, nil
}

// Put stores a copy of values under key.
func (c *Cache) Put(ctx context.Context, key ir.CacheKey, values []float64) error {
	fp := key.Fingerprint()
	c.entries[fp] = slices.Clone(values)
	c.logger.Debug("spinup cache put", "fingerprint", fp, "size", len(c.entries))
	if c.store == nil {
		return nil
	}
	if err := c.store.SaveSnapshot(ctx, key, values); err != nil {
		return fmt.Errorf("save snapshot %s: %w", fp, err)
	}
	return nil
}

// Len returns the number of in-memory entries.
func (c *Cache) Len() int {
	return len(c.entries)
}
