// Package localcache keeps small JSON values on the device across several
// storage tiers. Reads walk the tiers fastest first and copy a value found in a
// slower tier back into the faster ones; writes go to every tier. A failing
// tier is skipped, never fatal.
package localcache

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"path/filepath"
)

// ErrMiss is returned by a Tier that holds no value for a key.
var ErrMiss = errors.New("localcache: miss")

// Tier is one storage backend of a Chain.
type Tier interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context, key string) error
}

// Chain reads and writes a set of tiers in priority order.
type Chain struct {
	tiers  []Tier
	logger *slog.Logger
}

// NewChain returns a chain over tiers, the first being the fastest.
func NewChain(logger *slog.Logger, tiers ...Tier) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{tiers: tiers, logger: logger}
}

// Tiers returns the tiers in read-preference order.
func (c *Chain) Tiers() []Tier {
	return c.tiers
}

// Get returns the value from the first tier holding key. When that tier is not
// the first, the value is written back to every faster tier. The boolean is
// false when no tier holds the key.
func (c *Chain) Get(ctx context.Context, key string) ([]byte, bool) {
	for i, tier := range c.tiers {
		value, err := tier.Get(ctx, key)
		if errors.Is(err, ErrMiss) {
			continue
		}
		if err != nil {
			c.logger.Warn("cache tier read failed", "tier", tier.Name(), "key", key, "error", err)
			continue
		}

		c.backfill(ctx, i, key, value)
		return value, true
	}
	return nil, false
}

func (c *Chain) backfill(ctx context.Context, found int, key string, value []byte) {
	for _, tier := range c.tiers[:found] {
		if err := tier.Set(ctx, key, value); err != nil {
			c.logger.Warn("cache tier backfill failed", "tier", tier.Name(), "key", key, "error", err)
		}
	}
}

// Set writes value to every tier. It reports whether at least one tier
// accepted the write.
func (c *Chain) Set(ctx context.Context, key string, value []byte) bool {
	stored := false
	for _, tier := range c.tiers {
		if err := tier.Set(ctx, key, value); err != nil {
			c.logger.Warn("cache tier write failed", "tier", tier.Name(), "key", key, "error", err)
			continue
		}
		stored = true
	}
	return stored
}

// Clear removes key from every tier.
func (c *Chain) Clear(ctx context.Context, key string) {
	for _, tier := range c.tiers {
		if err := tier.Clear(ctx, key); err != nil {
			c.logger.Warn("cache tier clear failed", "tier", tier.Name(), "key", key, "error", err)
		}
	}
}

// DocumentCollection is the document-store collection used by the default chain.
const DocumentCollection = "localcache"

// NewDeviceChain builds the standard device chain: a key-value store and a
// response cache under dir, then the document store in db.
func NewDeviceChain(logger *slog.Logger, dir string, db *sql.DB) *Chain {
	return NewChain(logger,
		NewKVTier(filepath.Join(dir, "kv"), 1<<20),
		NewDiskResponseTier(filepath.Join(dir, "responses")),
		NewDocumentTier(db, DocumentCollection),
	)
}
