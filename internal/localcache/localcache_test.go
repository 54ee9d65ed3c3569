package localcache

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/dukerupert/menuboard/internal/database"
	"github.com/gregjones/httpcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenTier fails every operation, like a storage backend that is unavailable.
type brokenTier struct{}

func (brokenTier) Name() string { return "broken" }
func (brokenTier) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("storage unavailable")
}
func (brokenTier) Set(context.Context, string, []byte) error { return errors.New("storage unavailable") }
func (brokenTier) Clear(context.Context, string) error      { return errors.New("storage unavailable") }

func newTiers(t *testing.T) (*KVTier, *ResponseTier, *DocumentTier) {
	t.Helper()
	db, err := database.OpenLocal(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewKVTier(t.TempDir(), 0), NewResponseTier(httpcache.NewMemoryCache()), NewDocumentTier(db, DocumentCollection)
}

func TestTiersRoundTrip(t *testing.T) {
	kv, resp, doc := newTiers(t)
	ctx := context.Background()

	for _, tier := range []Tier{kv, resp, doc} {
		t.Run(tier.Name(), func(t *testing.T) {
			_, err := tier.Get(ctx, "favorites_est/1")
			require.ErrorIs(t, err, ErrMiss)

			require.NoError(t, tier.Set(ctx, "favorites_est/1", []byte(`["p1","p2"]`)))
			got, err := tier.Get(ctx, "favorites_est/1")
			require.NoError(t, err)
			assert.JSONEq(t, `["p1","p2"]`, string(got))

			require.NoError(t, tier.Clear(ctx, "favorites_est/1"))
			_, err = tier.Get(ctx, "favorites_est/1")
			require.ErrorIs(t, err, ErrMiss)

			// Clearing a missing key is fine.
			require.NoError(t, tier.Clear(ctx, "favorites_est/1"))
		})
	}
}

func TestDocumentTierRejectsNonJSON(t *testing.T) {
	_, _, doc := newTiers(t)
	err := doc.Set(context.Background(), "k", []byte("not json"))
	assert.Error(t, err)
}

func TestResponseTierStoresHTTPResponse(t *testing.T) {
	cache := httpcache.NewMemoryCache()
	tier := NewResponseTier(cache)

	require.NoError(t, tier.Set(context.Background(), "k", []byte(`[]`)))

	raw, ok := cache.Get(responseKeyPrefix + "k")
	require.True(t, ok)
	assert.Contains(t, string(raw), "HTTP/1.1 200 OK")
	assert.Contains(t, string(raw), "Content-Type: application/json")
}

func TestChainReadsFirstTierHit(t *testing.T) {
	kv, resp, doc := newTiers(t)
	ctx := context.Background()
	chain := NewChain(slog.Default(), kv, resp, doc)

	require.NoError(t, kv.Set(ctx, "k", []byte(`["fast"]`)))
	require.NoError(t, doc.Set(ctx, "k", []byte(`["slow"]`)))

	got, ok := chain.Get(ctx, "k")
	require.True(t, ok)
	assert.JSONEq(t, `["fast"]`, string(got))
}

func TestChainBackfillsFasterTiers(t *testing.T) {
	kv, resp, doc := newTiers(t)
	ctx := context.Background()
	chain := NewChain(slog.Default(), kv, resp, doc)

	require.NoError(t, doc.Set(ctx, "k", []byte(`["p1"]`)))

	got, ok := chain.Get(ctx, "k")
	require.True(t, ok)
	assert.JSONEq(t, `["p1"]`, string(got))

	for _, tier := range []Tier{kv, resp} {
		v, err := tier.Get(ctx, "k")
		require.NoError(t, err, tier.Name())
		assert.JSONEq(t, `["p1"]`, string(v), tier.Name())
	}
}

func TestChainSkipsBrokenTier(t *testing.T) {
	_, resp, doc := newTiers(t)
	ctx := context.Background()
	chain := NewChain(slog.Default(), brokenTier{}, resp, doc)

	require.NoError(t, resp.Set(ctx, "k", []byte(`["p2"]`)))

	got, ok := chain.Get(ctx, "k")
	require.True(t, ok)
	assert.JSONEq(t, `["p2"]`, string(got))

	assert.True(t, chain.Set(ctx, "k", []byte(`["p3"]`)), "healthy tiers accept the write")
	v, err := doc.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `["p3"]`, string(v))

	chain.Clear(ctx, "k")
	_, ok = chain.Get(ctx, "k")
	assert.False(t, ok)
}

func TestChainAllTiersBroken(t *testing.T) {
	chain := NewChain(nil, brokenTier{}, brokenTier{})
	ctx := context.Background()

	_, ok := chain.Get(ctx, "k")
	assert.False(t, ok)
	assert.False(t, chain.Set(ctx, "k", []byte(`[]`)))
}

func TestDeviceChainOrder(t *testing.T) {
	db, err := database.OpenLocal(":memory:")
	require.NoError(t, err)
	defer db.Close()

	chain := NewDeviceChain(slog.Default(), t.TempDir(), db)
	var names []string
	for _, tier := range chain.Tiers() {
		names = append(names, tier.Name())
	}
	assert.Equal(t, []string{"kv", "response", "document"}, names)
}
