package favorites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/dukerupert/menuboard/internal/database"
	"github.com/dukerupert/menuboard/internal/localcache"
	"github.com/dukerupert/menuboard/internal/store"
	"github.com/gregjones/httpcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	remote *flakyRemote
	rows   *store.FavoriteStore
	kv     *localcache.KVTier
	resp   *localcache.ResponseTier
	doc    *localcache.DocumentTier
	chain  *localcache.Chain
}

// flakyRemote wraps the real favorites table and can be told to fail.
type flakyRemote struct {
	*store.FavoriteStore
	failList bool
	failAdd  bool
}

var errRemoteDown = errors.New("remote unavailable")

func (r *flakyRemote) ProductIDs(ctx context.Context, customerID, establishmentID string) ([]string, error) {
	if r.failList {
		return nil, errRemoteDown
	}
	return r.FavoriteStore.ProductIDs(ctx, customerID, establishmentID)
}

func (r *flakyRemote) Add(ctx context.Context, customerID, establishmentID string, productIDs ...string) error {
	if r.failAdd {
		return errRemoteDown
	}
	return r.FavoriteStore.Add(ctx, customerID, establishmentID, productIDs...)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	serverDB, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { serverDB.Close() })

	localDB, err := database.OpenLocal(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { localDB.Close() })

	rows := store.NewFavoriteStore(serverDB)
	f := &fixture{
		remote: &flakyRemote{FavoriteStore: rows},
		rows:   rows,
		kv:     localcache.NewKVTier(t.TempDir(), 0),
		resp:   localcache.NewResponseTier(httpcache.NewMemoryCache()),
		doc:    localcache.NewDocumentTier(localDB, localcache.DocumentCollection),
	}
	f.chain = localcache.NewChain(slog.Default(), f.kv, f.resp, f.doc)
	return f
}

func (f *fixture) newStore() *Store {
	return New(f.remote, f.chain, slog.Default())
}

func (f *fixture) assertTierMiss(t *testing.T, key string) {
	t.Helper()
	ctx := context.Background()
	for _, tier := range f.chain.Tiers() {
		_, err := tier.Get(ctx, key)
		assert.ErrorIs(t, err, localcache.ErrMiss, tier.Name())
	}
}

func (f *fixture) assertTiersHold(t *testing.T, key, want string) {
	t.Helper()
	ctx := context.Background()
	for _, tier := range f.chain.Tiers() {
		got, err := tier.Get(ctx, key)
		require.NoError(t, err, tier.Name())
		assert.JSONEq(t, want, string(got), tier.Name())
	}
}

func TestAnonymousTogglePersistsToEveryTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.newStore()
	require.NoError(t, s.Load(ctx, "estX", ""))

	assert.True(t, s.Toggle(ctx, "p1"))
	assert.True(t, s.Toggle(ctx, "p2"))

	assert.True(t, s.IsFavorite("p1"))
	assert.Equal(t, 2, s.Count())
	f.assertTiersHold(t, CacheKey("estX"), `["p1","p2"]`)

	// A fresh store on the same device sees the same set.
	again := f.newStore()
	require.NoError(t, again.Load(ctx, "estX", ""))
	assert.Equal(t, []string{"p1", "p2"}, again.IDs())
}

func TestToggleTwiceRestoresState(t *testing.T) {
	for _, customer := range []string{"", "c1"} {
		t.Run("customer="+customer, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			s := f.newStore()
			require.NoError(t, s.Load(ctx, "estX", customer))
			s.Toggle(ctx, "keep")

			before := s.IDs()
			assert.True(t, s.Toggle(ctx, "p1"))
			assert.False(t, s.Toggle(ctx, "p1"))
			assert.Equal(t, before, s.IDs())

			if customer != "" {
				ids, err := f.rows.ProductIDs(ctx, customer, "estX")
				require.NoError(t, err)
				assert.Equal(t, []string{"keep"}, ids)
			} else {
				f.assertTiersHold(t, CacheKey("estX"), `["keep"]`)
			}
		})
	}
}

func TestLoginMigratesAnonymousFavorites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	anon := f.newStore()
	require.NoError(t, anon.Load(ctx, "estX", ""))
	anon.Toggle(ctx, "p1")
	anon.Toggle(ctx, "p2")

	customer := f.newStore()
	require.NoError(t, customer.Load(ctx, "estX", "c1"))

	assert.Equal(t, []string{"p1", "p2"}, customer.IDs())

	ids, err := f.rows.ProductIDs(ctx, "c1", "estX")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2"}, ids)

	f.assertTierMiss(t, CacheKey("estX"))
}

func TestLoginKeepsExistingRemoteFavorites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.rows.Add(ctx, "c1", "estX", "remote1"))

	anon := f.newStore()
	require.NoError(t, anon.Load(ctx, "estX", ""))
	anon.Toggle(ctx, "local1")

	customer := f.newStore()
	require.NoError(t, customer.Load(ctx, "estX", "c1"))

	assert.Equal(t, []string{"remote1"}, customer.IDs())
	ids, err := f.rows.ProductIDs(ctx, "c1", "estX")
	require.NoError(t, err)
	assert.Equal(t, []string{"remote1"}, ids)
}

func TestFailedMigrationKeepsLocalCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	anon := f.newStore()
	require.NoError(t, anon.Load(ctx, "estX", ""))
	anon.Toggle(ctx, "p1")

	f.remote.failAdd = true
	customer := f.newStore()
	require.NoError(t, customer.Load(ctx, "estX", "c1"))
	assert.Equal(t, []string{"p1"}, customer.IDs())
	f.assertTiersHold(t, CacheKey("estX"), `["p1"]`)

	// The next login retries and succeeds.
	f.remote.failAdd = false
	require.NoError(t, f.newStore().Load(ctx, "estX", "c1"))
	f.assertTierMiss(t, CacheKey("estX"))
}

func TestLoadRemoteFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.rows.Add(ctx, "c1", "estX", "p1"))

	f.remote.failList = true
	s := f.newStore()
	require.NoError(t, s.Load(ctx, "estX", "c1"))
	assert.Equal(t, 0, s.Count())

	// The store stays bound to the customer, so later toggles reach the remote.
	assert.True(t, s.Toggle(ctx, "p2"))
	ids, err := f.rows.ProductIDs(ctx, "c1", "estX")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2"}, ids)
	f.assertTierMiss(t, CacheKey("estX"))
}

func TestLoadCancelled(t *testing.T) {
	f := newFixture(t)
	f.remote.failList = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := f.newStore()
	err := s.Load(ctx, "estX", "c1")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Count())
}

func TestAuthenticatedToggleSurvivesRemoteFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.newStore()
	require.NoError(t, s.Load(ctx, "estX", "c1"))

	f.remote.failAdd = true
	assert.True(t, s.Toggle(ctx, "p1"))
	assert.True(t, s.IsFavorite("p1"))

	ids, err := f.rows.ProductIDs(ctx, "c1", "estX")
	require.NoError(t, err)
	assert.Empty(t, ids)
	f.assertTierMiss(t, CacheKey("estX"))
}

func TestLoadFallsBackToSlowerTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.doc.Set(ctx, CacheKey("estX"), []byte(`["p9"]`)))

	s := f.newStore()
	require.NoError(t, s.Load(ctx, "estX", ""))
	assert.Equal(t, []string{"p9"}, s.IDs())

	// The faster tiers were repopulated.
	f.assertTiersHold(t, CacheKey("estX"), `["p9"]`)
}

func TestLoadIgnoresMalformedCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.kv.Set(ctx, CacheKey("estX"), []byte(`{"not":"a list"}`)))

	s := f.newStore()
	require.NoError(t, s.Load(ctx, "estX", ""))
	assert.Equal(t, 0, s.Count())
}

func TestClear(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		s := f.newStore()
		require.NoError(t, s.Load(ctx, "estX", ""))
		s.Toggle(ctx, "p1")

		require.NoError(t, s.Clear(ctx))
		assert.Equal(t, 0, s.Count())
		f.assertTiersHold(t, CacheKey("estX"), `[]`)
	})

	t.Run("customer", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		require.NoError(t, f.rows.Add(ctx, "c1", "estX", "p1", "p2"))
		s := f.newStore()
		require.NoError(t, s.Load(ctx, "estX", "c1"))

		require.NoError(t, s.Clear(ctx))
		assert.Equal(t, 0, s.Count())
		ids, err := f.rows.ProductIDs(ctx, "c1", "estX")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestEstablishmentsAreSeparate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.newStore()

	require.NoError(t, s.Load(ctx, "estA", ""))
	s.Toggle(ctx, "p1")
	require.NoError(t, s.Load(ctx, "estB", ""))
	assert.Equal(t, 0, s.Count())
	s.Toggle(ctx, "p2")

	require.NoError(t, s.Load(ctx, "estA", ""))
	assert.Equal(t, []string{"p1"}, s.IDs())
}

func TestConcurrentTogglesLeaveCacheConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.newStore()
	require.NoError(t, s.Load(ctx, "estX", ""))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Toggle(ctx, fmt.Sprintf("p%02d", i))
		}(i)
	}
	wg.Wait()

	require.Equal(t, 20, s.Count())

	again := f.newStore()
	require.NoError(t, again.Load(ctx, "estX", ""))
	assert.Equal(t, s.IDs(), again.IDs())
}
