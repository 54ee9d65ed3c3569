// Package favorites keeps a customer's favorite products for one establishment.
//
// An authenticated customer's favorites live in the remote store. Anonymous
// favorites live in the device's local cache until the customer signs in, at
// which point they are copied to the remote store once and the local copy is
// erased.
package favorites

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Remote is the server-side favorites table.
type Remote interface {
	ProductIDs(ctx context.Context, customerID, establishmentID string) ([]string, error)
	Add(ctx context.Context, customerID, establishmentID string, productIDs ...string) error
	Remove(ctx context.Context, customerID, establishmentID, productID string) error
	Clear(ctx context.Context, customerID, establishmentID string) error
}

// Cache is the device-local store. localcache.Chain implements it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte) bool
	Clear(ctx context.Context, key string)
}

// CacheKey is the local cache key for an establishment's anonymous favorites.
func CacheKey(establishmentID string) string {
	return "favorites_" + establishmentID
}

// Store is the favorite set of the currently loaded (establishment, customer)
// pair. It is safe for concurrent use.
type Store struct {
	remote Remote
	cache  Cache
	logger *slog.Logger

	mu              sync.Mutex
	establishmentID string
	customerID      string
	ids             map[string]struct{}
	version         uint64

	persistMu sync.Mutex
	persisted map[string]uint64
}

func New(remote Remote, cache Cache, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		remote:    remote,
		cache:     cache,
		logger:    logger,
		ids:       make(map[string]struct{}),
		persisted: make(map[string]uint64),
	}
}

// Load replaces the in-memory set with the favorites of customerID at
// establishmentID. An empty customerID loads the anonymous set from the local
// cache.
//
// For a customer with no remote favorites, a non-empty anonymous set is copied
// to the remote store and the local cache is cleared. If the copy fails the
// local cache is left intact so the next Load tries again. A failed remote
// read is logged and leaves the set empty; only a cancelled ctx is returned.
func (s *Store) Load(ctx context.Context, establishmentID, customerID string) error {
	s.reset(establishmentID, customerID)

	if customerID == "" {
		ids := s.readCache(ctx, establishmentID)
		s.replace(establishmentID, customerID, ids)
		return nil
	}

	remoteIDs, err := s.remote.ProductIDs(ctx, customerID, establishmentID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("load favorites: %w", ctxErr)
		}
		s.logger.Error("failed to load remote favorites",
			"establishment_id", establishmentID, "customer_id", customerID, "error", err)
		return nil
	}
	if len(remoteIDs) > 0 {
		s.replace(establishmentID, customerID, remoteIDs)
		return nil
	}

	local := s.readCache(ctx, establishmentID)
	if len(local) == 0 {
		return nil
	}

	if err := s.remote.Add(ctx, customerID, establishmentID, local...); err != nil {
		s.logger.Error("failed to migrate local favorites",
			"establishment_id", establishmentID, "customer_id", customerID, "count", len(local), "error", err)
		s.replace(establishmentID, customerID, local)
		return nil
	}

	s.cache.Clear(ctx, CacheKey(establishmentID))
	s.logger.Info("migrated local favorites",
		"establishment_id", establishmentID, "customer_id", customerID, "count", len(local))
	s.replace(establishmentID, customerID, local)
	return nil
}

// Toggle flips productID's membership and returns the new membership.
//
// The in-memory set always changes. For a customer the matching remote insert
// or delete follows, and a failure there is logged, not returned. Anonymous
// changes are written to every local cache tier.
func (s *Store) Toggle(ctx context.Context, productID string) bool {
	s.mu.Lock()
	_, present := s.ids[productID]
	if present {
		delete(s.ids, productID)
	} else {
		s.ids[productID] = struct{}{}
	}
	est, cust := s.establishmentID, s.customerID
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if est == "" {
		s.logger.Warn("favorite toggled before load", "product_id", productID)
		return !present
	}

	if cust == "" {
		s.persist(ctx, est, snap)
		return !present
	}

	var err error
	if present {
		err = s.remote.Remove(ctx, cust, est, productID)
	} else {
		err = s.remote.Add(ctx, cust, est, productID)
	}
	if err != nil {
		s.logger.Error("failed to save favorite",
			"establishment_id", est, "customer_id", cust, "product_id", productID, "favorite", !present, "error", err)
	}
	return !present
}

// Clear empties the set, in the remote store for a customer or in every local
// tier for an anonymous visitor.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.ids = make(map[string]struct{})
	est, cust := s.establishmentID, s.customerID
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if est == "" {
		return nil
	}
	if cust == "" {
		s.persist(ctx, est, snap)
		return nil
	}
	if err := s.remote.Clear(ctx, cust, est); err != nil {
		return fmt.Errorf("clear favorites: %w", err)
	}
	return nil
}

func (s *Store) IsFavorite(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[productID]
	return ok
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// IDs returns the favorite product IDs in sorted order.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedIDs(s.ids)
}

type snapshot struct {
	version uint64
	ids     []string
}

func (s *Store) snapshotLocked() snapshot {
	s.version++
	return snapshot{version: s.version, ids: sortedIDs(s.ids)}
}

// persist writes snap to the local cache unless a newer snapshot for the same
// key has already been written.
func (s *Store) persist(ctx context.Context, establishmentID string, snap snapshot) {
	key := CacheKey(establishmentID)

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if snap.version <= s.persisted[key] {
		return
	}

	data, err := json.Marshal(snap.ids)
	if err != nil {
		s.logger.Error("failed to encode favorites", "key", key, "error", err)
		return
	}
	if !s.cache.Set(ctx, key, data) {
		s.logger.Warn("favorites not saved to any cache tier", "key", key)
	}
	s.persisted[key] = snap.version
}

func (s *Store) readCache(ctx context.Context, establishmentID string) []string {
	key := CacheKey(establishmentID)
	data, ok := s.cache.Get(ctx, key)
	if !ok {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		s.logger.Warn("ignoring malformed cached favorites", "key", key, "error", err)
		return nil
	}
	return ids
}

func (s *Store) reset(establishmentID, customerID string) {
	s.replace(establishmentID, customerID, nil)
}

func (s *Store) replace(establishmentID, customerID string, ids []string) {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	s.mu.Lock()
	s.establishmentID = establishmentID
	s.customerID = customerID
	s.ids = set
	s.version++
	s.mu.Unlock()
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
