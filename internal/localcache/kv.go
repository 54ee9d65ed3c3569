package localcache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/peterbourgon/diskv"
)

// KVTier is a synchronous key-value store backed by one file per key.
type KVTier struct {
	d *diskv.Diskv
}

// NewKVTier stores values under dir, keeping up to cacheBytes of them in memory.
func NewKVTier(dir string, cacheBytes uint64) *KVTier {
	return &KVTier{d: diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    func(string) []string { return []string{} },
		CacheSizeMax: cacheBytes,
	})}
}

func (t *KVTier) Name() string { return "kv" }

func (t *KVTier) Get(_ context.Context, key string) ([]byte, error) {
	value, err := t.d.Read(fileKey(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read kv %q: %w", key, err)
	}
	return value, nil
}

func (t *KVTier) Set(_ context.Context, key string, value []byte) error {
	if err := t.d.Write(fileKey(key), value); err != nil {
		return fmt.Errorf("write kv %q: %w", key, err)
	}
	return nil
}

func (t *KVTier) Clear(_ context.Context, key string) error {
	k := fileKey(key)
	if !t.d.Has(k) {
		return nil
	}
	if err := t.d.Erase(k); err != nil {
		return fmt.Errorf("erase kv %q: %w", key, err)
	}
	return nil
}

// fileKey maps a cache key to a single path element.
func fileKey(key string) string {
	return url.PathEscape(key)
}
