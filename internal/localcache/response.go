package localcache

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strconv"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
)

// responseKeyPrefix turns cache keys into request URLs, the way a browser
// Cache API entry is addressed.
const responseKeyPrefix = "http://localcache/"

// ResponseTier stores each value as a serialized "200 OK" JSON HTTP response
// inside an httpcache.Cache.
type ResponseTier struct {
	cache httpcache.Cache
}

// NewResponseTier wraps any httpcache.Cache.
func NewResponseTier(cache httpcache.Cache) *ResponseTier {
	return &ResponseTier{cache: cache}
}

// NewDiskResponseTier keeps responses on disk under dir.
func NewDiskResponseTier(dir string) *ResponseTier {
	return NewResponseTier(diskcache.New(dir))
}

func (t *ResponseTier) Name() string { return "response" }

func (t *ResponseTier) Get(_ context.Context, key string) ([]byte, error) {
	raw, ok := t.cache.Get(responseKeyPrefix + key)
	if !ok {
		return nil, ErrMiss
	}

	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(raw)), nil)
	if err != nil {
		return nil, fmt.Errorf("parse cached response %q: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cached response %q has status %d", key, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read cached response %q: %w", key, err)
	}
	return body, nil
}

func (t *ResponseTier) Set(_ context.Context, key string, value []byte) error {
	resp := &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{},
		Body:          io.NopCloser(bytes.NewReader(value)),
		ContentLength: int64(len(value)),
	}
	resp.Header.Set("Content-Type", "application/json")
	resp.Header.Set("Content-Length", strconv.Itoa(len(value)))

	raw, err := httputil.DumpResponse(resp, true)
	if err != nil {
		return fmt.Errorf("serialize response %q: %w", key, err)
	}
	t.cache.Set(responseKeyPrefix+key, raw)
	return nil
}

func (t *ResponseTier) Clear(_ context.Context, key string) error {
	t.cache.Delete(responseKeyPrefix + key)
	return nil
}
