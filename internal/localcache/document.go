package localcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DocumentTier keeps values as JSON documents in one collection of the local
// database opened with database.OpenLocal.
type DocumentTier struct {
	db         *sql.DB
	collection string
}

func NewDocumentTier(db *sql.DB, collection string) *DocumentTier {
	return &DocumentTier{db: db, collection: collection}
}

func (t *DocumentTier) Name() string { return "document" }

func (t *DocumentTier) Get(ctx context.Context, key string) ([]byte, error) {
	var body string
	err := t.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`, t.collection, key,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get document %q: %w", key, err)
	}
	return []byte(body), nil
}

func (t *DocumentTier) Set(ctx context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("put document %q: value is not JSON", key)
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, body, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		t.collection, key, string(value), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("put document %q: %w", key, err)
	}
	return nil
}

func (t *DocumentTier) Clear(ctx context.Context, key string) error {
	_, err := t.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, t.collection, key)
	if err != nil {
		return fmt.Errorf("delete document %q: %w", key, err)
	}
	return nil
}
