package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/menuboard/internal/model"
)

type FavoriteStore struct {
	db *sql.DB
}

func NewFavoriteStore(db *sql.DB) *FavoriteStore {
	return &FavoriteStore{db: db}
}

func (s *FavoriteStore) List(ctx context.Context, customerID, establishmentID string) ([]model.Favorite, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT customer_id, establishment_id, product_id, created_at
		 FROM favorites WHERE customer_id = ? AND establishment_id = ?
		 ORDER BY created_at, product_id`,
		customerID, establishmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	var favs []model.Favorite
	for rows.Next() {
		var f model.Favorite
		if err := rows.Scan(&f.CustomerID, &f.EstablishmentID, &f.ProductID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		favs = append(favs, f)
	}
	return favs, rows.Err()
}

// ProductIDs returns the favorited product IDs of a customer at an establishment.
func (s *FavoriteStore) ProductIDs(ctx context.Context, customerID, establishmentID string) ([]string, error) {
	favs, err := s.List(ctx, customerID, establishmentID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(favs))
	for _, f := range favs {
		ids = append(ids, f.ProductID)
	}
	return ids, nil
}

// Add inserts favorites, ignoring rows that already exist.
func (s *FavoriteStore) Add(ctx context.Context, customerID, establishmentID string, productIDs ...string) error {
	if len(productIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add favorites: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, pid := range productIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO favorites (customer_id, establishment_id, product_id, created_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(customer_id, establishment_id, product_id) DO NOTHING`,
			customerID, establishmentID, pid, now,
		); err != nil {
			return fmt.Errorf("add favorite %q: %w", pid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add favorites: %w", err)
	}
	return nil
}

func (s *FavoriteStore) Remove(ctx context.Context, customerID, establishmentID, productID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE customer_id = ? AND establishment_id = ? AND product_id = ?`,
		customerID, establishmentID, productID,
	)
	if err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}

// Clear deletes every favorite of a customer at an establishment.
func (s *FavoriteStore) Clear(ctx context.Context, customerID, establishmentID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE customer_id = ? AND establishment_id = ?`,
		customerID, establishmentID,
	)
	if err != nil {
		return fmt.Errorf("clear favorites: %w", err)
	}
	return nil
}
