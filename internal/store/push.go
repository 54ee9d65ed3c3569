package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/menuboard/internal/model"
	"github.com/google/uuid"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

const pushCols = `id, COALESCE(establishment_id, ''), COALESCE(customer_phone, ''), COALESCE(customer_id, ''),
	COALESCE(user_id, ''), endpoint, p256dh, auth, user_agent, created_at, updated_at`

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := scanner.Scan(&sub.ID, &sub.EstablishmentID, &sub.CustomerPhone, &sub.CustomerID,
		&sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.UserAgent, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Upsert stores a subscription, replacing any prior record for the same scope key.
// A customer-keyed record never stores a user_id, so it cannot collide with a
// dashboard record for the same device.
func (s *PushStore) Upsert(ctx context.Context, sub *model.PushSubscription) (*model.PushSubscription, error) {
	scope := sub.Scope()
	if !scope.Valid() {
		return nil, fmt.Errorf("upsert push subscription: incomplete scope key")
	}

	now := time.Now().UTC()
	userID := sub.UserID
	var conflict string
	if scope.IsCustomer() {
		userID = ""
		conflict = `ON CONFLICT(establishment_id, customer_phone) DO UPDATE SET
			endpoint = excluded.endpoint, p256dh = excluded.p256dh, auth = excluded.auth,
			user_agent = excluded.user_agent, customer_id = excluded.customer_id,
			updated_at = excluded.updated_at`
	} else {
		conflict = `ON CONFLICT(user_id, endpoint) DO UPDATE SET
			p256dh = excluded.p256dh, auth = excluded.auth, user_agent = excluded.user_agent,
			establishment_id = excluded.establishment_id, updated_at = excluded.updated_at`
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (id, establishment_id, customer_phone, customer_id, user_id,
			endpoint, p256dh, auth, user_agent, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) `+conflict,
		uuid.NewString(), nullable(sub.EstablishmentID), nullable(sub.CustomerPhone), nullable(sub.CustomerID),
		nullable(userID), sub.Endpoint, sub.P256dh, sub.Auth, sub.UserAgent, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert push subscription: %w", err)
	}

	// The id of an updated row is the original one; re-query by scope.
	return s.GetByScope(ctx, scope)
}

// GetByScope returns the subscription stored under scope, or nil if none.
func (s *PushStore) GetByScope(ctx context.Context, scope model.SubscriptionScope) (*model.PushSubscription, error) {
	var row *sql.Row
	if scope.IsCustomer() {
		row = s.db.QueryRowContext(ctx,
			`SELECT `+pushCols+` FROM push_subscriptions WHERE establishment_id = ? AND customer_phone = ?`,
			scope.EstablishmentID, scope.CustomerPhone)
	} else {
		row = s.db.QueryRowContext(ctx,
			`SELECT `+pushCols+` FROM push_subscriptions WHERE user_id = ? AND endpoint = ?`,
			scope.UserID, scope.Endpoint)
	}

	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return sub, nil
}

func (s *PushStore) ListByUser(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pushCols+` FROM push_subscriptions WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions by user: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// DeleteByScope removes the subscription stored under scope. Deleting a
// missing record is not an error.
func (s *PushStore) DeleteByScope(ctx context.Context, scope model.SubscriptionScope) error {
	var err error
	if scope.IsCustomer() {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM push_subscriptions WHERE establishment_id = ? AND customer_phone = ?`,
			scope.EstablishmentID, scope.CustomerPhone)
	} else {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM push_subscriptions WHERE user_id = ? AND endpoint = ?`,
			scope.UserID, scope.Endpoint)
	}
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

func (s *PushStore) DeleteByID(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete push subscription by id: %w", err)
	}
	return nil
}

func (s *PushStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
