package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/menuboard/internal/model"
	"github.com/google/uuid"
)

type AdminNotificationStore struct {
	db *sql.DB
}

func NewAdminNotificationStore(db *sql.DB) *AdminNotificationStore {
	return &AdminNotificationStore{db: db}
}

const adminNotificationCols = `id, kind, title, message, COALESCE(establishment_id, ''), COALESCE(reseller_id, ''),
	metadata, read, created_at`

func scanAdminNotification(scanner interface{ Scan(...any) error }) (*model.AdminNotification, error) {
	var n model.AdminNotification
	var metadata string
	var readInt int
	err := scanner.Scan(&n.ID, &n.Kind, &n.Title, &n.Message, &n.EstablishmentID, &n.ResellerID,
		&metadata, &readInt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.Metadata = []byte(metadata)
	n.Read = readInt != 0
	return &n, nil
}

func (s *AdminNotificationStore) Create(ctx context.Context, n *model.AdminNotification) (*model.AdminNotification, error) {
	id := uuid.NewString()
	metadata := "{}"
	if len(n.Metadata) > 0 {
		metadata = string(n.Metadata)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO admin_notifications (id, kind, title, message, establishment_id, reseller_id, metadata, read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		id, n.Kind, n.Title, n.Message, nullable(n.EstablishmentID), nullable(n.ResellerID), metadata, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("create admin notification: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *AdminNotificationStore) GetByID(ctx context.Context, id string) (*model.AdminNotification, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+adminNotificationCols+` FROM admin_notifications WHERE id = ?`, id)
	n, err := scanAdminNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get admin notification: %w", err)
	}
	return n, nil
}

// List returns notifications newest first. A limit of zero means no limit.
func (s *AdminNotificationStore) List(ctx context.Context, unreadOnly bool, limit int) ([]model.AdminNotification, error) {
	query := `SELECT ` + adminNotificationCols + ` FROM admin_notifications`
	if unreadOnly {
		query += ` WHERE read = 0`
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list admin notifications: %w", err)
	}
	defer rows.Close()

	var list []model.AdminNotification
	for rows.Next() {
		n, err := scanAdminNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan admin notification: %w", err)
		}
		list = append(list, *n)
	}
	return list, rows.Err()
}

func (s *AdminNotificationStore) UnreadCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_notifications WHERE read = 0`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread admin notifications: %w", err)
	}
	return count, nil
}

// SetRead updates the read flag. Returns nil if the notification does not exist.
func (s *AdminNotificationStore) SetRead(ctx context.Context, id string, read bool) (*model.AdminNotification, error) {
	var readInt int
	if read {
		readInt = 1
	}
	result, err := s.db.ExecContext(ctx, `UPDATE admin_notifications SET read = ? WHERE id = ?`, readInt, id)
	if err != nil {
		return nil, fmt.Errorf("set admin notification read: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, id)
}

// MarkAllRead flags every unread notification as read and returns how many changed.
func (s *AdminNotificationStore) MarkAllRead(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE admin_notifications SET read = 1 WHERE read = 0`)
	if err != nil {
		return 0, fmt.Errorf("mark all admin notifications read: %w", err)
	}
	return result.RowsAffected()
}

func (s *AdminNotificationStore) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM admin_notifications WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete admin notification: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func (s *AdminNotificationStore) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM admin_notifications WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete admin notifications: %w", err)
	}
	return result.RowsAffected()
}

// DeleteRead removes every notification already marked as read.
func (s *AdminNotificationStore) DeleteRead(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM admin_notifications WHERE read = 1`)
	if err != nil {
		return 0, fmt.Errorf("delete read admin notifications: %w", err)
	}
	return result.RowsAffected()
}
