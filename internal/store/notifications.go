package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/playperu/geohunt/internal/hunt"
)

const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

func (s *Store) CreateNotification(ctx context.Context, n hunt.Notification) (hunt.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.ReadBy == nil {
		n.ReadBy = []string{}
	}
	n.CreatedAt = n.CreatedAt.UTC()
	data, err := json.Marshal(n)
	if err != nil {
		return hunt.Notification{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, created_at, data) VALUES (?, ?, jsonb(?))`,
		n.ID, n.CreatedAt.Format(createdAtLayout), string(data),
	)
	if err != nil {
		return hunt.Notification{}, err
	}
	return n, nil
}

func (s *Store) Notification(ctx context.Context, id string) (hunt.Notification, error) {
	var n hunt.Notification
	err := getDoc(ctx, s.db, "notifications", id, &n)
	return n, err
}

// ListNotifications returns every notification, newest first.
func (s *Store) ListNotifications(ctx context.Context) ([]hunt.Notification, error) {
	return scanDocs[hunt.Notification](ctx, s.db,
		`SELECT json(data) FROM notifications ORDER BY created_at DESC, id DESC`)
}

// UpdateNotification applies fn to the stored notification inside a
// transaction.
func (s *Store) UpdateNotification(ctx context.Context, id string, fn func(*hunt.Notification) error) (hunt.Notification, error) {
	var n hunt.Notification
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := getDoc(ctx, tx, "notifications", id, &n); err != nil {
			return err
		}
		if err := fn(&n); err != nil {
			return err
		}
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE notifications SET data = jsonb(?) WHERE id = ?`, string(data), id)
		return err
	})
	return n, err
}

func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	return delDoc(ctx, s.db, "notifications", id)
}
