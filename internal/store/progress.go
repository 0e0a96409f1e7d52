package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/playperu/geohunt/internal/progression"
)

var _ progression.Store = (*Store)(nil)

func (s *Store) LoadProgress(ctx context.Context, actorID string) (progression.State, int64, error) {
	var (
		version int64
		data    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, json(data) FROM progress WHERE actor_id = ?`, actorID,
	).Scan(&version, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return progression.State{}, 0, ErrNotFound
	}
	if err != nil {
		return progression.State{}, 0, err
	}
	var st progression.State
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return progression.State{}, 0, fmt.Errorf("decoding progress %s: %w", actorID, err)
	}
	return st, version, nil
}

// CreateProgress inserts st at version 1. It reports false without error
// when the team already has progress.
func (s *Store) CreateProgress(ctx context.Context, st progression.State) (bool, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO progress (actor_id, version, data) VALUES (?, 1, jsonb(?))
		 ON CONFLICT(actor_id) DO NOTHING`,
		st.ActorID, string(data),
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// SwapProgress writes next only if the stored version still equals
// version.
func (s *Store) SwapProgress(ctx context.Context, actorID string, version int64, next progression.State) (bool, error) {
	data, err := json.Marshal(next)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE progress SET version = version + 1, data = jsonb(?)
		 WHERE actor_id = ? AND version = ?`,
		string(data), actorID, version,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// AllProgress loads every team's state.
func (s *Store) AllProgress(ctx context.Context) ([]progression.State, error) {
	return scanDocs[progression.State](ctx, s.db, `SELECT json(data) FROM progress ORDER BY actor_id`)
}
