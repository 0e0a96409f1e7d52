package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/playperu/geohunt/internal/hunt"
)

const settingsID = "global"

func (s *Store) LoadSettings(ctx context.Context) (hunt.Settings, int64, error) {
	var (
		version int64
		data    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, json(data) FROM settings WHERE id = ?`, settingsID,
	).Scan(&version, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return hunt.Settings{}, 0, ErrNotFound
	}
	if err != nil {
		return hunt.Settings{}, 0, err
	}
	var st hunt.Settings
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return hunt.Settings{}, 0, fmt.Errorf("decoding settings: %w", err)
	}
	return st, version, nil
}

// EnsureSettings stores defaults unless settings already exist, and
// returns whatever is stored afterwards.
func (s *Store) EnsureSettings(ctx context.Context, defaults hunt.Settings) (hunt.Settings, error) {
	data, err := json.Marshal(defaults)
	if err != nil {
		return hunt.Settings{}, err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (id, version, data) VALUES (?, 1, jsonb(?))
		 ON CONFLICT(id) DO NOTHING`,
		settingsID, string(data),
	); err != nil {
		return hunt.Settings{}, err
	}
	st, _, err := s.LoadSettings(ctx)
	return st, err
}

// SwapSettings writes next only if the stored version still equals
// version.
func (s *Store) SwapSettings(ctx context.Context, version int64, next hunt.Settings) (bool, error) {
	data, err := json.Marshal(next)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE settings SET version = version + 1, data = jsonb(?)
		 WHERE id = ? AND version = ?`,
		string(data), settingsID, version,
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
