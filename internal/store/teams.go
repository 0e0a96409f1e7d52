package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/playperu/geohunt/internal/hunt"
)

type teamSessionDoc struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"teamId"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateTeam inserts t, assigning an id when it has none.
func (s *Store) CreateTeam(ctx context.Context, t hunt.Team) (hunt.Team, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, err := s.TeamByName(ctx, t.Name); err == nil {
		return hunt.Team{}, ErrNameTaken
	} else if !errors.Is(err, ErrNotFound) {
		return hunt.Team{}, err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return hunt.Team{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO teams (id, name, data) VALUES (?, ?, jsonb(?))`,
		t.ID, t.Name, string(data),
	)
	if isUniqueViolation(err) {
		return hunt.Team{}, ErrNameTaken
	}
	if err != nil {
		return hunt.Team{}, err
	}
	return t, nil
}

func (s *Store) Team(ctx context.Context, id string) (hunt.Team, error) {
	var t hunt.Team
	err := getDoc(ctx, s.db, "teams", id, &t)
	return t, err
}

// TeamByName looks a team up by name, ignoring case.
func (s *Store) TeamByName(ctx context.Context, name string) (hunt.Team, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM teams WHERE name = ?`, name,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return hunt.Team{}, ErrNotFound
	}
	if err != nil {
		return hunt.Team{}, err
	}
	var t hunt.Team
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return hunt.Team{}, err
	}
	return t, nil
}

func (s *Store) ListTeams(ctx context.Context) ([]hunt.Team, error) {
	return scanDocs[hunt.Team](ctx, s.db, `SELECT json(data) FROM teams ORDER BY name`)
}

// DeleteTeam removes a team together with its sessions and progress.
func (s *Store) DeleteTeam(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM team_sessions WHERE team_id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM progress WHERE actor_id = ?`, id); err != nil {
			return err
		}
		return delDoc(ctx, tx, "teams", id)
	})
}

func (s *Store) CreateTeamSession(ctx context.Context, teamID string) (string, error) {
	doc := teamSessionDoc{ID: newToken(), TeamID: teamID, CreatedAt: time.Now().UTC()}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO team_sessions (id, team_id, data) VALUES (?, ?, jsonb(?))`,
		doc.ID, doc.TeamID, string(data),
	)
	if err != nil {
		return "", err
	}
	return doc.ID, nil
}

// TeamFromSession resolves a session token to its team.
func (s *Store) TeamFromSession(ctx context.Context, token string) (hunt.Team, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT json(t.data)
		FROM team_sessions ts
		JOIN teams t ON t.id = ts.team_id
		WHERE ts.id = ?
	`, token).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return hunt.Team{}, ErrNotFound
	}
	if err != nil {
		return hunt.Team{}, err
	}
	var t hunt.Team
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return hunt.Team{}, err
	}
	return t, nil
}

func (s *Store) DeleteTeamSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM team_sessions WHERE id = ?`, token)
	return err
}

type ResetResult struct {
	Teams    int `json:"teams"`
	Progress int `json:"progress"`
}

// ResetAll deletes every team, session and progress document except those
// belonging to the teams in keep.
func (s *Store) ResetAll(ctx context.Context, keep []string) (ResetResult, error) {
	args := make([]any, len(keep))
	for i, id := range keep {
		args[i] = id
	}

	var res ResetResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM team_sessions`+notIn("team_id", len(keep)), args...); err != nil {
			return fmt.Errorf("deleting sessions: %w", err)
		}
		r, err := tx.ExecContext(ctx, `DELETE FROM progress`+notIn("actor_id", len(keep)), args...)
		if err != nil {
			return fmt.Errorf("deleting progress: %w", err)
		}
		n, _ := r.RowsAffected()
		res.Progress = int(n)

		r, err = tx.ExecContext(ctx, `DELETE FROM teams`+notIn("id", len(keep)), args...)
		if err != nil {
			return fmt.Errorf("deleting teams: %w", err)
		}
		n, _ = r.RowsAffected()
		res.Teams = int(n)
		return nil
	})
	return res, err
}

func notIn(column string, n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprintf(" WHERE %s NOT IN (%s)", column, placeholders(n))
}
