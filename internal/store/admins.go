package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
)

type Admin struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
}

type AdminSession struct {
	ID      string `json:"id"`
	AdminID string `json:"adminId"`
	Email   string `json:"email"`
}

// EnsureAdmin creates the admin account unless one with the same email
// exists. It reports whether an account was created.
func (s *Store) EnsureAdmin(ctx context.Context, email, passwordHash string) (bool, error) {
	a := Admin{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
	}
	data, err := json.Marshal(a)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO admins (id, email, data) VALUES (?, ?, jsonb(?))
		 ON CONFLICT(email) DO NOTHING`,
		a.ID, a.Email, string(data),
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (s *Store) AdminByEmail(ctx context.Context, email string) (Admin, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM admins WHERE email = ?`, email,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Admin{}, ErrNotFound
	}
	if err != nil {
		return Admin{}, err
	}
	var a Admin
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return Admin{}, err
	}
	return a, nil
}

func (s *Store) CreateAdminSession(ctx context.Context, a Admin) (string, error) {
	sess := AdminSession{ID: newToken(), AdminID: a.ID, Email: a.Email}
	data, err := json.Marshal(sess)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO admin_sessions (id, data) VALUES (?, jsonb(?))`,
		sess.ID, string(data),
	)
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

func (s *Store) DeleteAdminSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM admin_sessions WHERE id = ?`, sessionID,
	)
	return err
}

func (s *Store) AdminFromSession(ctx context.Context, sessionID string) (AdminSession, error) {
	var sess AdminSession
	err := getDoc(ctx, s.db, "admin_sessions", sessionID, &sess)
	return sess, err
}
