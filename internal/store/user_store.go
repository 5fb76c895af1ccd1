package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/studyflow/internal/model"
)

// CreateUser registers a user and gives them empty default settings.
func (s *SQLStore) CreateUser(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return model.User{}, fmt.Errorf("%w: invalid email %q", ErrInvalid, email)
	}

	u := model.User{
		ID:        uuid.New().String(),
		Email:     email,
		CreatedAt: dbTime(time.Now()),
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, tx.Rebind(
			"SELECT COUNT(*) FROM users WHERE email = ?"), email); err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: user %s already exists", ErrConflict, email)
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(
			"INSERT INTO users (id, email, created_at) VALUES (?, ?, ?)"),
			u.ID, u.Email, u.CreatedAt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(
			"INSERT INTO settings (user_id) VALUES (?)"), u.ID)
		return err
	})
	if err != nil {
		return model.User{}, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// GetUserByEmail looks a user up by address.
func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(
		"SELECT id, email, created_at FROM users WHERE email = ?"),
		strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", email, notFound(err))
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// ListUsers returns all registered users.
func (s *SQLStore) ListUsers(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	if err := s.db.SelectContext(ctx, &users,
		"SELECT id, email, created_at FROM users ORDER BY email"); err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	return users, nil
}

// CreateSession issues a new opaque session token for the user.
func (s *SQLStore) CreateSession(ctx context.Context, userID string) (string, error) {
	token := strings.ReplaceAll(uuid.New().String()+uuid.New().String(), "-", "")
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		"INSERT INTO sessions (token, user_id, created_at) VALUES (?, ?, ?)"),
		token, userID, dbTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return token, nil
}

// UserIDForSession resolves a session token to its user.
func (s *SQLStore) UserIDForSession(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.GetContext(ctx, &userID, s.db.Rebind(
		"SELECT user_id FROM sessions WHERE token = ?"), token)
	if err != nil {
		return "", fmt.Errorf("resolving session: %w", notFound(err))
	}
	return userID, nil
}
