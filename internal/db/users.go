package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/soaringjerry/Canvass/internal/services"
)

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Email        string         `db:"email"`
	PasswordHash string         `db:"password_hash"`
	Role         string         `db:"role"`
	Demographics sql.NullString `db:"demographics"`
	CreatedAt    string         `db:"created_at"`
}

const userColumns = `id, name, email, password_hash, role, demographics, created_at`

func (s *Store) toUser(r userRow) *services.User {
	u := &services.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         services.Role(r.Role),
		CreatedAt:    parseTime(r.CreatedAt),
	}
	s.decodeJSON(r.Demographics, &u.Demographics, "users.demographics")
	return u
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (*services.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, s.db, &row, s.rebind(`SELECT `+userColumns+` FROM users WHERE `+where), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return s.toUser(row), nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*services.User, error) {
	return s.getUser(ctx, `id = ?`, id)
}

// FindUserByEmail expects a normalised (lower-case) email.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*services.User, error) {
	return s.getUser(ctx, `email = ?`, email)
}

func (s *Store) AddUser(ctx context.Context, u *services.User) error {
	demo, err := encodeJSON(u.Demographics)
	if err != nil {
		return fmt.Errorf("encode demographics: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), demo, formatTime(u.CreatedAt))
	if isUniqueViolation(err) {
		return services.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) UpdateUserProfile(ctx context.Context, id, name, email string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE users SET name = ?, email = ? WHERE id = ?`), name, email, id)
	if isUniqueViolation(err) {
		return services.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`UPDATE users SET password_hash = ? WHERE id = ?`), hash, id); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *Store) ListUsersByRole(ctx context.Context, role services.Role) ([]*services.User, error) {
	var rows []userRow
	if err := sqlx.SelectContext(ctx, s.db, &rows,
		s.rebind(`SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY created_at`), string(role)); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]*services.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, s.toUser(r))
	}
	return out, nil
}

var (
	_ services.SurveyStore    = (*Store)(nil)
	_ services.ResponseStore  = (*Store)(nil)
	_ services.AnalyticsStore = (*Store)(nil)
	_ services.FeedStore      = (*Store)(nil)
	_ services.AuthStore      = (*Store)(nil)
	_ services.AdminStore     = (*Store)(nil)
	_ services.ExportStore    = (*Store)(nil)
)
