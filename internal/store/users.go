package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/gametracker/internal/db"
	"github.com/erazemk/gametracker/internal/model"
)

// ErrUserExists is returned when a username or email is already registered.
var ErrUserExists = errors.New("username or email already registered")

const userColumns = `id, username, email, password_hash, is_active, created_at`

// CreateUser creates an active user and their default limits for every kind.
func CreateUser(ctx context.Context, d *db.DB, username, email, passwordHash string, defaultLimit int) (*model.User, error) {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var taken int
	err = tx.QueryRowContext(ctx, d.Rebind(
		`SELECT COUNT(*) FROM users WHERE username = ? OR email = ?`), username, email,
	).Scan(&taken)
	if err != nil {
		return nil, fmt.Errorf("checking existing user: %w", err)
	}
	if taken > 0 {
		return nil, ErrUserExists
	}

	var id int64
	err = tx.QueryRowContext(ctx, d.Rebind(
		`INSERT INTO users (username, email, password_hash, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`),
		username, email, passwordHash, true, time.Now(),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	for _, kind := range model.Kinds {
		if err := upsertLimit(ctx, d, tx, id, kind, defaultLimit); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing user: %w", err)
	}
	return GetUser(ctx, d, id)
}

func scanUser(sc scanner) (*model.User, error) {
	u := &model.User{}
	if err := sc.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Active, &u.CreatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, d *db.DB, id int64) (*model.User, error) {
	u, err := scanUser(d.QueryRowContext(ctx, d.Rebind(
		`SELECT `+userColumns+` FROM users WHERE id = ?`), id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByLogin returns a user by username or email.
func GetUserByLogin(ctx context.Context, d *db.DB, login string) (*model.User, error) {
	u, err := scanUser(d.QueryRowContext(ctx, d.Rebind(
		`SELECT `+userColumns+` FROM users WHERE username = ? OR email = ? ORDER BY id LIMIT 1`), login, login,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by login: %w", err)
	}
	return u, nil
}

// ListUsers returns all users.
func ListUsers(ctx context.Context, d *db.DB) ([]model.User, error) {
	rows, err := d.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// SetUserActive enables or disables a user's account.
func SetUserActive(ctx context.Context, d *db.DB, id int64, active bool) error {
	result, err := d.ExecContext(ctx, d.Rebind(
		`UPDATE users SET is_active = ? WHERE id = ?`), active, id,
	)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d not found", id)
	}
	return nil
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, d *db.DB, id int64, passwordHash string) error {
	_, err := d.ExecContext(ctx, d.Rebind(
		`UPDATE users SET password_hash = ? WHERE id = ?`), passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}
