package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// UserRepository defines the interface for user account persistence.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Count(ctx context.Context) (int, error)
}

// SQLiteUserRepository implements UserRepository using SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed user repository.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

// Create inserts a new user account and fills in its ID.
// CreatedAt defaults to the current time when zero.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.CreatedAt = user.CreatedAt.UTC().Truncate(time.Second)

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		user.Username, user.PasswordHash, user.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted user id: %w", err)
	}
	user.ID = id
	return nil
}

// GetByID retrieves a user by id.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.getUser(ctx, "SELECT id, username, password_hash, created_at FROM users WHERE id = ?", id)
}

// GetByUsername retrieves a user by username. Matching is case-sensitive.
func (r *SQLiteUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getUser(ctx, "SELECT id, username, password_hash, created_at FROM users WHERE username = ?", username)
}

// Count returns the total number of user accounts.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

func (r *SQLiteUserRepository) getUser(ctx context.Context, query string, args ...any) (*User, error) {
	var (
		u         User
		createdAt string
	)

	err := r.db.QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	if u.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("user %d: parsing created_at: %w", u.ID, err)
	}
	return &u, nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
