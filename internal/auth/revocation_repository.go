package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RevocationRepository records access tokens that were logged out before
// they expired.
type RevocationRepository interface {
	// Revoke marks jti as unusable until expiresAt. Revoking twice is not an error.
	Revoke(ctx context.Context, jti string, userID int64, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// DeleteExpired drops revocations whose token has expired by now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SQLiteRevocationRepository implements RevocationRepository using SQLite.
type SQLiteRevocationRepository struct {
	db *sql.DB
}

// NewRevocationRepository creates a new SQLite-backed revocation list.
func NewRevocationRepository(db *sql.DB) *SQLiteRevocationRepository {
	return &SQLiteRevocationRepository{db: db}
}

// Revoke inserts jti into the revocation list.
func (r *SQLiteRevocationRepository) Revoke(ctx context.Context, jti string, userID int64, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_tokens (jti, user_id, expires_at) VALUES (?, ?, ?)`,
		jti, userID, expiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti has been revoked.
func (r *SQLiteRevocationRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?", jti).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return n > 0, nil
}

// DeleteExpired removes revocations for tokens that can no longer be used.
func (r *SQLiteRevocationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM revoked_tokens WHERE expires_at < ?",
		now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting expired revocations: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting expired revocations: %w", err)
	}
	return n, nil
}
