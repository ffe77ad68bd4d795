package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// gooseUpContext is a seam for tests.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies every pending goose migration found at the root of fsys.
//
// Files follow goose's naming (00001_create_devices.sql) and carry
// "-- +goose Up" / "-- +goose Down" sections. Each migration runs in its own
// transaction, so a failure leaves earlier migrations applied and re-running
// Migrate continues from the failed one.
func (db *DB) Migrate(ctx context.Context, fsys fs.FS) error {
	goose.SetBaseFS(fsys)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting migration dialect: %w", err)
	}

	if err := gooseUpContext(ctx, db.DB, "."); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// SchemaVersion returns the highest applied migration version.
func (db *DB) SchemaVersion(ctx context.Context) (int64, error) {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, fmt.Errorf("setting migration dialect: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db.DB)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}
