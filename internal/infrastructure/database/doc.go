// Package database provides SQLite connectivity for the inventory service.
//
// It manages:
//   - The connection (WAL mode, busy timeout, foreign keys, one writer)
//   - Schema migrations through goose over an embedded filesystem
//   - A transaction helper shared by the repositories
//
// All queries use parameterised statements and the database file is
// created with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
