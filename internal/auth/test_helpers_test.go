package auth

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/device-inventory/internal/infrastructure/database"
	"github.com/nerrad567/device-inventory/migrations"
)

const testSecret = "test-secret-key-at-least-32-chars!"

// fastParams keep Argon2id cheap enough for unit tests.
var fastParams = Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

// testDB creates a migrated SQLite database in a temp directory.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "auth.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db.DB
}

// seedTestUser inserts a test user with password "test-password".
func seedTestUser(t *testing.T, db *sql.DB, username string) *User {
	t.Helper()

	hash, err := HashPasswordWithParams("test-password", fastParams)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	user := &User{Username: username, PasswordHash: hash}
	if err := NewUserRepository(db).Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user %s: %v", username, err)
	}
	return user
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// newTestService returns a service over a fresh database with a fixed clock.
func newTestService(t *testing.T) (*Service, *testClock, *sql.DB) {
	t.Helper()

	db := testDB(t)
	svc, err := NewService(NewUserRepository(db), NewRevocationRepository(db), Config{
		Secret:   testSecret,
		TokenTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	clock := &testClock{now: time.Now().UTC().Truncate(time.Second)}
	svc.SetClock(clock.Now)
	svc.SetPasswordParams(fastParams)
	return svc, clock, db
}
