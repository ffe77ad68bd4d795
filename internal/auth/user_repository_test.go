package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 9, 30, 15, 500, time.UTC)
	user := &User{Username: "alice", PasswordHash: "hash", CreatedAt: created}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if user.ID == 0 {
		t.Fatal("Create() did not assign an id")
	}

	byID, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if byID.Username != "alice" || byID.PasswordHash != "hash" {
		t.Errorf("GetByID() = %+v", byID)
	}
	if !byID.CreatedAt.Equal(created.Truncate(time.Second)) {
		t.Errorf("CreatedAt = %v, want %v", byID.CreatedAt, created.Truncate(time.Second))
	}

	byName, err := repo.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if byName.ID != user.ID {
		t.Errorf("GetByUsername() id = %d, want %d", byName.ID, user.ID)
	}
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	seedTestUser(t, db, "alice")

	err := repo.Create(ctx, &User{Username: "alice", PasswordHash: "other"})
	if !errors.Is(err, ErrUsernameExists) {
		t.Errorf("Create(duplicate) error = %v, want ErrUsernameExists", err)
	}
}

func TestUserRepository_NotFound(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, 999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByID() error = %v, want ErrUserNotFound", err)
	}
	if _, err := repo.GetByUsername(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByUsername() error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_Count(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	count, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Count() = %d, want 0", count)
	}

	seedTestUser(t, db, "alice")
	seedTestUser(t, db, "bob")

	count, err = repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}
}

func TestRevocationRepository(t *testing.T) {
	db := testDB(t)
	repo := NewRevocationRepository(db)
	ctx := context.Background()
	user := seedTestUser(t, db, "alice")

	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	revoked, err := repo.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsRevoked() error = %v", err)
	}
	if revoked {
		t.Error("IsRevoked() = true before revocation")
	}

	if err := repo.Revoke(ctx, "jti-1", user.ID, now.Add(-time.Minute)); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if err := repo.Revoke(ctx, "jti-2", user.ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if err := repo.Revoke(ctx, "jti-2", user.ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("Revoke(again) error = %v", err)
	}

	for _, jti := range []string{"jti-1", "jti-2"} {
		revoked, err := repo.IsRevoked(ctx, jti)
		if err != nil {
			t.Fatalf("IsRevoked(%s) error = %v", jti, err)
		}
		if !revoked {
			t.Errorf("IsRevoked(%s) = false, want true", jti)
		}
	}

	n, err := repo.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpired() = %d, want 1", n)
	}

	revoked, _ = repo.IsRevoked(ctx, "jti-2")
	if !revoked {
		t.Error("unexpired revocation was purged")
	}
}
