package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "users.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepositoryStoreAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	if _, ok, err := repo.LookupPasswordHash(ctx, "alice"); err != nil || ok {
		t.Fatalf("LookupPasswordHash() before signup = %v, %v; want not found", ok, err)
	}

	if err := repo.StoreUser(ctx, "alice", "hash-1"); err != nil {
		t.Fatalf("StoreUser() error = %v", err)
	}

	hash, ok, err := repo.LookupPasswordHash(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("LookupPasswordHash() = %v, %v; want found", ok, err)
	}
	if hash != "hash-1" {
		t.Errorf("hash = %q, want hash-1", hash)
	}

	n, err := repo.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers() error = %v", err)
	}
	if n != 1 {
		t.Errorf("CountUsers() = %d, want 1", n)
	}
}

func TestSQLiteRepositoryDuplicateUser(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	if err := repo.StoreUser(ctx, "alice", "hash-1"); err != nil {
		t.Fatal(err)
	}
	if err := repo.StoreUser(ctx, "alice", "hash-2"); !errors.Is(err, ErrUserExists) {
		t.Errorf("duplicate StoreUser() error = %v, want ErrUserExists", err)
	}

	hash, _, err := repo.LookupPasswordHash(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if hash != "hash-1" {
		t.Errorf("hash = %q, want the original hash-1", hash)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Close(); err != nil {
		t.Fatal(err)
	}

	if err := RunMigrations(path); err != nil {
		t.Errorf("second RunMigrations() error = %v", err)
	}
}
