package postgres

import (
	"context"
	"testing"
	"time"
)

func TestMigrate_PostgresLifecycle(t *testing.T) {
	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := store.MigrateDown(ctx, 0); err != nil {
		t.Fatalf("migrate down reset: %v", err)
	}
	assertMigrationVersion(t, store, 0)

	if err := store.MigrateUp(ctx, 0); err != nil {
		t.Fatalf("migrate up all: %v", err)
	}
	assertMigrationVersion(t, store, 2)

	if err := store.MigrateUp(ctx, 0); err != nil {
		t.Fatalf("idempotent migrate up: %v", err)
	}
	assertMigrationVersion(t, store, 2)

	if err := store.MigrateDown(ctx, 1); err != nil {
		t.Fatalf("migrate down 1: %v", err)
	}
	assertMigrationVersion(t, store, 1)

	if err := store.MigrateDown(ctx, 5); err != nil {
		t.Fatalf("migrate down past the first version: %v", err)
	}
	assertMigrationVersion(t, store, 0)

	if err := store.MigrateDown(ctx, 1); err != nil {
		t.Fatalf("migrate down on empty should be no-op: %v", err)
	}
	if err := store.MigrateUp(ctx, 1); err != nil {
		t.Fatalf("migrate up 1: %v", err)
	}
	assertMigrationVersion(t, store, 1)
}

func TestMigrate_NilStoreGuards(t *testing.T) {
	var nilStore *Store
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := nilStore.MigrateUp(ctx, 0); err == nil {
		t.Fatal("expected error for nil store MigrateUp")
	}
	if err := nilStore.MigrateDown(ctx, 1); err == nil {
		t.Fatal("expected error for nil store MigrateDown")
	}
	if _, _, err := nilStore.MigrationStatus(ctx); err == nil {
		t.Fatal("expected error for nil store MigrationStatus")
	}
	if err := (&Store{}).MigrateUp(ctx, -1); err == nil {
		t.Fatal("expected error for negative steps")
	}
}

func TestMigrationsFS_ContainsPairs(t *testing.T) {
	entries, err := migrationsFS.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 || len(entries)%2 != 0 {
		t.Fatalf("expected up/down pairs, got %d files", len(entries))
	}
}

func assertMigrationVersion(t *testing.T, store *Store, want uint) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	version, dirty, err := store.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("migration status: %v", err)
	}
	if dirty {
		t.Fatalf("schema is dirty at version %d", version)
	}
	if version != want {
		t.Fatalf("expected schema version %d, got %d", want, version)
	}
}
