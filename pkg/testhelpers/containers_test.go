//go:build integration

package testhelpers

import (
	"context"
	"testing"
)

func TestEngineDB_Migrated(t *testing.T) {
	engineDB := GetEngineDB(t)

	ctx := context.Background()

	var version int
	var dirty bool
	err := engineDB.DB.Pool.QueryRow(ctx, "SELECT version, dirty FROM schema_migrations").Scan(&version, &dirty)
	if err != nil {
		t.Fatalf("failed to read schema_migrations: %v", err)
	}
	if version < 1 || dirty {
		t.Errorf("expected clean migration version >= 1, got %d dirty=%v", version, dirty)
	}
}

func TestTestRedis_Ping(t *testing.T) {
	r := GetTestRedis(t)

	if err := r.Client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("failed to ping redis: %v", err)
	}
}
