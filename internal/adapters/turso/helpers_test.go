package turso_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/emiliopalmerini/shinyhunt/internal/adapters/turso"
	"github.com/emiliopalmerini/shinyhunt/internal/migrate"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := turso.Open(ctx, turso.Options{DataDir: t.TempDir(), Ping: true})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if err := migrate.RunAll(ctx, db); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}
