package testutil

import (
	"context"
	"database/sql"
	"sync/atomic"
	"testing"

	"github.com/alexanderramin/smartplan/internal/db"
)

// NewTestDB creates an in-memory SQLite database with all migrations applied.
// The database is closed when the test completes.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}

// FailingExec wraps a DBTX and fails every ExecContext call with Err once
// Calls reaches FailFrom (counting from 1). Reads pass through, so a store
// built on it can still be read while its writes fail.
type FailingExec struct {
	db.DBTX
	FailFrom int32
	Err      error
	Calls    atomic.Int32
}

// FailWrites returns a FailingExec that rejects every write.
func FailWrites(conn db.DBTX, err error) *FailingExec {
	return &FailingExec{DBTX: conn, FailFrom: 1, Err: err}
}

func (f *FailingExec) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	n := f.Calls.Add(1)
	if n >= f.FailFrom {
		return nil, f.Err
	}
	return f.DBTX.ExecContext(ctx, query, args...)
}
