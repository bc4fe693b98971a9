package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate runs all schema migrations in one transaction. Every statement is
// idempotent and valid for both SQLite and PostgreSQL.
func Migrate(db *sql.DB) error {
	uow := NewUnitOfWork(db)
	return uow.WithinTx(context.Background(), func(ctx context.Context, tx DBTX) error {
		for i, stmt := range migrations {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration %d: %w", i, err)
			}
		}
		return nil
	})
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		path        TEXT PRIMARY KEY,
		collection  TEXT NOT NULL,
		body        TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection, created_at)`,
}
