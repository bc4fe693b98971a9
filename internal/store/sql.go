package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/smartplan/internal/db"
	"github.com/google/uuid"
)

// Fixed-width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLStore implements Documents on the documents table.
type SQLStore struct {
	db      db.DBTX
	dialect db.Dialect
	now     func() time.Time
}

// NewSQLStore creates a SQLStore. The dialect controls placeholder style.
func NewSQLStore(conn db.DBTX, dialect db.Dialect) *SQLStore {
	return &SQLStore{
		db:      conn,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *SQLStore) Set(ctx context.Context, path string, v any) error {
	collection, _, err := Split(path)
	if err != nil {
		return err
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	now := s.now().Format(timeLayout)
	query := s.dialect.Rebind(`INSERT INTO documents (path, collection, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, query, path, collection, string(body), now, now); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, path string, dst any) error {
	if _, _, err := Split(path); err != nil {
		return err
	}
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(`SELECT body FROM documents WHERE path = ?`), path)

	var body string
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func (s *SQLStore) Add(ctx context.Context, collection string, v any) (string, error) {
	key := uuid.NewString()
	if err := s.Set(ctx, Join(collection, key), v); err != nil {
		return "", err
	}
	return key, nil
}

func (s *SQLStore) List(ctx context.Context, collection string) ([]Document, error) {
	query := s.dialect.Rebind(`SELECT path, collection, body, created_at, updated_at
		FROM documents WHERE collection = ? ORDER BY created_at, path`)
	rows, err := s.db.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			d                Document
			body             string
			created, updated string
		)
		if err := rows.Scan(&d.Path, &d.Collection, &body, &created, &updated); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		d.Body = json.RawMessage(body)
		_, d.Key, _ = Split(d.Path)
		d.CreatedAt, _ = time.Parse(timeLayout, created)
		d.UpdatedAt, _ = time.Parse(timeLayout, updated)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}
