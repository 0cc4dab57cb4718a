package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mfsolucoes/backoffice/internal/dbx"
)

// SQLiteStore keeps slots in a single `slots` table. It is the durable Store
// used by the application.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	query := `select value from slots where key=?`
	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read slot %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value string) error {
	return set(ctx, s.db, key, value)
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	query := `delete from slots where key=?`
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete slot %s: %w", key, err)
	}
	return nil
}

// SetMany writes all pairs inside one transaction so a snapshot restore is
// either fully applied or not at all.
func (s *SQLiteStore) SetMany(ctx context.Context, kv map[string]string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for k, v := range kv {
			if err := set(ctx, tx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func set(ctx context.Context, db dbx.DBTX, key, value string) error {
	query := ` INSERT INTO slots (key, value)
			values (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to upsert slot %s: %w", key, err)
	}
	return nil
}
