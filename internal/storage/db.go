package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mfsolucoes/backoffice/internal/storage/migrations"
	"github.com/pressly/goose/v3"
)

// RunMigrations applies the embedded slot-store migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the SQLite database at dsn, migrates it, and returns a
// ready SQLiteStore. The caller keeps ownership of the returned *sql.DB.
func InitDatabase(ctx context.Context, dsn string) (*SQLiteStore, *sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	return NewSQLiteStore(db), db, nil
}
