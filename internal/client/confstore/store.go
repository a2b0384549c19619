package confstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/migrations"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/dbx"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed conf store.
type Store struct {
	db *sql.DB
}

// New wraps an open database that already has the conf schema.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (or creates) the database at dsn and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}
	// modernc sqlite serializes writers; one connection keeps :memory: stable.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return New(db), nil
}

// RunMigrations applies the embedded migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetConf(ctx context.Context, key string) ([]byte, error) {
	return get(ctx, s.db, key)
}

func (s *Store) PutConf(ctx context.Context, key string, value []byte) error {
	return put(ctx, s.db, key, value)
}

// PutConfMany upserts every pair atomically.
func (s *Store) PutConfMany(ctx context.Context, values map[string][]byte) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for k, v := range values {
			if err := put(ctx, tx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) DeleteConf(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conf WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete conf[%s]: %w", key, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conf`); err != nil {
		return fmt.Errorf("failed to clear conf: %w", err)
	}
	return nil
}

func (s *Store) ListConf(ctx context.Context) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM conf`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conf: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan conf row: %w", err)
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conf rows: %w", err)
	}
	return result, nil
}

func get(ctx context.Context, db dbx.DBTX, key string) ([]byte, error) {
	var value []byte
	err := db.QueryRowContext(ctx, `SELECT value FROM conf WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conf[%s]: %w", key, err)
	}
	return value, nil
}

func put(ctx context.Context, db dbx.DBTX, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO conf (key, value, updated_at) VALUES (?, ?, strftime('%s', 'now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set conf[%s]: %w", key, err)
	}
	return nil
}
