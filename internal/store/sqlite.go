package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/sakaguchiii/bus-notification/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies PRAGMAs, runs migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite is a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// ListStops returns all stops in directory order.
func (r *SQLiteRepo) ListStops(ctx context.Context) ([]domain.Stop, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, code, position, updated_at
		FROM stops
		ORDER BY position ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Stop
	for rows.Next() {
		var row stopRow
		if err := rows.Scan(&row.Name, &row.Code, &row.Position, &row.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// UpsertStops inserts or updates stops in a single transaction.
// New names are appended after the current last position; existing names
// keep their position and get the new code.
func (r *SQLiteRepo) UpsertStops(ctx context.Context, stops []domain.Stop) error {
	if len(stops) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var last int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) FROM stops`).Scan(&last); err != nil {
		return err
	}

	now := time.Now().UTC().Unix()
	for _, s := range stops {
		name, code := strings.TrimSpace(s.Name), strings.TrimSpace(s.Code)
		if name == "" || code == "" {
			return errors.New("stop with empty name or code")
		}
		last++
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stops (name, code, position, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				code       = excluded.code,
				updated_at = excluded.updated_at`,
			name, code, last, now,
		); err != nil {
			return fmt.Errorf("upsert stop %q: %w", name, err)
		}
	}
	return tx.Commit()
}
