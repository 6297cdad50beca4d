package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"birthdaymemo/internal/core"
	"birthdaymemo/internal/records"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores birthday entries in a single SQLite table, one row
// per (username, role, year).
type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ records.Store      = (*SQLiteRepository)(nil)
	_ records.UserLister = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Load implements records.Loader. Unknown users get an empty record.
func (r *SQLiteRepository) Load(ctx context.Context, username string) (core.Record, error) {
	user, err := records.SanitizeUsername(username)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT role, year, name, note FROM birthday_entries WHERE username = ? ORDER BY role, seq`,
		user)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	rec := core.Record{}
	for rows.Next() {
		var (
			role string
			e    core.Entry
		)
		if err := rows.Scan(&role, &e.Year, &e.Name, &e.Note); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		rec[core.Role(role)] = append(rec[core.Role(role)], e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return rec, nil
}

// Save implements records.Saver by replacing all of the user's rows in one
// transaction. Row order within a role is kept in seq.
func (r *SQLiteRepository) Save(ctx context.Context, username string, rec core.Record) error {
	user, err := records.SanitizeUsername(username)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM birthday_entries WHERE username = ?`, user); err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO birthday_entries (username, role, year, name, note, seq, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	count := 0
	for role, entries := range rec {
		for i, e := range entries {
			if _, err := stmt.ExecContext(ctx, user, string(role), e.Year, e.Name, e.Note, i, now); err != nil {
				return fmt.Errorf("insert entry %s/%d: %w", role, e.Year, err)
			}
			count++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.DebugContext(ctx, "Record saved to SQLite", "username", user, "entries", count)
	return nil
}

// ListUsers implements records.UserLister.
func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT username FROM birthday_entries ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
