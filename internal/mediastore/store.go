// Package mediastore is the gallery of finished exports, kept in a sqlite
// database next to the user's media.
package mediastore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Entry is one registered media file.
type Entry struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	MIME      string    `json:"mime"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the sqlite-backed media catalogue. It implements
// pipeline.MediaStore.
type Store struct {
	conn   *sql.DB
	logger zerolog.Logger
}

// Open opens or creates the database at dbPath and applies pending
// migrations.
func Open(dbPath string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	s := &Store{conn: conn, logger: logger.With().Str("component", "mediastore").Logger()}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	migrations, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, m := range migrations {
		if m.IsDir() {
			continue
		}
		name := m.Name()
		if s.isMigrationApplied(name) {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := s.conn.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
		if _, err := s.conn.Exec("INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}
		s.logger.Info().Str("name", name).Msg("applied migration")
	}
	return nil
}

func (s *Store) isMigrationApplied(name string) bool {
	var exists int
	err := s.conn.QueryRow("SELECT 1 FROM sqlite_master WHERE type='table' AND name='_migrations'").Scan(&exists)
	if err != nil {
		return false
	}
	var applied int
	err = s.conn.QueryRow("SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&applied)
	return err == nil && applied == 1
}

// Register records the file at path and returns its id. Registering a path
// again refreshes its name, type and size and keeps the id.
func (s *Store) Register(ctx context.Context, path, name, mime string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", abs, err)
	}
	if name == "" {
		name = filepath.Base(abs)
	}

	id := uuid.NewString()
	err = s.conn.QueryRowContext(ctx, `
		INSERT INTO media (id, path, name, mime, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET name = excluded.name, mime = excluded.mime, size = excluded.size
		RETURNING id
	`, id, abs, name, mime, info.Size(), time.Now().UTC().Format(time.RFC3339)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to register %s: %w", abs, err)
	}

	s.logger.Info().Str("id", id).Str("path", abs).Int64("bytes", info.Size()).Msg("registered media")
	return id, nil
}

// Get returns the entry with id, or nil when there is none.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, path, name, mime, size, created_at
		FROM media WHERE id = ?
	`, id)
	return scanEntry(row)
}

// List returns all entries, newest first.
func (s *Store) List(ctx context.Context) ([]*Entry, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, path, name, mime, size, created_at
		FROM media ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Remove forgets the entry. The file itself stays on disk.
func (s *Store) Remove(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, "DELETE FROM media WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("media %s not found", id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var e Entry
	var createdAt string
	err := row.Scan(&e.ID, &e.Path, &e.Name, &e.MIME, &e.Size, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &e, nil
}
