package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/angeloszaimis/keepalive/internal/project"
)

const columns = `id, name, url, credential, is_active, created_at, last_ping_at, last_ping_success, last_ping_error`

// Store implements storage.Store on top of an SQLite database file.
type Store struct {
	db *sql.DB
}

// New opens the database file and runs migrations.
func New(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	// A single connection serializes writers and keeps every statement atomic.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS keepalive_projects (
	seq               INTEGER PRIMARY KEY AUTOINCREMENT,
	id                TEXT NOT NULL UNIQUE,
	name              TEXT NOT NULL,
	url               TEXT NOT NULL,
	credential        TEXT NOT NULL,
	is_active         INTEGER NOT NULL DEFAULT 1,
	created_at        TEXT NOT NULL,
	last_ping_at      TEXT,
	last_ping_success INTEGER,
	last_ping_error   TEXT
);
CREATE INDEX IF NOT EXISTS idx_keepalive_projects_active ON keepalive_projects (is_active, seq);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) List(ctx context.Context) ([]project.Project, error) {
	return s.query(ctx, `SELECT `+columns+` FROM keepalive_projects ORDER BY seq`)
}

func (s *Store) ListActive(ctx context.Context) ([]project.Project, error) {
	return s.query(ctx, `SELECT `+columns+` FROM keepalive_projects WHERE is_active = 1 ORDER BY seq`)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]project.Project, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	projects := []project.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("project row iteration error: %w", err)
	}
	return projects, nil
}

func (s *Store) Get(ctx context.Context, id string) (*project.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM keepalive_projects WHERE id = ?`, id)
	return scanProject(row)
}

func (s *Store) Create(ctx context.Context, p *project.Project) error {
	query := `
INSERT INTO keepalive_projects (id, name, url, credential, is_active, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.URL, p.Credential, boolToInt(p.IsActive), p.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, id string, u project.Update) (*project.Project, error) {
	var active any
	if u.IsActive != nil {
		active = boolToInt(*u.IsActive)
	}

	query := `
UPDATE keepalive_projects SET
	name       = COALESCE(?, name),
	url        = COALESCE(?, url),
	credential = COALESCE(?, credential),
	is_active  = COALESCE(?, is_active)
WHERE id = ?
RETURNING ` + columns
	row := s.db.QueryRowContext(ctx, query,
		nullString(u.Name), nullString(u.URL), nullString(u.Credential), active, id)
	return scanProject(row)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM keepalive_projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return requireAffected(res)
}

func (s *Store) RecordPing(ctx context.Context, r project.PingResult) error {
	var pingErr any
	if r.Error != "" {
		pingErr = r.Error
	}

	query := `
UPDATE keepalive_projects
SET last_ping_at = ?, last_ping_success = ?, last_ping_error = ?
WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query,
		r.Timestamp.UTC().Format(time.RFC3339Nano), boolToInt(r.Success), pingErr, r.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to record ping: %w", err)
	}
	return requireAffected(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*project.Project, error) {
	var (
		p         project.Project
		createdAt string
		pingAt    sql.NullString
		pingOK    sql.NullInt64
		pingErr   sql.NullString
		active    int64
	)
	err := row.Scan(&p.ID, &p.Name, &p.URL, &p.Credential, &active, &createdAt, &pingAt, &pingOK, &pingErr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, project.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}

	p.IsActive = active != 0
	p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at for project %s: %w", p.ID, err)
	}
	if pingAt.Valid {
		at, err := time.Parse(time.RFC3339Nano, pingAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid last_ping_at for project %s: %w", p.ID, err)
		}
		p.LastPingAt = &at
	}
	if pingOK.Valid {
		ok := pingOK.Int64 != 0
		p.LastPingSuccess = &ok
	}
	if pingErr.Valid {
		msg := pingErr.String
		p.LastPingError = &msg
	}
	return &p, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return project.ErrNotFound
	}
	return nil
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
