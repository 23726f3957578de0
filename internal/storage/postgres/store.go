package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/angeloszaimis/keepalive/internal/project"
)

const columns = `id, name, url, credential, is_active, created_at, last_ping_at, last_ping_success, last_ping_error`

// Store implements storage.Store for PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a connection pool, pings the server and runs migrations.
func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	store := &Store{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS keepalive_projects (
		seq               BIGSERIAL PRIMARY KEY,
		id                TEXT NOT NULL UNIQUE,
		name              TEXT NOT NULL,
		url               TEXT NOT NULL,
		credential        TEXT NOT NULL,
		is_active         BOOLEAN NOT NULL DEFAULT TRUE,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_ping_at      TIMESTAMPTZ,
		last_ping_success BOOLEAN,
		last_ping_error   TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_keepalive_projects_active ON keepalive_projects (is_active, seq);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *Store) List(ctx context.Context) ([]project.Project, error) {
	return s.query(ctx, `SELECT `+columns+` FROM keepalive_projects ORDER BY seq`)
}

func (s *Store) ListActive(ctx context.Context) ([]project.Project, error) {
	return s.query(ctx, `SELECT `+columns+` FROM keepalive_projects WHERE is_active ORDER BY seq`)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]project.Project, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: failed to query: %w", err)
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
		return nil, fmt.Errorf("list projects: row iteration error: %w", err)
	}
	return projects, nil
}

func (s *Store) Get(ctx context.Context, id string) (*project.Project, error) {
	return scanProject(s.pool.QueryRow(ctx, `SELECT `+columns+` FROM keepalive_projects WHERE id = $1`, id))
}

func (s *Store) Create(ctx context.Context, p *project.Project) error {
	query := `INSERT INTO keepalive_projects (id, name, url, credential, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.pool.Exec(ctx, query, p.ID, p.Name, p.URL, p.Credential, p.IsActive, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, id string, u project.Update) (*project.Project, error) {
	query := `UPDATE keepalive_projects SET
			name       = COALESCE($1, name),
			url        = COALESCE($2, url),
			credential = COALESCE($3, credential),
			is_active  = COALESCE($4, is_active)
		WHERE id = $5
		RETURNING ` + columns
	row := s.pool.QueryRow(ctx, query, u.Name, u.URL, u.Credential, u.IsActive, id)
	return scanProject(row)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM keepalive_projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return project.ErrNotFound
	}
	return nil
}

func (s *Store) RecordPing(ctx context.Context, r project.PingResult) error {
	var pingErr *string
	if r.Error != "" {
		pingErr = &r.Error
	}

	query := `UPDATE keepalive_projects
		SET last_ping_at = $1, last_ping_success = $2, last_ping_error = $3
		WHERE id = $4`
	tag, err := s.pool.Exec(ctx, query, r.Timestamp, r.Success, pingErr, r.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to record ping: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return project.ErrNotFound
	}
	return nil
}

func scanProject(row pgx.Row) (*project.Project, error) {
	var p project.Project
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.URL,
		&p.Credential,
		&p.IsActive,
		&p.CreatedAt,
		&p.LastPingAt,
		&p.LastPingSuccess,
		&p.LastPingError,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, project.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	return &p, nil
}
