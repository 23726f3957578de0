package storage

import (
	"context"

	"github.com/angeloszaimis/keepalive/internal/project"
)

// Store persists keepalive projects. Every mutation is a single atomic write
// on one record and is visible to reads that start after it returns.
// Lookups of unknown ids return project.ErrNotFound.
type Store interface {
	// List returns all projects in creation order.
	List(ctx context.Context) ([]project.Project, error)
	// ListActive returns active projects in creation order.
	ListActive(ctx context.Context) ([]project.Project, error)
	Get(ctx context.Context, id string) (*project.Project, error)
	Create(ctx context.Context, p *project.Project) error
	Update(ctx context.Context, id string, u project.Update) (*project.Project, error)
	Delete(ctx context.Context, id string) error
	// RecordPing folds a ping outcome into the project's last-ping fields.
	RecordPing(ctx context.Context, r project.PingResult) error
	Close() error
}
