package memory

import (
	"context"
	"sync"

	"github.com/angeloszaimis/keepalive/internal/project"
)

// Store keeps projects in process memory.
type Store struct {
	mutex    sync.RWMutex
	order    []string
	projects map[string]project.Project
}

func New() *Store {
	return &Store{
		projects: make(map[string]project.Project),
	}
}

func (s *Store) List(ctx context.Context) ([]project.Project, error) {
	return s.list(func(project.Project) bool { return true }), nil
}

func (s *Store) ListActive(ctx context.Context) ([]project.Project, error) {
	return s.list(func(p project.Project) bool { return p.IsActive }), nil
}

func (s *Store) list(keep func(project.Project) bool) []project.Project {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]project.Project, 0, len(s.order))
	for _, id := range s.order {
		p := s.projects[id]
		if keep(p) {
			out = append(out, clone(p))
		}
	}
	return out
}

func (s *Store) Get(ctx context.Context, id string) (*project.Project, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, project.ErrNotFound
	}
	c := clone(p)
	return &c, nil
}

func (s *Store) Create(ctx context.Context, p *project.Project) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.projects[p.ID] = clone(*p)
	s.order = append(s.order, p.ID)
	return nil
}

func (s *Store) Update(ctx context.Context, id string, u project.Update) (*project.Project, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, project.ErrNotFound
	}
	u.Apply(&p)
	s.projects[id] = p

	c := clone(p)
	return &c, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.projects[id]; !ok {
		return project.ErrNotFound
	}
	delete(s.projects, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) RecordPing(ctx context.Context, r project.PingResult) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p, ok := s.projects[r.ProjectID]
	if !ok {
		return project.ErrNotFound
	}

	at := r.Timestamp
	success := r.Success
	p.LastPingAt = &at
	p.LastPingSuccess = &success
	p.LastPingError = nil
	if r.Error != "" {
		msg := r.Error
		p.LastPingError = &msg
	}
	s.projects[r.ProjectID] = p
	return nil
}

func (s *Store) Close() error { return nil }

// clone detaches the pointer fields so callers never share state with the map.
func clone(p project.Project) project.Project {
	if p.LastPingAt != nil {
		at := *p.LastPingAt
		p.LastPingAt = &at
	}
	if p.LastPingSuccess != nil {
		ok := *p.LastPingSuccess
		p.LastPingSuccess = &ok
	}
	if p.LastPingError != nil {
		msg := *p.LastPingError
		p.LastPingError = &msg
	}
	return p
}
