package registry

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/angeloszaimis/keepalive/internal/project"
	"github.com/angeloszaimis/keepalive/internal/storage"
)

// DefaultURLPattern matches a Supabase project endpoint such as
// https://abcdefghijklmnopqrst.supabase.co
const DefaultURLPattern = `^https://[a-z0-9]{20}\.supabase\.co/?$`

// Registry validates and persists keepalive projects.
type Registry struct {
	store      storage.Store
	urlPattern *regexp.Regexp
	now        func() time.Time
}

type Option func(*Registry)

// WithURLPattern replaces the provider URL shape that connection URLs must match.
func WithURLPattern(pattern *regexp.Regexp) Option {
	return func(r *Registry) {
		r.urlPattern = pattern
	}
}

// WithClock overrides the time source used for createdAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func New(store storage.Store, opts ...Option) *Registry {
	r := &Registry{
		store:      store,
		urlPattern: regexp.MustCompile(DefaultURLPattern),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List returns all projects in creation order.
func (r *Registry) List(ctx context.Context) ([]project.Project, error) {
	return r.store.List(ctx)
}

// ListActive returns the projects that take part in ping cycles.
func (r *Registry) ListActive(ctx context.Context) ([]project.Project, error) {
	return r.store.ListActive(ctx)
}

func (r *Registry) Get(ctx context.Context, id string) (*project.Project, error) {
	return r.store.Get(ctx, id)
}

// Add registers a new active project. Nothing is written if validation fails.
func (r *Registry) Add(ctx context.Context, name, connectionURL, credential string) (*project.Project, error) {
	name = strings.TrimSpace(name)
	connectionURL = strings.TrimSpace(connectionURL)
	credential = strings.TrimSpace(credential)

	err := validation.Errors{
		"name":           validation.Validate(name, validation.Required),
		"connection_url": validation.Validate(connectionURL, r.urlRules()...),
		"credential":     validation.Validate(credential, validation.Required),
	}.Filter()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", project.ErrValidation, err)
	}

	p := &project.Project{
		ID:         uuid.NewString(),
		Name:       name,
		URL:        connectionURL,
		Credential: credential,
		IsActive:   true,
		CreatedAt:  r.now().UTC(),
	}
	if err := r.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("add project: %w", err)
	}
	return p, nil
}

// Update applies the supplied fields to an existing project.
func (r *Registry) Update(ctx context.Context, id string, u project.Update) (*project.Project, error) {
	u = trimUpdate(u)

	errs := validation.Errors{}
	if u.Name != nil {
		errs["name"] = validation.Validate(*u.Name, validation.Required)
	}
	if u.URL != nil {
		errs["connection_url"] = validation.Validate(*u.URL, r.urlRules()...)
	}
	if u.Credential != nil {
		errs["credential"] = validation.Validate(*u.Credential, validation.Required)
	}
	if err := errs.Filter(); err != nil {
		return nil, fmt.Errorf("%w: %w", project.ErrValidation, err)
	}

	if u.Empty() {
		return r.store.Get(ctx, id)
	}
	return r.store.Update(ctx, id, u)
}

// Delete removes a project and its ping history. Deleting an unknown id
// reports project.ErrNotFound.
func (r *Registry) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, id)
}

// RecordPing stores the outcome of a ping on its project.
func (r *Registry) RecordPing(ctx context.Context, result project.PingResult) error {
	return r.store.RecordPing(ctx, result)
}

func (r *Registry) urlRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Match(r.urlPattern).Error("must match " + r.urlPattern.String()),
	}
}

func trimUpdate(u project.Update) project.Update {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		s := strings.TrimSpace(*v)
		return &s
	}
	u.Name = trim(u.Name)
	u.URL = trim(u.URL)
	u.Credential = trim(u.Credential)
	return u
}
