package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/angeloszaimis/keepalive/internal/project"
)

// Status is a point-in-time view of the scheduler and every project.
type Status struct {
	IsRunning            bool              `json:"is_running"`
	Started              bool              `json:"started"`
	IntervalHours        float64           `json:"interval_hours"`
	StartedAt            *time.Time        `json:"started_at"`
	LastCycleStartedAt   *time.Time        `json:"last_cycle_started_at"`
	LastCycleCompletedAt *time.Time        `json:"last_cycle_completed_at"`
	// NextScheduledAt is the armed timer deadline. External triggers do not move it.
	NextScheduledAt      *time.Time        `json:"next_scheduled_at"`
	Projects             []project.Project `json:"projects"`
}

// Status combines scheduler state with a fresh project listing. It never
// waits for an in-flight cycle; projects show whatever is persisted now.
func (s *Scheduler) Status(ctx context.Context) (Status, error) {
	s.mutex.Lock()
	status := Status{
		Started:              s.started,
		IntervalHours:        s.interval.Hours(),
		StartedAt:            timePtr(s.startedAt),
		LastCycleStartedAt:   timePtr(s.lastStarted),
		LastCycleCompletedAt: timePtr(s.lastCompleted),
		NextScheduledAt:      timePtr(s.nextAt),
	}
	s.mutex.Unlock()
	status.IsRunning = s.running.Load()

	projects, err := s.projects.List(ctx)
	if err != nil {
		return status, fmt.Errorf("list projects for status: %w", err)
	}
	status.Projects = projects
	return status, nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
