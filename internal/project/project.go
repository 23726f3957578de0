package project

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when an operation references an unknown project id.
	ErrNotFound = errors.New("project not found")
	// ErrValidation is returned when registry input is malformed.
	ErrValidation = errors.New("invalid project")
)

// Project is a registered keepalive target.
// The credential is never serialized; it is only needed to re-ping.
type Project struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	URL             string     `json:"connection_url"`
	Credential      string     `json:"-"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	LastPingAt      *time.Time `json:"last_ping_at"`
	LastPingSuccess *bool      `json:"last_ping_success"`
	LastPingError   *string    `json:"last_ping_error"`
}

// Update carries the mutable fields of a Project. Nil fields are left untouched.
type Update struct {
	Name       *string `json:"name"`
	URL        *string `json:"connection_url"`
	Credential *string `json:"credential"`
	IsActive   *bool   `json:"is_active"`
}

// Empty reports whether the update carries no fields.
func (u Update) Empty() bool {
	return u.Name == nil && u.URL == nil && u.Credential == nil && u.IsActive == nil
}

// Apply copies the supplied fields onto p.
func (u Update) Apply(p *Project) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.URL != nil {
		p.URL = *u.URL
	}
	if u.Credential != nil {
		p.Credential = *u.Credential
	}
	if u.IsActive != nil {
		p.IsActive = *u.IsActive
	}
}

// PingResult is the outcome of one ping against one project.
// Error is set iff Success is false.
type PingResult struct {
	ProjectID   string    `json:"project_id"`
	ProjectName string    `json:"project_name"`
	Timestamp   time.Time `json:"timestamp"`
	Success     bool      `json:"success"`
	LatencyMS   int64     `json:"latency_ms"`
	Error       string    `json:"error,omitempty"`
}

// CycleReport summarizes one completed ping cycle.
type CycleReport struct {
	Trigger     string       `json:"trigger"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
	Succeeded   int          `json:"succeeded"`
	Failed      int          `json:"failed"`
	Results     []PingResult `json:"results"`
}

// NewCycleReport builds a report and counts outcomes.
func NewCycleReport(trigger string, startedAt, completedAt time.Time, results []PingResult) CycleReport {
	report := CycleReport{
		Trigger:     trigger,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Results:     results,
	}
	for _, r := range results {
		if r.Success {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	return report
}
