package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/angeloszaimis/keepalive/internal/metrics"
	"github.com/angeloszaimis/keepalive/internal/project"
)

// ReasonInvalidProject marks a stored project the pinger refused to ping.
const ReasonInvalidProject = "invalid_project"

type Registry interface {
	ListActive(ctx context.Context) ([]project.Project, error)
	RecordPing(ctx context.Context, result project.PingResult) error
}

type Pinger interface {
	Ping(ctx context.Context, target project.Project) (project.PingResult, error)
}

type Publisher interface {
	Publish(ctx context.Context, report project.CycleReport) error
}

// Runner performs one full pass over all active projects.
type Runner struct {
	registry  Registry
	pinger    Pinger
	collector *metrics.Collector
	publisher Publisher
	logger    *slog.Logger
}

type Option func(*Runner)

func WithCollector(collector *metrics.Collector) Option {
	return func(r *Runner) {
		r.collector = collector
	}
}

func WithPublisher(publisher Publisher) Option {
	return func(r *Runner) {
		r.publisher = publisher
	}
}

func NewRunner(registry Registry, pinger Pinger, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		registry: registry,
		pinger:   pinger,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunCycle pings every project that is active when the cycle starts, waits
// for all pings to resolve and writes the outcomes back to the registry.
//
// Results follow the order of the active snapshot. A project deleted while
// the cycle was running is left out of the results. The returned error is
// non-nil only when the snapshot could not be read.
func (r *Runner) RunCycle(ctx context.Context) ([]project.PingResult, error) {
	return r.run(ctx, "manual")
}

// RunTriggered is RunCycle with the trigger recorded on the cycle report.
func (r *Runner) RunTriggered(ctx context.Context, trigger string) ([]project.PingResult, error) {
	return r.run(ctx, trigger)
}

func (r *Runner) run(ctx context.Context, trigger string) ([]project.PingResult, error) {
	startedAt := time.Now()

	targets, err := r.registry.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot active projects: %w", err)
	}

	r.logger.Info("Starting ping cycle",
		slog.String("trigger", trigger),
		slog.Int("projects", len(targets)))

	pinged := r.pingAll(ctx, targets)

	results := make([]project.PingResult, 0, len(pinged))
	for _, result := range pinged {
		if err := r.registry.RecordPing(ctx, result); err != nil {
			if errors.Is(err, project.ErrNotFound) {
				r.logger.Info("Project deleted during cycle, dropping result",
					slog.String("project", result.ProjectID))
				continue
			}
			r.logger.Error("Failed to record ping result",
				slog.String("project", result.ProjectID),
				slog.Any("err", err))
		}
		results = append(results, result)
	}

	completedAt := time.Now()
	report := project.NewCycleReport(trigger, startedAt, completedAt, results)

	r.collector.Emit(metrics.MetricEvent{
		Type:      metrics.EventCycleCompleted,
		Timestamp: completedAt,
		Duration:  completedAt.Sub(startedAt),
	})

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, report); err != nil {
			r.logger.Warn("Failed to publish cycle report", slog.Any("err", err))
		}
	}

	r.logger.Info("Ping cycle completed",
		slog.String("trigger", trigger),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
		slog.Duration("elapsed", completedAt.Sub(startedAt)))

	return results, nil
}

// pingAll fans out one goroutine per target and joins them all.
// Each slot of the returned slice belongs to exactly one goroutine.
func (r *Runner) pingAll(ctx context.Context, targets []project.Project) []project.PingResult {
	results := make([]project.PingResult, len(targets))

	var wg sync.WaitGroup
	wg.Add(len(targets))
	for i, target := range targets {
		i, target := i, target
		go func() {
			defer wg.Done()
			results[i] = r.pingOne(ctx, target)
		}()
	}
	wg.Wait()

	return results
}

func (r *Runner) pingOne(ctx context.Context, target project.Project) (result project.PingResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Ping panicked",
				slog.String("project", target.ID),
				slog.Any("panic", rec))
			result = failed(target, ReasonInvalidProject)
		}
	}()

	result, err := r.pinger.Ping(ctx, target)
	if err != nil {
		r.logger.Warn("Project cannot be pinged",
			slog.String("project", target.ID),
			slog.Any("err", err))
		result = failed(target, ReasonInvalidProject)
	}

	if result.Success {
		r.logger.Debug("Ping succeeded",
			slog.String("project", target.ID),
			slog.Int64("latency_ms", result.LatencyMS))
	} else {
		r.logger.Warn("Ping failed",
			slog.String("project", target.ID),
			slog.String("name", target.Name),
			slog.String("reason", result.Error))
	}

	r.collector.Emit(metrics.MetricEvent{
		Type:     metrics.EventPingCompleted,
		Project:  target.ID,
		Duration: time.Duration(result.LatencyMS) * time.Millisecond,
		Success:  result.Success,
		Reason:   result.Error,
	})

	return result
}

func failed(target project.Project, reason string) project.PingResult {
	return project.PingResult{
		ProjectID:   target.ID,
		ProjectName: target.Name,
		Timestamp:   time.Now().UTC(),
		Error:       reason,
	}
}
