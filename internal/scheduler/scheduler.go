package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angeloszaimis/keepalive/internal/metrics"
	"github.com/angeloszaimis/keepalive/internal/project"
)

const DefaultInterval = 6 * time.Hour

const (
	TriggerTimer    = "timer"
	TriggerExternal = "external"
)

// ErrCycleInProgress is returned by RunNow when a cycle is already executing.
// The external trigger is rejected rather than queued behind the running cycle.
var ErrCycleInProgress = errors.New("ping cycle already in progress")

type CycleRunner interface {
	RunTriggered(ctx context.Context, trigger string) ([]project.PingResult, error)
}

type ProjectLister interface {
	List(ctx context.Context) ([]project.Project, error)
}

type Options struct {
	Interval   time.Duration
	RunOnStart bool
	Collector  *metrics.Collector
	Logger     *slog.Logger
}

// Scheduler owns the repeating keepalive timer. It has two states, Idle and
// CycleInProgress, held in a single atomic flag. At most one cycle runs at a
// time regardless of whether the timer or an external caller started it.
type Scheduler struct {
	runner     CycleRunner
	projects   ProjectLister
	interval   time.Duration
	runOnStart bool
	collector  *metrics.Collector
	logger     *slog.Logger

	running atomic.Bool

	mutex         sync.Mutex
	started       bool
	startedAt     time.Time
	nextAt        time.Time
	lastStarted   time.Time
	lastCompleted time.Time
	timer         *time.Timer

	wg sync.WaitGroup
}

func New(runner CycleRunner, projects ProjectLister, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Scheduler{
		runner:     runner,
		projects:   projects,
		interval:   opts.Interval,
		runOnStart: opts.RunOnStart,
		collector:  opts.Collector,
		logger:     opts.Logger,
	}
}

// Start arms the timer and launches the control loop. Calling Start on a
// scheduler that is already started does nothing. The loop exits when ctx
// is cancelled, after which the scheduler may be started again.
func (s *Scheduler) Start(ctx context.Context) {
	if ctx.Err() != nil {
		s.logger.Warn("Not starting scheduler, context already done", slog.Any("err", ctx.Err()))
		return
	}

	s.mutex.Lock()
	if s.started {
		s.mutex.Unlock()
		s.logger.Debug("Scheduler already started")
		return
	}

	first := s.interval
	if s.runOnStart {
		first = 0
	}
	now := time.Now()
	s.started = true
	s.startedAt = now
	s.nextAt = now.Add(first)
	s.timer = time.NewTimer(first)
	s.mutex.Unlock()

	s.logger.Info("Keepalive scheduler started",
		slog.Duration("interval", s.interval),
		slog.Time("next_run", now.Add(first)))

	s.wg.Add(1)
	go s.loop(ctx)
}

// Started reports whether the control loop is running.
func (s *Scheduler) Started() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.started
}

// Wait blocks until the control loop and any timer-driven cycle have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			s.mutex.Lock()
			s.timer.Stop()
			s.started = false
			s.nextAt = time.Time{}
			s.mutex.Unlock()
			s.logger.Info("Keepalive scheduler stopped")
			return

		case <-s.timer.C:
			s.fire(ctx)
		}
	}
}

// fire handles one timer expiry. When a cycle is already in flight the fire
// is dropped and the timer re-armed from now.
func (s *Scheduler) fire(ctx context.Context) {
	now := time.Now()

	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("Timer fired while a cycle is in progress, skipping")
		s.collector.Emit(metrics.MetricEvent{Type: metrics.EventCycleSkipped, Timestamp: now})
		s.rearm(now)
		return
	}

	s.rearm(now)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.execute(ctx, TriggerTimer, now); err != nil {
			s.logger.Error("Scheduled ping cycle failed", slog.Any("err", err))
		}
	}()
}

func (s *Scheduler) rearm(from time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.timer.Reset(s.interval - time.Since(from))
	s.nextAt = from.Add(s.interval)
}

// RunNow runs a cycle on behalf of an external trigger. It does not touch the
// timer schedule. If a cycle is already running it returns ErrCycleInProgress
// without starting another one.
func (s *Scheduler) RunNow(ctx context.Context) ([]project.PingResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	return s.execute(ctx, TriggerExternal, time.Now())
}

// execute runs one cycle. The caller must hold the running flag.
func (s *Scheduler) execute(ctx context.Context, trigger string, startedAt time.Time) ([]project.PingResult, error) {
	defer s.running.Store(false)

	s.mutex.Lock()
	s.lastStarted = startedAt
	s.mutex.Unlock()

	results, err := s.runner.RunTriggered(ctx, trigger)

	s.mutex.Lock()
	s.lastCompleted = time.Now()
	s.mutex.Unlock()

	return results, err
}

// IsRunning reports whether a cycle is executing right now.
func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

// Interval returns the timer cadence.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}
