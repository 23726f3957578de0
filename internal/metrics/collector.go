package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventPingCompleted  EventType = "ping_completed"
	EventCycleCompleted EventType = "cycle_completed"
	EventCycleSkipped   EventType = "cycle_skipped"
)

type MetricEvent struct {
	Type      EventType
	Timestamp time.Time
	Project   string
	Duration  time.Duration
	Success   bool
	Reason    string
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit hands an event to the collector without blocking. Events are dropped
// when the buffer is full.
func (c *Collector) Emit(event MetricEvent) {
	if c == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
	default:
		c.logger.Debug("Metrics buffer full, dropping event", slog.String("type", string(event.Type)))
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventPingCompleted:
		c.metrics.RecordPing(event.Project, event.Duration, event.Success, event.Reason)

	case EventCycleCompleted:
		c.metrics.RecordCycle(event.Duration)

	case EventCycleSkipped:
		c.metrics.RecordSkippedCycle()
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
