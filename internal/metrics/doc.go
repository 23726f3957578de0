// Package metrics collects keepalive ping metrics.
//
// It uses a channel-based event pipeline to asynchronously collect:
//   - Ping counts per project
//   - Failure counts per project, keyed by failure reason
//   - Ping latency with percentile calculations (P50, P95, P99)
//   - Completed and skipped cycle counts
//
// The collector runs in a dedicated goroutine. Emit never blocks the cycle
// runner: events are dropped when the buffer is full.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:     metrics.EventPingCompleted,
//		Project:  "3f0c...",
//		Duration: 150 * time.Millisecond,
//		Success:  true,
//	})
//
//	snapshot := collector.Snapshot()
package metrics
