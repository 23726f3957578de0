package metrics

import (
	"sort"
	"sync"
	"time"
)

const maxLatencySamples = 1000

type Metrics struct {
	mutex         sync.RWMutex
	pings         map[string]int64
	failures      map[string]map[string]int64
	latencies     map[string][]time.Duration
	lastSuccess   map[string]bool
	cycles        int64
	skippedCycles int64
	lastCycle     time.Duration
	startTime     time.Time
}

type Snapshot struct {
	TotalPings    int64                     `json:"total_pings"`
	TotalFailures int64                     `json:"total_failures"`
	Cycles        int64                     `json:"cycles"`
	SkippedCycles int64                     `json:"skipped_cycles"`
	LastCycle     time.Duration             `json:"last_cycle_duration"`
	Uptime        time.Duration             `json:"uptime"`
	Projects      map[string]ProjectMetrics `json:"projects"`
}

type ProjectMetrics struct {
	Pings       int64            `json:"pings"`
	Failures    map[string]int64 `json:"failures"`
	LastSuccess bool             `json:"last_success"`
	AvgLatency  time.Duration    `json:"avg_latency"`
	P50Latency  time.Duration    `json:"p50_latency"`
	P95Latency  time.Duration    `json:"p95_latency"`
	P99Latency  time.Duration    `json:"p99_latency"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		pings:       make(map[string]int64),
		failures:    make(map[string]map[string]int64),
		latencies:   make(map[string][]time.Duration),
		lastSuccess: make(map[string]bool),
		startTime:   time.Now(),
	}
}

func (m *Metrics) RecordPing(project string, latency time.Duration, success bool, reason string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.pings[project]++
	m.lastSuccess[project] = success

	m.latencies[project] = append(m.latencies[project], latency)
	if len(m.latencies[project]) > maxLatencySamples {
		m.latencies[project] = m.latencies[project][1:]
	}

	if success {
		return
	}
	if m.failures[project] == nil {
		m.failures[project] = make(map[string]int64)
	}
	m.failures[project][reason]++
}

func (m *Metrics) RecordCycle(duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.cycles++
	m.lastCycle = duration
}

func (m *Metrics) RecordSkippedCycle() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.skippedCycles++
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Cycles:        m.cycles,
		SkippedCycles: m.skippedCycles,
		LastCycle:     m.lastCycle,
		Uptime:        time.Since(m.startTime),
		Projects:      make(map[string]ProjectMetrics, len(m.pings)),
	}

	for project, count := range m.pings {
		snap.TotalPings += count

		pm := ProjectMetrics{
			Pings:       count,
			Failures:    make(map[string]int64, len(m.failures[project])),
			LastSuccess: m.lastSuccess[project],
		}
		for reason, n := range m.failures[project] {
			pm.Failures[reason] = n
			snap.TotalFailures += n
		}

		durations := m.latencies[project]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			pm.AvgLatency = average(sorted)
			pm.P50Latency = percentile(sorted, 0.50)
			pm.P95Latency = percentile(sorted, 0.95)
			pm.P99Latency = percentile(sorted, 0.99)
		}

		snap.Projects[project] = pm
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
