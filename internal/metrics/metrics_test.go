package metrics_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/keepalive/internal/metrics"
)

var _ = Describe("Metrics", func() {
	var m *metrics.Metrics

	BeforeEach(func() {
		m = metrics.NewMetrics()
	})

	Describe("RecordPing", func() {
		It("should count pings per project", func() {
			m.RecordPing("project-a", 100*time.Millisecond, true, "")
			m.RecordPing("project-a", 100*time.Millisecond, true, "")
			m.RecordPing("project-b", 100*time.Millisecond, true, "")

			snap := m.Snapshot()
			Expect(snap.TotalPings).To(Equal(int64(3)))
			Expect(snap.Projects["project-a"].Pings).To(Equal(int64(2)))
			Expect(snap.Projects["project-b"].Pings).To(Equal(int64(1)))
		})

		It("should count failures by reason", func() {
			m.RecordPing("project-a", 10*time.Second, false, "timeout")
			m.RecordPing("project-a", 10*time.Second, false, "timeout")
			m.RecordPing("project-a", 50*time.Millisecond, false, "auth_error")
			m.RecordPing("project-a", 50*time.Millisecond, true, "")

			snap := m.Snapshot()
			project := snap.Projects["project-a"]
			Expect(project.Failures).To(HaveKeyWithValue("timeout", int64(2)))
			Expect(project.Failures).To(HaveKeyWithValue("auth_error", int64(1)))
			Expect(snap.TotalFailures).To(Equal(int64(3)))
			Expect(project.LastSuccess).To(BeTrue())
		})

		It("should compute latency statistics", func() {
			m.RecordPing("project-a", 100*time.Millisecond, true, "")
			m.RecordPing("project-a", 200*time.Millisecond, true, "")

			snap := m.Snapshot()
			Expect(snap.Projects["project-a"].AvgLatency).To(Equal(150 * time.Millisecond))
		})

		It("should calculate percentiles", func() {
			for i := 1; i <= 100; i++ {
				m.RecordPing("project-a", time.Duration(i)*time.Millisecond, true, "")
			}

			project := m.Snapshot().Projects["project-a"]
			Expect(project.P50Latency).To(Equal(51 * time.Millisecond))
			Expect(project.P95Latency).To(Equal(96 * time.Millisecond))
			Expect(project.P99Latency).To(Equal(100 * time.Millisecond))
		})

		It("should keep a bounded number of latency samples", func() {
			for i := 0; i < 1100; i++ {
				m.RecordPing("project-a", time.Second, true, "")
			}
			m.RecordPing("project-a", time.Millisecond, true, "")

			project := m.Snapshot().Projects["project-a"]
			Expect(project.Pings).To(Equal(int64(1101)))
			Expect(project.AvgLatency).To(BeNumerically("<", time.Second))
		})
	})

	Describe("RecordCycle", func() {
		It("should count cycles and keep the last duration", func() {
			m.RecordCycle(2 * time.Second)
			m.RecordCycle(3 * time.Second)
			m.RecordSkippedCycle()

			snap := m.Snapshot()
			Expect(snap.Cycles).To(Equal(int64(2)))
			Expect(snap.SkippedCycles).To(Equal(int64(1)))
			Expect(snap.LastCycle).To(Equal(3 * time.Second))
		})
	})

	Describe("Snapshot", func() {
		It("should report uptime", func() {
			time.Sleep(5 * time.Millisecond)
			Expect(m.Snapshot().Uptime).To(BeNumerically(">=", 5*time.Millisecond))
		})

		It("should return an empty project map with no pings", func() {
			Expect(m.Snapshot().Projects).To(BeEmpty())
		})
	})
})
