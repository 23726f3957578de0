package memory_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/keepalive/internal/project"
	"github.com/angeloszaimis/keepalive/internal/storage"
	"github.com/angeloszaimis/keepalive/internal/storage/memory"
	"github.com/angeloszaimis/keepalive/internal/storage/storagetest"
)

var _ = Describe("Memory store", func() {
	storagetest.DescribeStore(func() storage.Store {
		return memory.New()
	})

	It("should not share state with returned projects", func() {
		ctx := context.Background()
		store := memory.New()
		Expect(store.Create(ctx, &project.Project{ID: "a", Name: "a", IsActive: true, CreatedAt: time.Now()})).To(Succeed())
		Expect(store.RecordPing(ctx, project.PingResult{ProjectID: "a", Timestamp: time.Now(), Error: "timeout"})).To(Succeed())

		p, err := store.Get(ctx, "a")
		Expect(err).NotTo(HaveOccurred())
		*p.LastPingError = "tampered"
		p.Name = "tampered"

		again, err := store.Get(ctx, "a")
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Name).To(Equal("a"))
		Expect(*again.LastPingError).To(Equal("timeout"))
	})
})
