// Package storagetest holds the shared behavior specs every storage.Store
// implementation must pass.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/keepalive/internal/project"
	"github.com/angeloszaimis/keepalive/internal/storage"
)

// DescribeStore registers the conformance specs for a Store. newStore is
// called before every spec and the returned store is closed after it.
func DescribeStore(newStore func() storage.Store) {
	var (
		store storage.Store
		ctx   context.Context
		base  time.Time
	)

	newProject := func(id string, offset time.Duration, active bool) *project.Project {
		return &project.Project{
			ID:         id,
			Name:       "project " + id,
			URL:        "https://" + id + ".example.test",
			Credential: "secret-" + id,
			IsActive:   active,
			CreatedAt:  base.Add(offset),
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		base = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		store = newStore()
	})

	AfterEach(func() {
		if store == nil {
			return
		}
		Expect(store.Close()).To(Succeed())
		store = nil
	})

	Describe("Create and List", func() {
		It("should return projects in creation order", func() {
			Expect(store.Create(ctx, newProject("c", 0, true))).To(Succeed())
			Expect(store.Create(ctx, newProject("a", time.Second, true))).To(Succeed())
			Expect(store.Create(ctx, newProject("b", 2*time.Second, false))).To(Succeed())

			projects, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(projects)).To(Equal([]string{"c", "a", "b"}))
		})

		It("should keep creation order for identical timestamps", func() {
			for _, id := range []string{"z", "y", "x"} {
				Expect(store.Create(ctx, newProject(id, 0, true))).To(Succeed())
			}

			projects, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(projects)).To(Equal([]string{"z", "y", "x"}))
		})

		It("should round-trip every field", func() {
			Expect(store.Create(ctx, newProject("a", 0, true))).To(Succeed())

			p, err := store.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Name).To(Equal("project a"))
			Expect(p.URL).To(Equal("https://a.example.test"))
			Expect(p.Credential).To(Equal("secret-a"))
			Expect(p.IsActive).To(BeTrue())
			Expect(p.CreatedAt.Equal(base)).To(BeTrue())
			Expect(p.LastPingAt).To(BeNil())
			Expect(p.LastPingSuccess).To(BeNil())
			Expect(p.LastPingError).To(BeNil())
		})

		It("should return an empty list for an empty store", func() {
			projects, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(projects).To(BeEmpty())
		})
	})

	Describe("ListActive", func() {
		It("should return only active projects", func() {
			Expect(store.Create(ctx, newProject("a", 0, true))).To(Succeed())
			Expect(store.Create(ctx, newProject("b", time.Second, false))).To(Succeed())
			Expect(store.Create(ctx, newProject("c", 2*time.Second, true))).To(Succeed())

			projects, err := store.ListActive(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(projects)).To(Equal([]string{"a", "c"}))
		})
	})

	Describe("Get", func() {
		It("should return ErrNotFound for an unknown id", func() {
			_, err := store.Get(ctx, "missing")
			Expect(err).To(MatchError(project.ErrNotFound))
		})
	})

	Describe("Update", func() {
		BeforeEach(func() {
			Expect(store.Create(ctx, newProject("a", 0, true))).To(Succeed())
		})

		It("should change only the supplied fields", func() {
			name := "renamed"
			active := false

			p, err := store.Update(ctx, "a", project.Update{Name: &name, IsActive: &active})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Name).To(Equal("renamed"))
			Expect(p.IsActive).To(BeFalse())
			Expect(p.URL).To(Equal("https://a.example.test"))
			Expect(p.Credential).To(Equal("secret-a"))

			stored, err := store.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Name).To(Equal("renamed"))
			Expect(stored.IsActive).To(BeFalse())
		})

		It("should preserve ping history when deactivating", func() {
			Expect(store.RecordPing(ctx, project.PingResult{
				ProjectID: "a",
				Timestamp: base,
				Success:   true,
			})).To(Succeed())

			active := false
			p, err := store.Update(ctx, "a", project.Update{IsActive: &active})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.LastPingAt).NotTo(BeNil())
			Expect(*p.LastPingSuccess).To(BeTrue())
		})

		It("should return ErrNotFound for an unknown id", func() {
			name := "x"
			_, err := store.Update(ctx, "missing", project.Update{Name: &name})
			Expect(err).To(MatchError(project.ErrNotFound))
		})
	})

	Describe("Delete", func() {
		It("should remove the project", func() {
			Expect(store.Create(ctx, newProject("a", 0, true))).To(Succeed())
			Expect(store.Create(ctx, newProject("b", time.Second, true))).To(Succeed())

			Expect(store.Delete(ctx, "a")).To(Succeed())

			projects, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(projects)).To(Equal([]string{"b"}))
		})

		It("should return ErrNotFound for an unknown id", func() {
			Expect(store.Delete(ctx, "missing")).To(MatchError(project.ErrNotFound))
		})

		It("should return ErrNotFound when deleting twice", func() {
			Expect(store.Create(ctx, newProject("a", 0, true))).To(Succeed())
			Expect(store.Delete(ctx, "a")).To(Succeed())
			Expect(store.Delete(ctx, "a")).To(MatchError(project.ErrNotFound))
		})
	})

	Describe("RecordPing", func() {
		BeforeEach(func() {
			Expect(store.Create(ctx, newProject("a", 0, true))).To(Succeed())
		})

		It("should store a failed ping", func() {
			at := base.Add(time.Hour)
			Expect(store.RecordPing(ctx, project.PingResult{
				ProjectID: "a",
				Timestamp: at,
				Success:   false,
				Error:     "timeout",
			})).To(Succeed())

			p, err := store.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.LastPingAt.Equal(at)).To(BeTrue())
			Expect(*p.LastPingSuccess).To(BeFalse())
			Expect(*p.LastPingError).To(Equal("timeout"))
		})

		It("should clear the previous error on success", func() {
			Expect(store.RecordPing(ctx, project.PingResult{ProjectID: "a", Timestamp: base, Error: "timeout"})).To(Succeed())
			Expect(store.RecordPing(ctx, project.PingResult{ProjectID: "a", Timestamp: base.Add(time.Minute), Success: true})).To(Succeed())

			p, err := store.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(*p.LastPingSuccess).To(BeTrue())
			Expect(p.LastPingError).To(BeNil())
		})

		It("should return ErrNotFound for a deleted project", func() {
			Expect(store.Delete(ctx, "a")).To(Succeed())
			err := store.RecordPing(ctx, project.PingResult{ProjectID: "a", Timestamp: base, Success: true})
			Expect(err).To(MatchError(project.ErrNotFound))
		})

		It("should not tear records under concurrent writers", func() {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				i := i
				wg.Add(2)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					Expect(store.RecordPing(ctx, project.PingResult{
						ProjectID: "a",
						Timestamp: base.Add(time.Duration(i) * time.Second),
						Error:     fmt.Sprintf("unexpected_status:%d", 500+i),
					})).To(Succeed())
				}()
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					name := fmt.Sprintf("name-%d", i)
					_, err := store.Update(ctx, "a", project.Update{Name: &name})
					Expect(err).NotTo(HaveOccurred())
				}()
			}
			wg.Wait()

			p, err := store.Get(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Name).To(HavePrefix("name-"))
			Expect(*p.LastPingSuccess).To(BeFalse())
			Expect(*p.LastPingError).To(HavePrefix("unexpected_status:"))
			Expect(p.URL).To(Equal("https://a.example.test"))
		})
	})
}

func ids(projects []project.Project) []string {
	out := make([]string, 0, len(projects))
	for _, p := range projects {
		out = append(out, p.ID)
	}
	return out
}
