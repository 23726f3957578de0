package registry_test

import (
	"context"
	"regexp"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/keepalive/internal/project"
	"github.com/angeloszaimis/keepalive/internal/registry"
	"github.com/angeloszaimis/keepalive/internal/storage/memory"
)

const validURL = "https://abcdefghijklmnopqrst.supabase.co"

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

var _ = Describe("Registry", func() {
	var (
		reg *registry.Registry
		ctx context.Context
		now time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		reg = registry.New(memory.New(), registry.WithClock(func() time.Time { return now }))
	})

	Describe("Add", func() {
		It("should create an active project with an id", func() {
			p, err := reg.Add(ctx, "primary", validURL, "anon-key")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.ID).NotTo(BeEmpty())
			Expect(p.Name).To(Equal("primary"))
			Expect(p.URL).To(Equal(validURL))
			Expect(p.Credential).To(Equal("anon-key"))
			Expect(p.IsActive).To(BeTrue())
			Expect(p.CreatedAt).To(Equal(now))
			Expect(p.LastPingAt).To(BeNil())
		})

		It("should assign unique ids", func() {
			a, err := reg.Add(ctx, "a", validURL, "key")
			Expect(err).NotTo(HaveOccurred())
			b, err := reg.Add(ctx, "b", validURL, "key")
			Expect(err).NotTo(HaveOccurred())
			Expect(a.ID).NotTo(Equal(b.ID))
		})

		It("should trim surrounding whitespace", func() {
			p, err := reg.Add(ctx, "  primary ", " "+validURL+" ", " key ")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Name).To(Equal("primary"))
			Expect(p.URL).To(Equal(validURL))
			Expect(p.Credential).To(Equal("key"))
		})

		DescribeTable("should reject invalid input without writing",
			func(name, url, credential, field string) {
				_, err := reg.Add(ctx, name, url, credential)
				Expect(err).To(MatchError(project.ErrValidation))
				Expect(err.Error()).To(ContainSubstring(field))

				projects, err := reg.List(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(projects).To(BeEmpty())
			},
			Entry("empty name", "", validURL, "key", "name"),
			Entry("whitespace name", "   ", validURL, "key", "name"),
			Entry("empty url", "x", "", "key", "connection_url"),
			Entry("bad url", "x", "bad-url", "secret", "connection_url"),
			Entry("http scheme", "x", "http://abcdefghijklmnopqrst.supabase.co", "key", "connection_url"),
			Entry("foreign host", "x", "https://abcdefghijklmnopqrst.example.com", "key", "connection_url"),
			Entry("short project ref", "x", "https://abc.supabase.co", "key", "connection_url"),
			Entry("empty credential", "x", validURL, "", "credential"),
			Entry("whitespace credential", "x", validURL, " \t", "credential"),
		)

		It("should leave the listing unchanged after a rejected add", func() {
			existing, err := reg.Add(ctx, "existing", validURL, "key")
			Expect(err).NotTo(HaveOccurred())

			_, err = reg.Add(ctx, "x", "bad-url", "secret")
			Expect(err).To(MatchError(project.ErrValidation))

			projects, err := reg.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(projects).To(HaveLen(1))
			Expect(projects[0].ID).To(Equal(existing.ID))
		})

		It("should accept a custom URL pattern", func() {
			custom := registry.New(memory.New(), registry.WithURLPattern(regexp.MustCompile(`^http://127\.0\.0\.1:\d+$`)))

			_, err := custom.Add(ctx, "local", "http://127.0.0.1:5432", "key")
			Expect(err).NotTo(HaveOccurred())

			_, err = custom.Add(ctx, "hosted", validURL, "key")
			Expect(err).To(MatchError(project.ErrValidation))
		})
	})

	Describe("List", func() {
		It("should return projects in creation order", func() {
			for _, name := range []string{"c", "a", "b"} {
				_, err := reg.Add(ctx, name, validURL, "key")
				Expect(err).NotTo(HaveOccurred())
			}

			projects, err := reg.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(projects).To(HaveLen(3))
			Expect(projects[0].Name).To(Equal("c"))
			Expect(projects[1].Name).To(Equal("a"))
			Expect(projects[2].Name).To(Equal("b"))
		})
	})

	Describe("Update", func() {
		var existing *project.Project

		BeforeEach(func() {
			var err error
			existing, err = reg.Add(ctx, "primary", validURL, "key")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should apply partial fields", func() {
			p, err := reg.Update(ctx, existing.ID, project.Update{Name: strPtr("renamed")})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Name).To(Equal("renamed"))
			Expect(p.URL).To(Equal(validURL))
			Expect(p.ID).To(Equal(existing.ID))
			Expect(p.CreatedAt).To(Equal(existing.CreatedAt))
		})

		It("should be visible to the next List", func() {
			_, err := reg.Update(ctx, existing.ID, project.Update{IsActive: boolPtr(false)})
			Expect(err).NotTo(HaveOccurred())

			projects, err := reg.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(projects[0].IsActive).To(BeFalse())

			active, err := reg.ListActive(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeEmpty())
		})

		It("should return the project unchanged for an empty update", func() {
			p, err := reg.Update(ctx, existing.ID, project.Update{})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Name).To(Equal("primary"))
		})

		It("should return ErrNotFound for an unknown id", func() {
			_, err := reg.Update(ctx, "missing", project.Update{Name: strPtr("x")})
			Expect(err).To(MatchError(project.ErrNotFound))
		})

		It("should return ErrNotFound for an empty update on an unknown id", func() {
			_, err := reg.Update(ctx, "missing", project.Update{})
			Expect(err).To(MatchError(project.ErrNotFound))
		})

		It("should reject a bad URL and keep the old one", func() {
			_, err := reg.Update(ctx, existing.ID, project.Update{URL: strPtr("bad-url")})
			Expect(err).To(MatchError(project.ErrValidation))

			p, err := reg.Get(ctx, existing.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.URL).To(Equal(validURL))
		})

		It("should reject a blank name or credential", func() {
			_, err := reg.Update(ctx, existing.ID, project.Update{Name: strPtr("  ")})
			Expect(err).To(MatchError(project.ErrValidation))

			_, err = reg.Update(ctx, existing.ID, project.Update{Credential: strPtr("")})
			Expect(err).To(MatchError(project.ErrValidation))
		})
	})

	Describe("Delete", func() {
		It("should remove the project", func() {
			p, err := reg.Add(ctx, "primary", validURL, "key")
			Expect(err).NotTo(HaveOccurred())

			Expect(reg.Delete(ctx, p.ID)).To(Succeed())

			projects, err := reg.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(projects).To(BeEmpty())
		})

		It("should return ErrNotFound for an unknown id", func() {
			Expect(reg.Delete(ctx, "missing")).To(MatchError(project.ErrNotFound))
		})
	})

	Describe("RecordPing", func() {
		It("should fold the result into the project", func() {
			p, err := reg.Add(ctx, "primary", validURL, "key")
			Expect(err).NotTo(HaveOccurred())

			Expect(reg.RecordPing(ctx, project.PingResult{
				ProjectID: p.ID,
				Timestamp: now,
				Success:   false,
				Error:     "auth_error",
			})).To(Succeed())

			stored, err := reg.Get(ctx, p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*stored.LastPingSuccess).To(BeFalse())
			Expect(*stored.LastPingError).To(Equal("auth_error"))
		})
	})
})
