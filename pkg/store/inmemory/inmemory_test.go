package inmemory_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/dialhaven/recall/pkg/store"
	"github.com/dialhaven/recall/pkg/store/inmemory"
	"github.com/dialhaven/recall/pkg/tenant"
)

var _ = Describe("InMemory Driver", func() {
	var (
		ctx context.Context
		d   *inmemory.Driver
	)

	callerRec := func(tenantID tenant.ID, callerID tenant.CallerID, key, value string) *store.Record {
		return &store.Record{
			TenantID: tenantID,
			CallerID: callerID,
			Type:     store.TypeFact,
			Key:      key,
			Value:    value,
			Scope:    store.ScopeCaller,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		d = inmemory.NewDriver()
	})

	AfterEach(func() {
		Expect(d.Close()).To(Succeed())
	})

	Describe("Put", func() {
		It("stores a record and stamps timestamps", func() {
			saved, err := d.Put(ctx, callerRec("tenant-a", "+1555", "name", "Maria"))
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.CreatedAt).NotTo(BeZero())
			Expect(saved.UpdatedAt).To(Equal(saved.CreatedAt))
		})

		It("upserts by scope key and preserves CreatedAt", func() {
			first, err := d.Put(ctx, callerRec("tenant-a", "+1555", "name", "Maria"))
			Expect(err).NotTo(HaveOccurred())

			second, err := d.Put(ctx, callerRec("tenant-a", "+1555", "name", "Maria L."))
			Expect(err).NotTo(HaveOccurred())
			Expect(second.CreatedAt).To(Equal(first.CreatedAt))
			Expect(second.Value).To(Equal("Maria L."))

			records, err := d.Get(ctx, store.Query{TenantID: "tenant-a", CallerID: "+1555"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Value).To(Equal("Maria L."))
		})

		It("keeps same-key records distinct across callers", func() {
			_, err := d.Put(ctx, callerRec("tenant-a", "+1555", "name", "Maria"))
			Expect(err).NotTo(HaveOccurred())
			_, err = d.Put(ctx, callerRec("tenant-a", "+1666", "name", "Omar"))
			Expect(err).NotTo(HaveOccurred())

			records, err := d.Get(ctx, store.Query{TenantID: "tenant-a", CallerID: "+1555"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Value).To(Equal("Maria"))
		})

		It("rejects a record without a tenant", func() {
			rec := callerRec("", "+1555", "name", "Maria")
			_, err := d.Put(ctx, rec)
			Expect(err).To(MatchError(store.ErrMissingTenant))
		})

		It("rejects a nil record", func() {
			_, err := d.Put(ctx, nil)
			Expect(err).To(HaveOccurred())
		})

		It("returns a copy callers cannot use to mutate the store", func() {
			saved, err := d.Put(ctx, callerRec("tenant-a", "+1555", "name", "Maria"))
			Expect(err).NotTo(HaveOccurred())

			saved.Value = "mutated"

			records, err := d.Get(ctx, store.Query{TenantID: "tenant-a", CallerID: "+1555"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records[0].Value).To(Equal("Maria"))
		})
	})

	Describe("Get", func() {
		It("rejects an unscoped query", func() {
			_, err := d.Get(ctx, store.Query{})
			Expect(err).To(MatchError(store.ErrMissingTenant))
		})

		It("returns an empty slice when nothing matches", func() {
			records, err := d.Get(ctx, store.Query{TenantID: "tenant-a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("isolates tenants", func() {
			_, err := d.Put(ctx, callerRec("tenant-a", "+1555", "name", "Maria"))
			Expect(err).NotTo(HaveOccurred())

			records, err := d.Get(ctx, store.Query{TenantID: "tenant-b", CallerID: "+1555"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("includes tenant-scoped records in a caller's view", func() {
			shared := &store.Record{
				TenantID: "tenant-a",
				Type:     store.TypeRule,
				Key:      "hours",
				Value:    "9-5",
				Scope:    store.ScopeTenant,
			}
			_, err := d.Put(ctx, shared)
			Expect(err).NotTo(HaveOccurred())
			_, err = d.Put(ctx, callerRec("tenant-a", "+1555", "name", "Maria"))
			Expect(err).NotTo(HaveOccurred())

			records, err := d.Get(ctx, store.Query{TenantID: "tenant-a", CallerID: "+1555"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
		})

		It("excludes expired records", func() {
			past := time.Now().Add(-time.Minute)
			rec := callerRec("tenant-a", "+1555", "temp", "short-lived")
			rec.ExpiresAt = &past

			_, err := d.Put(ctx, rec)
			Expect(err).NotTo(HaveOccurred())

			records, err := d.Get(ctx, store.Query{TenantID: "tenant-a", CallerID: "+1555"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("keeps records whose TTL has not passed", func() {
			future := time.Now().Add(time.Hour)
			rec := callerRec("tenant-a", "+1555", "temp", "still here")
			rec.ExpiresAt = &future

			_, err := d.Put(ctx, rec)
			Expect(err).NotTo(HaveOccurred())

			records, err := d.Get(ctx, store.Query{TenantID: "tenant-a", CallerID: "+1555"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
		})
	})

	Describe("Search", func() {
		It("ranks records lexically", func() {
			_, err := d.Put(ctx, callerRec("tenant-a", "+1555", "callback_time", "prefers morning calls"))
			Expect(err).NotTo(HaveOccurred())
			_, err = d.Put(ctx, callerRec("tenant-a", "+1555", "name", "Maria"))
			Expect(err).NotTo(HaveOccurred())

			records, err := d.Search(ctx, store.SearchQuery{
				TenantID: "tenant-a",
				CallerID: "+1555",
				Text:     "when to call in the morning",
				Limit:    10,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Key).To(Equal("callback_time"))
		})

		It("rejects an unscoped search", func() {
			_, err := d.Search(ctx, store.SearchQuery{Text: "anything"})
			Expect(err).To(MatchError(store.ErrMissingTenant))
		})
	})

	Describe("PurgeTenant", func() {
		It("removes only the named tenant's records", func() {
			_, err := d.Put(ctx, callerRec("tenant-a", "+1555", "name", "Maria"))
			Expect(err).NotTo(HaveOccurred())
			_, err = d.Put(ctx, callerRec("tenant-a", "+1666", "name", "Omar"))
			Expect(err).NotTo(HaveOccurred())
			_, err = d.Put(ctx, callerRec("tenant-b", "+1555", "name", "Ana"))
			Expect(err).NotTo(HaveOccurred())

			purged, err := d.PurgeTenant(ctx, "tenant-a")
			Expect(err).NotTo(HaveOccurred())
			Expect(purged).To(Equal(int64(2)))

			records, err := d.Get(ctx, store.Query{TenantID: "tenant-b", CallerID: "+1555"})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
		})

		It("rejects an empty tenant", func() {
			_, err := d.PurgeTenant(ctx, "")
			Expect(err).To(MatchError(store.ErrMissingTenant))
		})
	})
})
