package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/dialhaven/recall/pkg/store"
	"github.com/dialhaven/recall/pkg/store/sqlite"
	"github.com/dialhaven/recall/pkg/tenant"
)

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		driver *sqlite.Driver
	)

	const (
		tenantA = tenant.ID("tenant-a")
		tenantB = tenant.ID("tenant-b")
		caller  = tenant.CallerID("+15551234567")
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

		var err error
		driver, err = sqlite.NewDriver(":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	Describe("NewDriver", func() {
		It("creates a driver with a file database", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "test.db")

			d, err := sqlite.NewDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Put", func() {
		It("stores a record with authoritative timestamps", func() {
			saved, err := driver.Put(ctx, callerRec(tenantA, caller, "name", "Maria"))
			Expect(err).NotTo(HaveOccurred())

			Expect(saved.CreatedAt).NotTo(BeZero())
			Expect(saved.UpdatedAt).To(BeTemporally("~", saved.CreatedAt, time.Second))
		})

		It("upserts by scope key, preserving created_at", func() {
			first, err := driver.Put(ctx, callerRec(tenantA, caller, "name", "Maria"))
			Expect(err).NotTo(HaveOccurred())

			second, err := driver.Put(ctx, callerRec(tenantA, caller, "name", "Mariana"))
			Expect(err).NotTo(HaveOccurred())

			Expect(second.Value).To(Equal("Mariana"))
			Expect(second.CreatedAt).To(BeTemporally("~", first.CreatedAt, time.Second))

			records, err := driver.Get(ctx, store.Query{TenantID: tenantA, CallerID: caller})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
		})

		It("keeps records for distinct callers separate", func() {
			_, err := driver.Put(ctx, callerRec(tenantA, caller, "name", "Maria"))
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.Put(ctx, callerRec(tenantA, tenant.CallerID("+15559876543"), "name", "Jordan"))
			Expect(err).NotTo(HaveOccurred())

			records, err := driver.Get(ctx, store.Query{TenantID: tenantA, CallerID: caller})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Value).To(Equal("Maria"))
		})

		It("rejects a record without a tenant", func() {
			_, err := driver.Put(ctx, callerRec("", caller, "name", "Maria"))
			Expect(err).To(MatchError(store.ErrMissingTenant))
		})

		It("rejects a nil record", func() {
			_, err := driver.Put(ctx, nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Get", func() {
		It("rejects an unscoped query", func() {
			_, err := driver.Get(ctx, store.Query{})
			Expect(err).To(MatchError(store.ErrMissingTenant))
		})

		It("returns an empty slice when nothing matches", func() {
			records, err := driver.Get(ctx, store.Query{TenantID: tenantA})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("never crosses tenants", func() {
			_, err := driver.Put(ctx, callerRec(tenantB, caller, "name", "Maria"))
			Expect(err).NotTo(HaveOccurred())

			records, err := driver.Get(ctx, store.Query{TenantID: tenantA, CallerID: caller})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("shows tenant-scoped records to every caller", func() {
			_, err := driver.Put(ctx, &store.Record{
				TenantID: tenantA,
				Type:     store.TypeRule,
				Key:      "hours",
				Value:    "9-5 weekdays",
				Scope:    store.ScopeTenant,
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.Put(ctx, callerRec(tenantA, caller, "name", "Maria"))
			Expect(err).NotTo(HaveOccurred())

			records, err := driver.Get(ctx, store.Query{TenantID: tenantA, CallerID: caller})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))

			records, err = driver.Get(ctx, store.Query{TenantID: tenantA})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Key).To(Equal("hours"))
		})

		It("filters by type and hides snapshots by default", func() {
			_, err := driver.Put(ctx, callerRec(tenantA, caller, "order", "two pizzas"))
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.Put(ctx, &store.Record{
				TenantID: tenantA,
				CallerID: caller,
				Type:     store.TypePerson,
				Key:      "name",
				Value:    "Maria",
				Scope:    store.ScopeCaller,
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.Put(ctx, &store.Record{
				TenantID: tenantA,
				CallerID: caller,
				Type:     store.TypeThreadSnapshot,
				Key:      "thread-1",
				Value:    "{}",
				Scope:    store.ScopeCaller,
			})
			Expect(err).NotTo(HaveOccurred())

			records, err := driver.Get(ctx, store.Query{TenantID: tenantA, CallerID: caller})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))

			records, err = driver.Get(ctx, store.Query{
				TenantID: tenantA,
				CallerID: caller,
				Types:    []store.Type{store.TypePerson},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Key).To(Equal("name"))

			records, err = driver.Get(ctx, store.Query{
				TenantID: tenantA,
				CallerID: caller,
				Types:    []store.Type{store.TypeThreadSnapshot},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
		})

		It("matches key prefixes literally, including LIKE wildcards", func() {
			_, err := driver.Put(ctx, callerRec(tenantA, caller, "rate_standard", "50"))
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.Put(ctx, callerRec(tenantA, caller, "rateXstandard", "75"))
			Expect(err).NotTo(HaveOccurred())

			records, err := driver.Get(ctx, store.Query{
				TenantID:  tenantA,
				CallerID:  caller,
				KeyPrefix: "rate_",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Key).To(Equal("rate_standard"))
		})

		It("excludes records past their TTL", func() {
			expires := time.Now().Add(50 * time.Millisecond)
			rec := callerRec(tenantA, caller, "callback", "tomorrow morning")
			rec.ExpiresAt = &expires

			_, err := driver.Put(ctx, rec)
			Expect(err).NotTo(HaveOccurred())

			records, err := driver.Get(ctx, store.Query{TenantID: tenantA, CallerID: caller})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))

			Eventually(func() int {
				records, err := driver.Get(ctx, store.Query{TenantID: tenantA, CallerID: caller})
				Expect(err).NotTo(HaveOccurred())
				return len(records)
			}, 2*time.Second).Should(BeZero())
		})

		It("keeps records with a future TTL", func() {
			expires := time.Now().Add(time.Hour)
			rec := callerRec(tenantA, caller, "callback", "tomorrow morning")
			rec.ExpiresAt = &expires

			_, err := driver.Put(ctx, rec)
			Expect(err).NotTo(HaveOccurred())

			records, err := driver.Get(ctx, store.Query{TenantID: tenantA, CallerID: caller})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].ExpiresAt).NotTo(BeNil())
		})
	})

	Describe("Search", func() {
		It("ranks records by token overlap", func() {
			_, err := driver.Put(ctx, callerRec(tenantA, caller, "order", "two large pepperoni pizzas"))
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.Put(ctx, callerRec(tenantA, caller, "callback", "prefers morning calls"))
			Expect(err).NotTo(HaveOccurred())

			records, err := driver.Search(ctx, store.SearchQuery{
				TenantID: tenantA,
				CallerID: caller,
				Text:     "pepperoni pizzas",
				Limit:    5,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Key).To(Equal("order"))
		})

		It("rejects an unscoped search", func() {
			_, err := driver.Search(ctx, store.SearchQuery{Text: "pizzas"})
			Expect(err).To(MatchError(store.ErrMissingTenant))
		})
	})

	Describe("PurgeTenant", func() {
		It("hard-deletes only the named tenant", func() {
			_, err := driver.Put(ctx, callerRec(tenantA, caller, "name", "Maria"))
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.Put(ctx, callerRec(tenantA, caller, "order", "two pizzas"))
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.Put(ctx, callerRec(tenantB, caller, "name", "Jordan"))
			Expect(err).NotTo(HaveOccurred())

			purged, err := driver.PurgeTenant(ctx, tenantA)
			Expect(err).NotTo(HaveOccurred())
			Expect(purged).To(Equal(int64(2)))

			records, err := driver.Get(ctx, store.Query{TenantID: tenantA, CallerID: caller})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())

			records, err = driver.Get(ctx, store.Query{TenantID: tenantB, CallerID: caller})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
		})

		It("rejects an empty tenant", func() {
			_, err := driver.PurgeTenant(ctx, "")
			Expect(err).To(MatchError(store.ErrMissingTenant))
		})
	})
})
