package postgres_test

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/dialhaven/recall/pkg/store"
	"github.com/dialhaven/recall/pkg/store/postgres"
	"github.com/dialhaven/recall/pkg/tenant"
)

// connStr reads the test database URL from the environment, skipping the
// suite when none is configured.
func connStr() string {
	url := os.Getenv("RECALL_TEST_POSTGRES_URL")
	if url == "" {
		Skip("RECALL_TEST_POSTGRES_URL not set, skipping PostgreSQL tests")
	}
	return url
}

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		driver *postgres.Driver
	)

	const (
		tenantA = tenant.ID("pgtest-tenant-a")
		tenantB = tenant.ID("pgtest-tenant-b")
		caller  = tenant.CallerID("+15551234567")
	)

	callerRec := func(tenantID tenant.ID, key, value string) *store.Record {
		return &store.Record{
			TenantID: tenantID,
			CallerID: caller,
			Type:     store.TypeFact,
			Key:      key,
			Value:    value,
			Scope:    store.ScopeCaller,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		driver, err = postgres.NewDriver(ctx, connStr())
		Expect(err).NotTo(HaveOccurred())

		// The database is shared, so start each spec from a clean slate.
		_, err = driver.PurgeTenant(ctx, tenantA)
		Expect(err).NotTo(HaveOccurred())
		_, err = driver.PurgeTenant(ctx, tenantB)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.PurgeTenant(ctx, tenantA)
			driver.PurgeTenant(ctx, tenantB)
			driver.Close()
		}
	})

	Describe("Put", func() {
		It("upserts by scope key, preserving created_at", func() {
			first, err := driver.Put(ctx, callerRec(tenantA, "name", "Maria"))
			Expect(err).NotTo(HaveOccurred())

			second, err := driver.Put(ctx, callerRec(tenantA, "name", "Mariana"))
			Expect(err).NotTo(HaveOccurred())

			Expect(second.Value).To(Equal("Mariana"))
			Expect(second.CreatedAt).To(BeTemporally("~", first.CreatedAt, time.Second))

			records, err := driver.Get(ctx, store.Query{TenantID: tenantA, CallerID: caller})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
		})

		It("rejects a record without a tenant", func() {
			_, err := driver.Put(ctx, &store.Record{
				CallerID: caller,
				Type:     store.TypeFact,
				Key:      "name",
				Value:    "Maria",
				Scope:    store.ScopeCaller,
			})
			Expect(err).To(MatchError(store.ErrMissingTenant))
		})
	})

	Describe("Get", func() {
		It("never crosses tenants", func() {
			_, err := driver.Put(ctx, callerRec(tenantB, "name", "Jordan"))
			Expect(err).NotTo(HaveOccurred())

			records, err := driver.Get(ctx, store.Query{TenantID: tenantA, CallerID: caller})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("filters by type and hides snapshots by default", func() {
			_, err := driver.Put(ctx, callerRec(tenantA, "order", "two pizzas"))
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
				Types:    []store.Type{store.TypePerson, store.TypeFact},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))

			records, err = driver.Get(ctx, store.Query{
				TenantID: tenantA,
				CallerID: caller,
				Types:    []store.Type{store.TypeThreadSnapshot},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
		})

		It("matches key prefixes literally", func() {
			_, err := driver.Put(ctx, callerRec(tenantA, "rate_standard", "50"))
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.Put(ctx, callerRec(tenantA, "rateXstandard", "75"))
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
			rec := callerRec(tenantA, "callback", "tomorrow morning")
			rec.ExpiresAt = &expires

			_, err := driver.Put(ctx, rec)
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() int {
				records, err := driver.Get(ctx, store.Query{TenantID: tenantA, CallerID: caller})
				Expect(err).NotTo(HaveOccurred())
				return len(records)
			}, 2*time.Second).Should(BeZero())
		})
	})

	Describe("Search", func() {
		It("ranks records by token overlap", func() {
			_, err := driver.Put(ctx, callerRec(tenantA, "order", "two large pepperoni pizzas"))
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.Put(ctx, callerRec(tenantA, "callback", "prefers morning calls"))
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
	})

	Describe("PurgeTenant", func() {
		It("hard-deletes only the named tenant", func() {
			_, err := driver.Put(ctx, callerRec(tenantA, "name", "Maria"))
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.Put(ctx, callerRec(tenantA, "order", "two pizzas"))
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.Put(ctx, callerRec(tenantB, "name", "Jordan"))
			Expect(err).NotTo(HaveOccurred())

			purged, err := driver.PurgeTenant(ctx, tenantA)
			Expect(err).NotTo(HaveOccurred())
			Expect(purged).To(Equal(int64(2)))

			records, err := driver.Get(ctx, store.Query{TenantID: tenantB, CallerID: caller})
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
		})

		It("rejects an empty tenant", func() {
			_, err := driver.PurgeTenant(ctx, "")
			Expect(err).To(MatchError(store.ErrMissingTenant))
		})
	})
})
