package store_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/dialhaven/recall/pkg/store"
)

var _ = Describe("Tokenize", func() {
	It("lowercases and splits on non-alphanumerics", func() {
		Expect(store.Tokenize("Call me Tuesday at 9AM!")).To(Equal([]string{"call", "me", "tuesday", "at", "9am"}))
	})

	It("returns nothing for punctuation-only input", func() {
		Expect(store.Tokenize("?!... ---")).To(BeEmpty())
	})
})

var _ = Describe("Rank", func() {
	rec := func(key, value string, updated time.Time) *store.Record {
		return &store.Record{
			TenantID:  "tenant-a",
			Key:       key,
			Value:     value,
			UpdatedAt: updated,
		}
	}

	It("orders by token overlap", func() {
		now := time.Now()
		records := []*store.Record{
			rec("callback_time", "prefers morning calls", now),
			rec("name", "Maria", now),
			rec("order_note", "morning delivery, call first", now),
		}

		ranked := store.Rank(records, "morning call", 10)
		Expect(ranked).To(HaveLen(2))
		Expect(ranked[0].Key).To(Equal("order_note"))
		Expect(ranked[1].Key).To(Equal("callback_time"))
	})

	It("drops records with no overlap", func() {
		records := []*store.Record{rec("name", "Maria", time.Now())}
		Expect(store.Rank(records, "delivery window", 10)).To(BeEmpty())
	})

	It("breaks ties by recency, newest first", func() {
		now := time.Now()
		records := []*store.Record{
			rec("old_note", "likes coffee", now.Add(-time.Hour)),
			rec("new_note", "ordered coffee", now),
		}

		ranked := store.Rank(records, "coffee", 10)
		Expect(ranked).To(HaveLen(2))
		Expect(ranked[0].Key).To(Equal("new_note"))
	})

	It("truncates to the limit", func() {
		now := time.Now()
		records := []*store.Record{
			rec("a", "coffee", now),
			rec("b", "coffee", now),
			rec("c", "coffee", now),
		}
		Expect(store.Rank(records, "coffee", 2)).To(HaveLen(2))
	})

	It("returns nothing for an unmatchable query", func() {
		records := []*store.Record{rec("a", "coffee", time.Now())}
		Expect(store.Rank(records, "!!!", 10)).To(BeEmpty())
	})
})
