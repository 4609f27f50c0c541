package rules_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/dialhaven/recall/pkg/extract"
	"github.com/dialhaven/recall/pkg/extract/rules"
	"github.com/dialhaven/recall/pkg/thread"
)

func TestRules(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Rules Extractor Suite")
}

var _ = Describe("Rules Extractor", func() {
	var (
		ctx context.Context
		e   *rules.Extractor
	)

	callerTurn := func(seq uint64, text string) thread.Turn {
		return thread.Turn{Seq: seq, Role: thread.RoleCaller, Text: text}
	}

	agentTurn := func(seq uint64, text string) thread.Turn {
		return thread.Turn{Seq: seq, Role: thread.RoleAgent, Text: text}
	}

	candidate := func(extraction *extract.Extraction, recType, key string) *extract.Candidate {
		for i := range extraction.Candidates {
			c := &extraction.Candidates[i]
			if c.Type == recType && c.Key == key {
				return c
			}
		}
		return nil
	}

	BeforeEach(func() {
		ctx = context.Background()
		e = rules.NewExtractor()
	})

	It("rejects an empty slice", func() {
		_, err := e.Extract(ctx, nil)
		Expect(err).To(MatchError(extract.ErrNoTurns))
	})

	It("extracts an introduction", func() {
		extraction, err := e.Extract(ctx, []thread.Turn{
			callerTurn(1, "Hi, my name is Maria"),
		})
		Expect(err).NotTo(HaveOccurred())

		c := candidate(extraction, "person", "name")
		Expect(c).NotTo(BeNil())
		Expect(c.Value).To(Equal("Maria"))
		Expect(c.Scope).To(Equal("caller"))
	})

	It("extracts a stated preference", func() {
		extraction, err := e.Extract(ctx, []thread.Turn{
			callerTurn(1, "I prefer text messages over calls"),
		})
		Expect(err).NotTo(HaveOccurred())

		c := candidate(extraction, "preference", "stated_preference")
		Expect(c).NotTo(BeNil())
		Expect(c.Value).To(Equal("text messages over calls"))
	})

	It("extracts a callback time", func() {
		extraction, err := e.Extract(ctx, []thread.Turn{
			callerTurn(1, "The best time to call is after 5pm"),
		})
		Expect(err).NotTo(HaveOccurred())

		c := candidate(extraction, "preference", "callback_time")
		Expect(c).NotTo(BeNil())
		Expect(c.Value).To(Equal("after 5pm"))
	})

	It("extracts a callback commitment", func() {
		extraction, err := e.Extract(ctx, []thread.Turn{
			callerTurn(1, "Please call me back tomorrow morning"),
		})
		Expect(err).NotTo(HaveOccurred())

		c := candidate(extraction, "commitment", "callback")
		Expect(c).NotTo(BeNil())
		Expect(c.Value).To(Equal("tomorrow morning"))
	})

	It("extracts contact details", func() {
		extraction, err := e.Extract(ctx, []thread.Turn{
			callerTurn(1, "my number is 555-123-4567"),
			callerTurn(2, "and my email is maria@example.com"),
		})
		Expect(err).NotTo(HaveOccurred())

		phone := candidate(extraction, "person", "phone")
		Expect(phone).NotTo(BeNil())
		Expect(phone.Value).To(Equal("555-123-4567"))

		email := candidate(extraction, "person", "email")
		Expect(email).NotTo(BeNil())
		Expect(email.Value).To(Equal("maria@example.com"))
	})

	It("never extracts from agent turns", func() {
		extraction, err := e.Extract(ctx, []thread.Turn{
			agentTurn(1, "my name is Aria, your assistant"),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(extraction.Candidates).To(BeEmpty())
	})

	It("keeps the freshest statement for a repeated fact", func() {
		extraction, err := e.Extract(ctx, []thread.Turn{
			callerTurn(1, "my name is Maria"),
			callerTurn(2, "sorry, my name is Mariana"),
		})
		Expect(err).NotTo(HaveOccurred())

		c := candidate(extraction, "person", "name")
		Expect(c).NotTo(BeNil())
		Expect(c.Value).To(Equal("Mariana"))
	})

	It("summarizes the slice", func() {
		extraction, err := e.Extract(ctx, []thread.Turn{
			callerTurn(1, "my name is Maria"),
			agentTurn(2, "Nice to meet you, Maria."),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(extraction.Summary).To(ContainSubstring("2 turns"))
		Expect(extraction.Summary).To(ContainSubstring("name=Maria"))
	})

	It("produces a summary even when nothing matches", func() {
		extraction, err := e.Extract(ctx, []thread.Turn{
			callerTurn(1, "just checking on my order"),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(extraction.Candidates).To(BeEmpty())
		Expect(extraction.Summary).NotTo(BeEmpty())
	})
})
