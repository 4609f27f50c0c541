// Package rules provides a deterministic, regex-based extractor. It is the
// local-dev and test story; production deployments point the consolidation
// engine at the LLM extractor instead. It only catches the utterance shapes
// voice agents see constantly (introductions, preferences, callback
// commitments); everything else survives only in the summary.
package rules

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dialhaven/recall/pkg/extract"
	"github.com/dialhaven/recall/pkg/thread"
)

// rule binds a pattern to the candidate it produces. The first capture
// group becomes the value.
type rule struct {
	pattern *regexp.Regexp
	recType string
	key     string
}

var rules = []rule{
	{
		pattern: regexp.MustCompile(`(?i)\bmy name is ([A-Za-z][A-Za-z'-]*)`),
		recType: "person",
		key:     "name",
	},
	{
		pattern: regexp.MustCompile(`(?i)\bname is ([A-Za-z][A-Za-z'-]*)`),
		recType: "person",
		key:     "name",
	},
	{
		pattern: regexp.MustCompile(`(?i)\bthis is ([A-Z][a-z]+) calling\b`),
		recType: "person",
		key:     "name",
	},
	{
		pattern: regexp.MustCompile(`(?i)\bi prefer ([^.!?\n]+)`),
		recType: "preference",
		key:     "stated_preference",
	},
	{
		pattern: regexp.MustCompile(`(?i)\bbest time to (?:call|reach me) is ([^.!?\n]+)`),
		recType: "preference",
		key:     "callback_time",
	},
	{
		pattern: regexp.MustCompile(`(?i)\bcall (?:me )?back ([^.!?\n]+)`),
		recType: "commitment",
		key:     "callback",
	},
	{
		pattern: regexp.MustCompile(`(?i)\bmy (?:phone )?number is (\+?[\d\s().-]{7,})`),
		recType: "person",
		key:     "phone",
	},
	{
		pattern: regexp.MustCompile(`(?i)\bmy email is ([^\s]+@[^\s.]+\.[^\s]+)`),
		recType: "person",
		key:     "email",
	},
}

// Extractor implements extract.Extractor with fixed rules. Only caller
// turns are scanned; agent turns never originate caller facts.
type Extractor struct{}

// NewExtractor creates a rule-based extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract scans the turns against every rule. Later matches win for the
// same (type, key) so the freshest statement survives, mirroring the
// last-writer-wins semantics of the store.
func (e *Extractor) Extract(_ context.Context, turns []thread.Turn) (*extract.Extraction, error) {
	if len(turns) == 0 {
		return nil, extract.ErrNoTurns
	}

	found := make(map[string]extract.Candidate)
	order := make([]string, 0)

	for _, turn := range turns {
		if turn.Role != thread.RoleCaller {
			continue
		}

		for _, r := range rules {
			m := r.pattern.FindStringSubmatch(turn.Text)
			if m == nil {
				continue
			}

			id := r.recType + "/" + r.key
			if _, seen := found[id]; !seen {
				order = append(order, id)
			}
			found[id] = extract.Candidate{
				Type:  r.recType,
				Key:   r.key,
				Value: strings.TrimSpace(m[1]),
				Scope: "caller",
			}
		}
	}

	candidates := make([]extract.Candidate, 0, len(found))
	for _, id := range order {
		candidates = append(candidates, found[id])
	}

	return &extract.Extraction{
		Candidates: candidates,
		Summary:    summarize(turns, candidates),
	}, nil
}

// Close is a no-op for the rule-based extractor.
func (e *Extractor) Close() error {
	return nil
}

// summarize builds a terse recap from the turn count and the facts that
// were pulled out. Prose quality is the LLM extractor's job.
func summarize(turns []thread.Turn, candidates []extract.Candidate) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Earlier in this conversation (%d turns consolidated)", len(turns))

	if len(candidates) > 0 {
		parts := make([]string, 0, len(candidates))
		for _, c := range candidates {
			parts = append(parts, fmt.Sprintf("%s=%s", c.Key, c.Value))
		}
		fmt.Fprintf(&b, ": noted %s", strings.Join(parts, ", "))
	}

	b.WriteString(".")

	return b.String()
}

var _ extract.Extractor = (*Extractor)(nil)
