package store

import (
	"sort"
	"strings"
)

// Tokenize lowercases text and splits it on non-alphanumeric runes.
// All backends share it so lexical ranking behaves identically whether the
// records came from a map, SQLite, or Postgres.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		isDigit := r >= '0' && r <= '9'
		isLower := r >= 'a' && r <= 'z'
		return !isDigit && !isLower
	})
}

// Rank orders records by lexical overlap with the query text and truncates
// to limit. Records with no overlapping token are dropped. Ties break on
// UpdatedAt, newest first.
func Rank(records []*Record, text string, limit int) []*Record {
	queryTokens := Tokenize(text)
	if len(queryTokens) == 0 {
		return []*Record{}
	}

	type scored struct {
		rec   *Record
		score int
	}

	ranked := make([]scored, 0, len(records))
	for _, rec := range records {
		s := overlap(queryTokens, rec)
		if s == 0 {
			continue
		}
		ranked = append(ranked, scored{rec: rec, score: s})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].rec.UpdatedAt.After(ranked[j].rec.UpdatedAt)
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	result := make([]*Record, len(ranked))
	for i, s := range ranked {
		result[i] = s.rec
	}

	return result
}

// overlap counts how many query tokens appear in the record's key or value.
func overlap(queryTokens []string, rec *Record) int {
	recTokens := make(map[string]struct{})
	for _, t := range Tokenize(rec.Key) {
		recTokens[t] = struct{}{}
	}
	for _, t := range Tokenize(rec.Value) {
		recTokens[t] = struct{}{}
	}

	count := 0
	for _, t := range queryTokens {
		if _, ok := recTokens[t]; ok {
			count++
		}
	}

	return count
}
