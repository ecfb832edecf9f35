// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package match scores symbol names against fuzzy queries.
//
// Scoring is rank-based rather than weighted: exact beats prefix beats
// substring beats small-edit-distance. Ties inside a rank are broken by
// the index, not here, so scoring stays a pure function of the two
// strings.
package match

import "strings"

// Rank orders match quality. Lower is better.
type Rank int

const (
	// RankExact means the name equals the query, case-insensitively.
	RankExact Rank = iota

	// RankPrefix means the name starts with the query.
	RankPrefix

	// RankSubstring means the query appears inside the name.
	RankSubstring

	// RankFuzzy means the name is within a small edit distance of
	// the query.
	RankFuzzy

	// RankNone means no match.
	RankNone
)

// maxEditDistance bounds how different a name may be from the query
// and still rank as fuzzy.
const maxEditDistance = 3

// Matcher scores candidate names against one lowered query.
//
// A Matcher is immutable after construction and safe for concurrent
// use; build one per query and share it across shards.
type Matcher struct {
	query     string
	proximity []string
}

// New creates a matcher for query. Matching is case-insensitive.
// Proximity paths are hints toward the query's origin; they never
// change a rank, only how Near answers for tie-breaking.
func New(query string, proximity ...string) *Matcher {
	return &Matcher{query: strings.ToLower(query), proximity: proximity}
}

// Empty reports whether the query is empty. An empty query matches
// every name at RankExact, which callers use for list-all queries.
func (m *Matcher) Empty() bool {
	return m.query == ""
}

// Score ranks name against the query.
//
// Outputs:
//   - Rank: the match quality, RankNone when the name does not match.
func (m *Matcher) Score(name string) Rank {
	if m.query == "" {
		return RankExact
	}
	lower := strings.ToLower(name)
	switch {
	case lower == m.query:
		return RankExact
	case strings.HasPrefix(lower, m.query):
		return RankPrefix
	case strings.Contains(lower, m.query):
		return RankSubstring
	case editDistance(lower, m.query) < maxEditDistance:
		return RankFuzzy
	default:
		return RankNone
	}
}

// Near reports whether fileURI falls under any of the matcher's
// proximity paths. With no hints every location is far.
func (m *Matcher) Near(fileURI string) bool {
	for _, hint := range m.proximity {
		if hint != "" && strings.Contains(fileURI, hint) {
			return true
		}
	}
	return false
}

// editDistance is the Levenshtein distance between a and b, computed
// with two rolling rows.
func editDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
