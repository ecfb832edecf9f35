// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package symbols

import (
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/AleutianAI/AleutianIndex/services/symbols/index"
	"github.com/AleutianAI/AleutianIndex/services/symbols/slab"
)

// cachedFuzzy is one memoized fuzzy query result.
type cachedFuzzy struct {
	symbols  []slab.Symbol
	complete bool
}

// fuzzyKey is the comparable cache key for one fuzzy request. String
// lists are folded in with length prefixes so no field content can
// collide with another request's encoding.
type fuzzyKey struct {
	gen            uint64
	query          string
	scopes         string
	proximity      string
	anyScope       bool
	limit          int
	completionOnly bool
}

// queryCache memoizes fuzzy query results per index generation.
//
// Keys embed the generation, so a rebuild implicitly invalidates every
// earlier entry; stale entries age out of the LRU on their own. Lookup
// and occurrence queries are cheap map hits and are not cached.
type queryCache struct {
	entries *lru.Cache[fuzzyKey, cachedFuzzy]
}

func newQueryCache(size int) (*queryCache, error) {
	entries, err := lru.New[fuzzyKey, cachedFuzzy](size)
	if err != nil {
		return nil, fmt.Errorf("symbols: create query cache: %w", err)
	}
	return &queryCache{entries: entries}, nil
}

func (c *queryCache) get(gen uint64, req index.FuzzyFindRequest) (cachedFuzzy, bool) {
	res, ok := c.entries.Get(cacheKey(gen, req))
	if ok {
		queryCacheTotal.WithLabelValues("hit").Inc()
	} else {
		queryCacheTotal.WithLabelValues("miss").Inc()
	}
	return res, ok
}

func (c *queryCache) put(gen uint64, req index.FuzzyFindRequest, res cachedFuzzy) {
	c.entries.Add(cacheKey(gen, req), res)
}

func cacheKey(gen uint64, req index.FuzzyFindRequest) fuzzyKey {
	return fuzzyKey{
		gen:            gen,
		query:          req.Query,
		scopes:         encodeList(req.Scopes),
		proximity:      encodeList(req.ProximityPaths),
		anyScope:       req.AnyScope,
		limit:          req.Limit,
		completionOnly: req.CompletionOnly,
	}
}

// encodeList renders a string list with length prefixes, so ["x,y"]
// and ["x","y"] produce distinct encodings.
func encodeList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	for _, item := range items {
		b.WriteString(strconv.Itoa(len(item)))
		b.WriteByte(':')
		b.WriteString(item)
	}
	return b.String()
}
