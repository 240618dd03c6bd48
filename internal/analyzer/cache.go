package analyzer

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/ristretto/v2"
)

// CachedScorer memoizes a Scorer in a ristretto cache keyed by the normalized
// input. Inputs differing only in case or punctuation share an entry.
type CachedScorer struct {
	scorer *Scorer
	cache  *ristretto.Cache[string, *Analysis]
}

// NewCachedScorer wraps scorer with a cache holding up to maxEntries analyses.
func NewCachedScorer(scorer *Scorer, maxEntries int64) (*CachedScorer, error) {
	if maxEntries <= 0 {
		maxEntries = 1024
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, *Analysis]{
		NumCounters:        maxEntries * 10, // ~10x expected items
		MaxCost:            maxEntries,      // cost 1 per analysis
		BufferItems:        64,
		Metrics:            true,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create score cache: %w", err)
	}

	return &CachedScorer{scorer: scorer, cache: cache}, nil
}

// Score returns the cached analysis for input, computing it on a miss.
// Callers receive their own copy and may modify it.
func (c *CachedScorer) Score(input string) *Analysis {
	tokens := tokenize(input)
	key := strings.Join(tokens, " ")

	if cached, ok := c.cache.Get(key); ok {
		return cached.clone()
	}

	analysis := c.scorer.scoreTokens(tokens)
	c.cache.Set(key, analysis.clone(), 1)
	return analysis
}

// Wait blocks until pending cache writes are applied.
func (c *CachedScorer) Wait() {
	c.cache.Wait()
}

// Hits returns the number of cache hits so far.
func (c *CachedScorer) Hits() uint64 {
	return c.cache.Metrics.Hits()
}

// Close releases the cache.
func (c *CachedScorer) Close() {
	c.cache.Close()
}
