package cache

import (
	"maps"
	"time"
)

// DefaultSummaryTTL bounds how old a last-known dashboard figure may be.
const DefaultSummaryTTL = 15 * time.Minute

// Summary is a dashboard figure set as last fetched from the marketplace API.
type Summary struct {
	Values    map[string]any
	FetchedAt time.Time
}

// SummaryCache remembers the last successful summary per user and API path so a dashboard
// can show slightly old figures while the API is unreachable. Entries are keyed by user,
// so one account never sees another's figures.
type SummaryCache struct {
	lru *LRU[Summary]
	ttl time.Duration
	now func() time.Time
}

// SummaryCacheConfig configures a SummaryCache.
type SummaryCacheConfig struct {
	Capacity int
	TTL      time.Duration
	Now      func() time.Time
}

// NewSummaryCache creates a SummaryCache.
func NewSummaryCache(cfg SummaryCacheConfig) *SummaryCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSummaryTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SummaryCache{
		lru: NewLRU[Summary](LRUConfig{Capacity: cfg.Capacity, Now: cfg.Now}),
		ttl: cfg.TTL,
		now: cfg.Now,
	}
}

func summaryKey(userID, path string) string { return userID + "\x00" + path }

// Put records values fetched now for userID and path.
func (c *SummaryCache) Put(userID, path string, values map[string]any) {
	if userID == "" {
		return
	}
	c.lru.Set(summaryKey(userID, path), Summary{Values: maps.Clone(values), FetchedAt: c.now()}, c.ttl)
}

// Get returns the last known summary for userID and path.
func (c *SummaryCache) Get(userID, path string) (Summary, bool) {
	if userID == "" {
		return Summary{}, false
	}
	s, ok := c.lru.Get(summaryKey(userID, path))
	if !ok {
		return Summary{}, false
	}
	s.Values = maps.Clone(s.Values)
	return s, true
}

// Purge forgets every summary. Called when the session ends.
func (c *SummaryCache) Purge() { c.lru.Purge() }

// Stats exposes the underlying LRU counters.
func (c *SummaryCache) Stats() Stats { return c.lru.Stats() }
