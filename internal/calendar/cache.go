package calendar

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/model"
)

// DefaultCacheTTL is the freshness window after which an entry is treated
// as a miss on the next read.
const DefaultCacheTTL = 5 * time.Minute

// cacheEntry holds one merged result set plus the fetch timestamp and the
// sources that actually contributed to it.
type cacheEntry struct {
	events    []model.Event
	included  []model.CalendarType
	fetchedAt time.Time
}

// resultCache is the per-Service event cache. Expiry is lazy: stale entries
// are treated as misses and overwritten in place by the next fetch, never
// eagerly evicted. Writes to the same key are last-writer-wins.
type resultCache struct {
	ttl     time.Duration
	entries map[string]cacheEntry
	hits    uint64
	misses  uint64
}

func newResultCache(ttl time.Duration) *resultCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &resultCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// cacheKey derives the deterministic key for one query shape.
func cacheKey(userID, branchID, sourceFlags string, start, end time.Time) string {
	h := sha256.Sum256([]byte(strings.Join([]string{
		userID,
		branchID,
		sourceFlags,
		start.UTC().Format(time.RFC3339Nano),
		end.UTC().Format(time.RFC3339Nano),
	}, "|")))
	return hex.EncodeToString(h[:])
}

// get returns the cached entry if present and fresh. Callers hold the
// service lock.
func (c *resultCache) get(key string, now time.Time) (cacheEntry, bool) {
	entry, ok := c.entries[key]
	if !ok || now.Sub(entry.fetchedAt) > c.ttl {
		c.misses++
		return cacheEntry{}, false
	}
	c.hits++
	return entry, true
}

// put stores a merged result under key.
func (c *resultCache) put(key string, events []model.Event, included []model.CalendarType, now time.Time) {
	c.entries[key] = cacheEntry{events: events, included: included, fetchedAt: now}
}

// CacheStats is a diagnostic snapshot of the cache. Non-authoritative: it
// reflects the moment of the call and races with concurrent fetches.
type CacheStats struct {
	Entries     int       `json:"entries"`
	HitRate     float64   `json:"hit_rate"`
	OldestEntry time.Time `json:"oldest_entry"`
}

func (c *resultCache) stats() CacheStats {
	s := CacheStats{Entries: len(c.entries)}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	for _, entry := range c.entries {
		if s.OldestEntry.IsZero() || entry.fetchedAt.Before(s.OldestEntry) {
			s.OldestEntry = entry.fetchedAt
		}
	}
	return s
}
