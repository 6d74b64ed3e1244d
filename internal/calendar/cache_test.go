package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/model"
)

func TestCacheKeyDeterminism(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	a := cacheKey("u1", "secondary", "true,true,true,true,true", start, end)
	b := cacheKey("u1", "secondary", "true,true,true,true,true", start, end)
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, cacheKey("u2", "secondary", "true,true,true,true,true", start, end))
	assert.NotEqual(t, a, cacheKey("u1", "primary", "true,true,true,true,true", start, end))
	assert.NotEqual(t, a, cacheKey("u1", "secondary", "false,true,true,true,true", start, end))
	assert.NotEqual(t, a, cacheKey("u1", "secondary", "true,true,true,true,true", start, end.Add(time.Hour)))

	// Equivalent instants in different zones hash the same.
	zone := time.FixedZone("UTC+3", 3*3600)
	assert.Equal(t, a, cacheKey("u1", "secondary", "true,true,true,true,true", start.In(zone), end.In(zone)))
}

func TestResultCacheLazyExpiry(t *testing.T) {
	c := newResultCache(5 * time.Minute)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	events := []model.Event{{ID: "e1", StartTime: now, EndTime: now}}
	c.put("k", events, []model.CalendarType{model.TypeTimetable}, now)

	entry, ok := c.get("k", now.Add(4*time.Minute))
	assert.True(t, ok)
	assert.Len(t, entry.events, 1)

	_, ok = c.get("k", now.Add(6*time.Minute))
	assert.False(t, ok, "stale entry reads as a miss")
	assert.Equal(t, 1, len(c.entries), "expiry is lazy, the entry is not evicted")

	// Overwrite refreshes in place.
	c.put("k", events, nil, now.Add(6*time.Minute))
	_, ok = c.get("k", now.Add(7*time.Minute))
	assert.True(t, ok)
}

func TestResultCacheStats(t *testing.T) {
	c := newResultCache(0) // 0 falls back to the default TTL
	assert.Equal(t, DefaultCacheTTL, c.ttl)

	now := time.Now()
	stats := c.stats()
	assert.Equal(t, 0, stats.Entries)
	assert.Zero(t, stats.HitRate)
	assert.True(t, stats.OldestEntry.IsZero())

	c.put("a", nil, nil, now.Add(-time.Minute))
	c.put("b", nil, nil, now)
	c.get("a", now)
	c.get("missing", now)

	stats = c.stats()
	assert.Equal(t, 2, stats.Entries)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)
	assert.Equal(t, now.Add(-time.Minute), stats.OldestEntry)
}
