package dedupe_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/herewego/transfer-admin/internal/dedupe"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time           { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCacheSeenDuplicate(t *testing.T) {
	cache := dedupe.NewCache(10, time.Minute)
	require.False(t, cache.IsSeen("event-1"))
	cache.MarkSeen("event-1")
	require.True(t, cache.IsSeen("event-1"))
	require.Equal(t, 1, cache.Len())
}

func TestCacheTTLExpiry(t *testing.T) {
	clk := &clock{t: time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)}
	cache := dedupe.NewCacheWithClock(10, time.Minute, clk.now)

	cache.MarkSeen("event-2")
	clk.advance(30 * time.Second)
	require.True(t, cache.IsSeen("event-2"))

	clk.advance(31 * time.Second)
	require.False(t, cache.IsSeen("event-2"))

	cache.MarkSeen("event-3")
	require.Equal(t, 1, cache.Len())
}

func TestCacheCapacityEvictsOldest(t *testing.T) {
	cache := dedupe.NewCache(1, time.Minute)
	cache.MarkSeen("first")
	cache.MarkSeen("second")

	require.False(t, cache.IsSeen("first"))
	require.True(t, cache.IsSeen("second"))
}

func TestCacheRemarkKeepsNewestEntry(t *testing.T) {
	clk := &clock{t: time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)}
	cache := dedupe.NewCacheWithClock(2, time.Minute, clk.now)

	cache.MarkSeen("a")
	clk.advance(time.Second)
	cache.MarkSeen("b")
	clk.advance(time.Second)
	cache.MarkSeen("a")
	clk.advance(time.Second)
	cache.MarkSeen("c")

	require.True(t, cache.IsSeen("a"))
	require.True(t, cache.IsSeen("c"))
	require.False(t, cache.IsSeen("b"))
}
