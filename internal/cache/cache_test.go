package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Eviction Tests
// =============================================================================

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	// Given: a cache of capacity 2 holding A and B
	c := New[string](2)
	c.Set("a", "alpha")
	c.Set("b", "bravo")

	// When: A is touched and a third key is inserted
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Set("c", "charlie")

	// Then: B (least recently used) is evicted, A and C remain
	assert.False(t, c.Has("b"), "b should have been evicted")
	assert.True(t, c.Has("a"), "a was recently used and should remain")
	assert.True(t, c.Has("c"), "c was just inserted and should remain")
}

func TestCache_SetCountsAsUse(t *testing.T) {
	// Given: a cache of capacity 2 holding A and B
	c := New[int](2)
	c.Set("a", 1)
	c.Set("b", 2)

	// When: A is overwritten and a third key is inserted
	c.Set("a", 10)
	c.Set("c", 3)

	// Then: B is the eviction victim, not A
	assert.False(t, c.Has("b"))
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)
}

func TestCache_NeverExceedsCapacity(t *testing.T) {
	// Given: a cache of capacity 3
	c := New[int](3)

	// When: inserting ten distinct keys
	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("key-%d", i), i)
	}

	// Then: at most 3 entries are live
	assert.LessOrEqual(t, c.Len(), 3)
	assert.Equal(t, 3, c.Cap())
}

func TestCache_HasDoesNotRefreshRecency(t *testing.T) {
	// Given: a cache of capacity 2 holding A (older) and B
	c := New[string](2)
	c.Set("a", "alpha")
	c.Set("b", "bravo")

	// When: A is checked via Has (not Get) and a third key is inserted
	require.True(t, c.Has("a"))
	c.Set("c", "charlie")

	// Then: A is still the eviction victim — Has must not count as a use
	assert.False(t, c.Has("a"), "Has should not have refreshed a's recency")
	assert.True(t, c.Has("b"))
	assert.True(t, c.Has("c"))
}

// =============================================================================
// Expiry Tests
// =============================================================================

func TestCache_ExpiredEntryIsMissing(t *testing.T) {
	// Given: an entry with a 10ms TTL
	c := New[string](8)
	c.SetTTL("ephemeral", "value", 10*time.Millisecond)

	// When: waiting past the TTL
	time.Sleep(20 * time.Millisecond)

	// Then: both Get and Has report the entry as gone
	_, ok := c.Get("ephemeral")
	assert.False(t, ok, "expired entry should not be returned")
	assert.False(t, c.Has("ephemeral"), "expired entry should not be reported present")
}

func TestCache_UnexpiredEntryIsReturned(t *testing.T) {
	// Given: an entry with a generous TTL
	c := New[string](8)
	c.SetTTL("k", "v", time.Minute)

	// Then: it is immediately retrievable
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
	assert.True(t, c.Has("k"))
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	// Given: entries stored with Set and with a non-positive TTL
	c := New[string](8)
	c.Set("plain", "v1")
	c.SetTTL("zero", "v2", 0)
	c.SetTTL("negative", "v3", -time.Second)

	time.Sleep(15 * time.Millisecond)

	// Then: none of them expire
	assert.True(t, c.Has("plain"))
	assert.True(t, c.Has("zero"))
	assert.True(t, c.Has("negative"))
}

func TestCache_KeysPurgesExpiredEntries(t *testing.T) {
	// Given: a mix of live and expired entries
	c := New[string](8)
	c.Set("live-1", "v")
	c.SetTTL("dead", "v", 5*time.Millisecond)
	c.Set("live-2", "v")
	time.Sleep(15 * time.Millisecond)

	// When: reading the key list
	keys := c.Keys()

	// Then: only live keys are listed and the expired one was purged
	assert.ElementsMatch(t, []string{"live-1", "live-2"}, keys)
	assert.Equal(t, 2, c.Len())
}

func TestCache_LenIsExpiryAware(t *testing.T) {
	// Given: two entries, one with a tiny TTL
	c := New[int](8)
	c.Set("stays", 1)
	c.SetTTL("goes", 2, 5*time.Millisecond)
	require.Equal(t, 2, c.Len())

	// When: the TTL passes
	time.Sleep(15 * time.Millisecond)

	// Then: Len reflects only live entries
	assert.Equal(t, 1, c.Len())
}

func TestCache_OverwriteResetsTTL(t *testing.T) {
	// Given: an entry about to expire
	c := New[string](8)
	c.SetTTL("k", "old", 10*time.Millisecond)

	// When: it is overwritten without a TTL
	c.Set("k", "new")
	time.Sleep(20 * time.Millisecond)

	// Then: the overwrite wins and the entry no longer expires
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", v)
}

// =============================================================================
// Basic Operation Tests
// =============================================================================

func TestCache_GetMissingKey_ReturnsZeroValue(t *testing.T) {
	c := New[string](8)

	v, ok := c.Get("absent")

	assert.False(t, ok)
	assert.Equal(t, "", v)
}

func TestCache_Delete_ReportsPresence(t *testing.T) {
	c := New[string](8)
	c.Set("k", "v")

	assert.True(t, c.Delete("k"), "deleting a present key should report true")
	assert.False(t, c.Delete("k"), "deleting an absent key should report false")
	assert.False(t, c.Has("k"))
}

func TestCache_Clear_RemovesEverything(t *testing.T) {
	c := New[int](8)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Keys())
}

func TestCache_KeysOrderedByRecency(t *testing.T) {
	// Given: three entries where the oldest is re-read
	c := New[string](8)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3")
	_, _ = c.Get("a")

	// Then: keys run least- to most-recently-used
	assert.Equal(t, []string{"b", "c", "a"}, c.Keys())
}

func TestNew_NonPositiveCapacity_UsesDefault(t *testing.T) {
	c := New[string](0)
	assert.Equal(t, DefaultCapacity, c.Cap())

	c = New[string](-5)
	assert.Equal(t, DefaultCapacity, c.Cap())
}

func TestCache_StructValues(t *testing.T) {
	// Values of arbitrary type round-trip unchanged
	type result struct {
		ID    string
		Score int
	}
	c := New[result](4)
	c.Set("r", result{ID: "intro", Score: 65})

	v, ok := c.Get("r")
	require.True(t, ok)
	assert.Equal(t, "intro", v.ID)
	assert.Equal(t, 65, v.Score)
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func TestCache_ConcurrentAccess(t *testing.T) {
	// Given: a shared cache and many goroutines mixing reads and writes
	c := New[int](64)
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("key-%d", i%16)
				c.Set(key, g*1000+i)
				c.Get(key)
				c.Has(key)
			}
		}(g)
	}
	wg.Wait()

	// Then: the cache is intact and within capacity
	assert.LessOrEqual(t, c.Len(), 64)
}
