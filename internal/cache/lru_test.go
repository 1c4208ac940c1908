package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestLRU_SetGet(t *testing.T) {
	c := NewLRU[string](LRUConfig{Capacity: 2})

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", "1", 0)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	c.Set("a", "2", 0)
	v, _ = c.Get("a")
	assert.Equal(t, "2", v)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](LRUConfig{Capacity: 2})
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	_, _ = c.Get("a") // b is now the oldest
	c.Set("c", 3, 0)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)

	st := c.Stats()
	assert.Equal(t, uint64(1), st.Evictions)
	assert.Equal(t, 2, st.Size)
	assert.Equal(t, 2, st.Capacity)
}

func TestLRU_TTL(t *testing.T) {
	clock := newFakeClock()
	c := NewLRU[int](LRUConfig{Capacity: 4, Now: clock.Now})
	c.Set("short", 1, time.Minute)
	c.Set("forever", 2, 0)

	clock.Advance(59 * time.Second)
	_, ok := c.Get("short")
	assert.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = c.Get("short")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len(), "expired entries are dropped on read")

	clock.Advance(24 * time.Hour)
	_, ok = c.Get("forever")
	assert.True(t, ok)
}

func TestLRU_DeleteAndPurge(t *testing.T) {
	c := NewLRU[int](LRUConfig{})
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.Equal(t, 1, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, defaultCapacity, c.Stats().Capacity)
}

func TestLRU_StatsCountHitsAndMisses(t *testing.T) {
	c := NewLRU[int](LRUConfig{Capacity: 1})
	c.Set("a", 1, 0)
	_, _ = c.Get("a")
	_, _ = c.Get("a")
	_, _ = c.Get("missing")

	st := c.Stats()
	assert.Equal(t, uint64(2), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
}

func TestLRU_ConcurrentAccess(t *testing.T) {
	c := NewLRU[int](LRUConfig{Capacity: 8})
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := string(rune('a' + i%4))
			c.Set(key, i, 0)
			_, _ = c.Get(key)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 4)
}
