package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(max int) (*TTLCache, *time.Time) {
	c := NewTTLCache(max)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestTTLCacheFreshness(t *testing.T) {
	c, now := newTestCache(10)
	defer c.Stop()
	ctx := context.Background()
	key := Key{Upstream: "gamelog", EntityID: "p1", QueryShape: "log"}

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	c.Set(ctx, key, []byte("payload"), time.Hour)
	entry, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), entry.Payload)

	*now = now.Add(2 * time.Hour)
	_, ok = c.Get(ctx, key)
	assert.False(t, ok)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
}

func TestTTLCacheLaterWriteWins(t *testing.T) {
	c, _ := newTestCache(10)
	defer c.Stop()
	ctx := context.Background()
	key := Key{Upstream: "markets", EntityID: "g1", QueryShape: "board"}

	c.Set(ctx, key, []byte("first"), time.Hour)
	c.Set(ctx, key, []byte("second"), time.Hour)

	entry, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, []byte("second"), entry.Payload)
}

func TestTTLCacheEvictsLRUUnderPressure(t *testing.T) {
	c, now := newTestCache(2)
	defer c.Stop()
	ctx := context.Background()

	k1 := Key{Upstream: "u", EntityID: "1", QueryShape: "q"}
	k2 := Key{Upstream: "u", EntityID: "2", QueryShape: "q"}
	k3 := Key{Upstream: "u", EntityID: "3", QueryShape: "q"}

	c.Set(ctx, k1, []byte("1"), time.Hour)
	*now = now.Add(time.Second)
	c.Set(ctx, k2, []byte("2"), time.Hour)
	*now = now.Add(time.Second)
	c.Get(ctx, k1) // k2 is now the least recently used
	*now = now.Add(time.Second)
	c.Set(ctx, k3, []byte("3"), time.Hour)

	_, ok := c.Get(ctx, k2)
	assert.False(t, ok)
	_, ok = c.Get(ctx, k1)
	assert.True(t, ok)
	_, ok = c.Get(ctx, k3)
	assert.True(t, ok)
}

func TestTTLCacheNoTornReadsUnderConcurrency(t *testing.T) {
	c := NewTTLCache(64)
	defer c.Stop()
	ctx := context.Background()
	key := Key{Upstream: "u", EntityID: "e", QueryShape: "q"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Set(ctx, key, []byte(fmt.Sprintf("payload-%d", i)), time.Hour)
		}()
		go func() {
			defer wg.Done()
			if entry, ok := c.Get(ctx, key); ok {
				assert.Contains(t, string(entry.Payload), "payload-")
			}
		}()
	}
	wg.Wait()
}

func TestMemoryPermanentMapSingleWriter(t *testing.T) {
	m := NewMemoryPermanentMap()
	ctx := context.Background()

	id, wrote := m.PutIfAbsent(ctx, "jayson tatum", "id-1")
	assert.True(t, wrote)
	assert.Equal(t, "id-1", id)

	id, wrote = m.PutIfAbsent(ctx, "jayson tatum", "id-2")
	assert.False(t, wrote)
	assert.Equal(t, "id-1", id)

	got, ok := m.Lookup(ctx, "jayson tatum")
	require.True(t, ok)
	assert.Equal(t, "id-1", got)
}
