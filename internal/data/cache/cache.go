package cache

import (
	"context"
	"fmt"
	"time"
)

// Key identifies one cached payload: which upstream produced it, for
// which entity, under which query shape.
type Key struct {
	Upstream   string
	EntityID   string
	QueryShape string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Upstream, k.EntityID, k.QueryShape)
}

// Entry is a cached payload with its acquisition time. Freshness is
// judged against the entry's own TTL recorded at write time.
type Entry struct {
	Payload   []byte
	FetchedAt time.Time
}

// Cache is the TTL payload store protecting the stat upstreams.
// Implementations must never return torn reads: a Get observes either a
// complete prior entry or a miss.
type Cache interface {
	Get(ctx context.Context, key Key) (Entry, bool)
	Set(ctx context.Context, key Key, payload []byte, ttl time.Duration)
}

// PermanentMap is the key -> identifier mapping (player identity). At
// most one writer wins per key; later writers observe the first value.
type PermanentMap interface {
	Lookup(ctx context.Context, key string) (string, bool)
	// PutIfAbsent stores id for key unless one exists; it returns the
	// value now mapped and whether this call was the writer.
	PutIfAbsent(ctx context.Context, key, id string) (string, bool)
}
