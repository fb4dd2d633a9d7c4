package leaderboard

import (
	"context"
	"time"

	"leaderbot/internal/storage"
)

// DefaultTTL bounds how long a fetched board is reused.
const DefaultTTL = 5 * time.Minute

// Snapshot is the latest stored payload for an access key plus its age.
type Snapshot struct {
	Payload   []byte
	FetchedAt time.Time
	Age       time.Duration
}

// Cache is a TTL view over a storage.Cache backend.
// Get never judges freshness; callers use Fresh.
type Cache struct {
	store storage.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewCache wraps store. A ttl of 0 turns every read into a miss.
func NewCache(store storage.Cache, ttl time.Duration) *Cache {
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{store: store, ttl: ttl, now: time.Now}
}

func (c *Cache) TTL() time.Duration { return c.ttl }

func (c *Cache) Get(ctx context.Context, key string) (Snapshot, bool, error) {
	if c == nil || c.store == nil {
		return Snapshot{}, false, nil
	}
	e, ok, err := c.store.ReadCache(ctx, key)
	if err != nil || !ok {
		return Snapshot{}, false, err
	}
	return Snapshot{Payload: e.Payload, FetchedAt: e.FetchedAt, Age: c.now().Sub(e.FetchedAt)}, true, nil
}

func (c *Cache) Put(ctx context.Context, key string, payload []byte, fetchedAt time.Time) error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.UpsertCache(ctx, key, payload, fetchedAt)
}

// Fresh reports whether s is younger than the TTL.
func (c *Cache) Fresh(s Snapshot) bool {
	if c == nil || c.ttl <= 0 {
		return false
	}
	return s.Age >= 0 && s.Age < c.ttl
}
