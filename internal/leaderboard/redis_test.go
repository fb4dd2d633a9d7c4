package leaderboard

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rc := NewRedisCacheClient(rdb, "test:lb:", time.Hour)
	t.Cleanup(func() { _ = rc.Close() })
	return mr, rc
}

func TestRedisCacheRoundTrip(t *testing.T) {
	mr, rc := newTestRedis(t)
	ctx := context.Background()

	if err := rc.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if _, ok, err := rc.ReadCache(ctx, "k1"); err != nil || ok {
		t.Fatalf("miss: ok=%v err=%v", ok, err)
	}

	first := time.Date(2024, 12, 3, 23, 0, 0, 123456789, time.UTC)
	if err := rc.UpsertCache(ctx, "k1", []byte(`{"members":{}}`), first); err != nil {
		t.Fatalf("UpsertCache: %v", err)
	}
	e, ok, err := rc.ReadCache(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("hit: ok=%v err=%v", ok, err)
	}
	if e.Key != "k1" || string(e.Payload) != `{"members":{}}` {
		t.Fatalf("entry = %+v", e)
	}
	if !e.FetchedAt.Equal(first.Truncate(time.Millisecond)) {
		t.Fatalf("FetchedAt = %v, want %v", e.FetchedAt, first.Truncate(time.Millisecond))
	}

	raw, err := mr.Get("test:lb:k1")
	if err != nil {
		t.Fatalf("prefixed key missing: %v", err)
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("stored value is not json: %v", err)
	}
	if _, ok := v["payload"]; !ok || v["fetched_at"] != float64(first.UnixMilli()) {
		t.Fatalf("stored value = %v", v)
	}
	if ttl := mr.TTL("test:lb:k1"); ttl != time.Hour {
		t.Fatalf("key ttl = %v, want 1h", ttl)
	}

	second := first.Add(10 * time.Minute)
	if err := rc.UpsertCache(ctx, "k1", []byte(`{"members":{"1":{}}}`), second); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	e, _, _ = rc.ReadCache(ctx, "k1")
	if string(e.Payload) != `{"members":{"1":{}}}` || !e.FetchedAt.Equal(second.Truncate(time.Millisecond)) {
		t.Fatalf("after overwrite = %+v", e)
	}
}

func TestRedisCacheBehindTTLCache(t *testing.T) {
	mr, rc := newTestRedis(t)
	ctx := context.Background()
	now := time.Date(2024, 12, 3, 23, 0, 0, 0, time.UTC)

	c := NewCache(rc, 5*time.Minute)
	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	if err := c.Put(ctx, "k", []byte(`{}`), now); err != nil {
		t.Fatalf("Put: %v", err)
	}
	snap, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || !c.Fresh(snap) || snap.Age != 2*time.Minute {
		t.Fatalf("snap = %+v ok=%v err=%v", snap, ok, err)
	}

	mr.Set("test:lb:bad", "not json")
	if _, _, err := rc.ReadCache(ctx, "bad"); err == nil {
		t.Fatal("corrupt value must be an error")
	}
}
