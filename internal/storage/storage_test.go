package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"leaderbot/internal/subscription"
	logx "leaderbot/pkg/logx"
)

func openTestStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	out := map[string]Store{}
	for _, driver := range []string{"sqlite", "file"} {
		st, err := Open(Config{Driver: driver, Path: filepath.Join(dir, driver, "leaderbot.db")}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%s): %v", driver, err)
		}
		t.Cleanup(func() { _ = st.Close() })
		out[driver] = st
	}
	return out
}

func sampleSubscription(endpoint string) subscription.Subscription {
	return subscription.Subscription{
		Endpoint:    endpoint,
		Destination: subscription.Discord{MentionID: "123"},
		Hours:       []int{18, 9, 18},
		SourceURL:   "https://adventofcode.com/2024/leaderboard/private/view/1?view_key=abc",
		JoinCode:    "1-abcd",
		ReleaseHour: 0,
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	for driver, st := range openTestStores(t) {
		st := st
		t.Run(driver, func(t *testing.T) {
			id, err := st.PutSubscription(ctx, sampleSubscription("https://discord.com/api/webhooks/1/a"))
			if err != nil {
				t.Fatalf("PutSubscription: %v", err)
			}
			slack := subscription.Subscription{
				Endpoint:    "https://hooks.slack.com/services/T/B/C",
				Destination: subscription.Slack{PingChannel: true},
				Hours:       []int{6},
				SourceURL:   "https://adventofcode.com/2024/leaderboard/private/view/2?view_key=def",
				ReleaseHour: subscription.ReleaseDisabled,
			}
			id2, err := st.PutSubscription(ctx, slack)
			if err != nil {
				t.Fatalf("PutSubscription(slack): %v", err)
			}
			if id2 == id {
				t.Fatalf("expected distinct ids, got %d twice", id)
			}

			// Upsert by endpoint keeps the id.
			again := sampleSubscription("https://discord.com/api/webhooks/1/a")
			again.Hours = []int{20}
			idAgain, err := st.PutSubscription(ctx, again)
			if err != nil {
				t.Fatalf("PutSubscription(upsert): %v", err)
			}
			if idAgain != id {
				t.Fatalf("upsert id = %d, want %d", idAgain, id)
			}

			subs, err := st.ListSubscriptions(ctx)
			if err != nil {
				t.Fatalf("ListSubscriptions: %v", err)
			}
			if len(subs) != 2 {
				t.Fatalf("len(subs) = %d, want 2", len(subs))
			}
			if subs[0].ID != id || len(subs[0].Hours) != 1 || subs[0].Hours[0] != 20 {
				t.Fatalf("unexpected first subscription: %+v", subs[0])
			}
			if subs[0].ReleaseHour != 0 || !subs[0].ReleaseEnabled() {
				t.Fatalf("release hour lost: %+v", subs[0])
			}
			if d, ok := subs[0].Destination.(subscription.Discord); !ok || d.MentionID != "123" {
				t.Fatalf("destination = %#v", subs[0].Destination)
			}
			if d, ok := subs[1].Destination.(subscription.Slack); !ok || !d.PingChannel {
				t.Fatalf("destination = %#v", subs[1].Destination)
			}
			if subs[1].ReleaseEnabled() {
				t.Fatalf("slack release should be disabled: %+v", subs[1])
			}

			got, ok, err := st.GetSubscription(ctx, id2)
			if err != nil || !ok {
				t.Fatalf("GetSubscription: ok=%v err=%v", ok, err)
			}
			if got.Endpoint != slack.Endpoint {
				t.Fatalf("endpoint = %s", got.Endpoint)
			}

			if err := st.DeleteSubscription(ctx, id2); err != nil {
				t.Fatalf("DeleteSubscription: %v", err)
			}
			if _, ok, _ := st.GetSubscription(ctx, id2); ok {
				t.Fatal("subscription still present after delete")
			}
			if err := st.DeleteSubscription(ctx, id2); !errors.Is(err, ErrNotFound) {
				t.Fatalf("second delete err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestCacheUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	for driver, st := range openTestStores(t) {
		st := st
		t.Run(driver, func(t *testing.T) {
			if _, ok, err := st.ReadCache(ctx, "k"); ok || err != nil {
				t.Fatalf("expected miss, ok=%v err=%v", ok, err)
			}
			t1 := time.UnixMilli(1_700_000_000_000)
			t2 := t1.Add(time.Minute)
			if err := st.UpsertCache(ctx, "k", []byte(`{"v":1}`), t1); err != nil {
				t.Fatalf("UpsertCache: %v", err)
			}
			if err := st.UpsertCache(ctx, "k", []byte(`{"v":2}`), t2); err != nil {
				t.Fatalf("UpsertCache: %v", err)
			}
			e, ok, err := st.ReadCache(ctx, "k")
			if err != nil || !ok {
				t.Fatalf("ReadCache: ok=%v err=%v", ok, err)
			}
			if string(e.Payload) != `{"v":2}` || !e.FetchedAt.Equal(t2) {
				t.Fatalf("entry = %s @ %v", e.Payload, e.FetchedAt)
			}
		})
	}
}

func TestSQLiteAuditAppend(t *testing.T) {
	ctx := context.Background()
	st := openTestStores(t)["sqlite"].(*sqliteStore)
	entries := []AuditEntry{
		{SubscriptionID: 3, Kind: AuditSuccess, Message: "delivered", RunID: "r1", Pass: "leaderboard"},
		{Kind: AuditError, Message: "fetch failed"},
	}
	for _, e := range entries {
		if err := st.AppendAudit(ctx, e); err != nil {
			t.Fatalf("AppendAudit: %v", err)
		}
	}
	got, err := st.listAudit(ctx)
	if err != nil {
		t.Fatalf("listAudit: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(audit) = %d, want 2", len(got))
	}
	if got[0].SubscriptionID != 3 || got[0].Kind != AuditSuccess || got[0].Pass != "leaderboard" {
		t.Fatalf("unexpected entry: %+v", got[0])
	}
	if got[1].SubscriptionID != 0 || got[1].At.IsZero() {
		t.Fatalf("unexpected entry: %+v", got[1])
	}
}

func TestFileStoreReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "state")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := st.PutSubscription(ctx, sampleSubscription("https://discord.com/api/webhooks/9/z"))
	if err != nil {
		t.Fatalf("PutSubscription: %v", err)
	}
	if err := st.AppendAudit(ctx, AuditEntry{SubscriptionID: id, Kind: AuditDestinationRetired, Message: "gone"}); err != nil {
		t.Fatalf("AppendAudit: %v", err)
	}
	_ = st.Close()

	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()
	subs, _ := st2.ListSubscriptions(ctx)
	if len(subs) != 1 || subs[0].ID != id {
		t.Fatalf("subs after reopen = %+v", subs)
	}
	id2, _ := st2.PutSubscription(ctx, sampleSubscription("https://discord.com/api/webhooks/9/y"))
	if id2 <= id {
		t.Fatalf("id sequence went backwards: %d <= %d", id2, id)
	}

	f, err := os.Open(filepath.Join(dir, "state.audit.jsonl"))
	if err != nil {
		t.Fatalf("open audit: %v", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		t.Fatal("audit journal is empty")
	}
	var e AuditEntry
	if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	if e.Kind != AuditDestinationRetired || e.SubscriptionID != id {
		t.Fatalf("audit entry = %+v", e)
	}
}

func TestFileStoreFailedWriteKeepsMemory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "state")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()
	id, err := st.PutSubscription(ctx, sampleSubscription("https://discord.com/api/webhooks/1/a"))
	if err != nil {
		t.Fatalf("PutSubscription: %v", err)
	}

	// A directory where the temp file goes makes every write fail.
	blocker := filepath.Join(dir, "state.state.json.tmp")
	if err := os.Mkdir(blocker, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := st.PutSubscription(ctx, sampleSubscription("https://discord.com/api/webhooks/1/b")); err == nil {
		t.Fatal("PutSubscription should fail")
	}
	if err := st.DeleteSubscription(ctx, id); err == nil {
		t.Fatal("DeleteSubscription should fail")
	}
	if err := st.UpsertCache(ctx, "k", []byte("v"), time.Now()); err == nil {
		t.Fatal("UpsertCache should fail")
	}

	subs, err := st.ListSubscriptions(ctx)
	if err != nil {
		t.Fatalf("ListSubscriptions: %v", err)
	}
	if len(subs) != 1 || subs[0].ID != id {
		t.Fatalf("subs after failed writes = %+v", subs)
	}
	if _, ok, _ := st.ReadCache(ctx, "k"); ok {
		t.Fatal("cache entry should not exist after a failed write")
	}

	if err := os.Remove(blocker); err != nil {
		t.Fatal(err)
	}
	id2, err := st.PutSubscription(ctx, sampleSubscription("https://discord.com/api/webhooks/1/b"))
	if err != nil {
		t.Fatalf("PutSubscription after recovery: %v", err)
	}
	if id2 != id+1 {
		t.Fatalf("id after failed insert = %d, want %d", id2, id+1)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "mongo"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := Open(Config{}, logx.Nop()); !errors.Is(err, ErrDisabled) {
		t.Fatalf("empty driver err = %v, want ErrDisabled", err)
	}
}
