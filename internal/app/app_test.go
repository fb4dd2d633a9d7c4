package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"leaderbot/internal/dispatch"
	"leaderbot/internal/subscription"
	logx "leaderbot/pkg/logx"
)

const board = `{"event":"2024","owner_id":1,"members":{"1":{"id":1,"name":"alice","stars":4,"local_score":40}}}`

type fixture struct {
	app     *App
	fetches atomic.Int32
	posts   atomic.Int32
	hooks   *httptest.Server
	dir     string
}

func newFixture(t *testing.T, noCache bool) *fixture {
	t.Helper()
	f := &fixture{dir: t.TempDir()}
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.fetches.Add(1)
		_, _ = io.WriteString(w, board)
	}))
	t.Cleanup(provider.Close)
	f.hooks = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.posts.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(f.hooks.Close)

	cfg := fmt.Sprintf(`
logging:
  level: error
storage:
  driver: sqlite
  path: %s
provider:
  base_url: %s
  attempts: 1
delivery:
  interval: 0s
`, filepath.Join(f.dir, "leaderbot.db"), provider.URL)
	path := filepath.Join(f.dir, "leaderbot.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	a, err := New(context.Background(), Options{ConfigPath: path, EnvPath: filepath.Join(f.dir, ".env"), NoCache: noCache})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	f.app = a
	return f
}

func (f *fixture) importFile(t *testing.T, body string) ImportResult {
	t.Helper()
	p := filepath.Join(f.dir, "subs.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	res, err := f.app.Import(context.Background(), p)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	return res
}

func TestImportAndRun(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	res := f.importFile(t, fmt.Sprintf(`
subscriptions:
  - endpoint: %[1]s/a
    kind: discord
    mention_id: "77"
    hours: [18, 6]
    source_url: https://adventofcode.com/2024/leaderboard/private/view/1?view_key=k
    release_hour: 0
  - endpoint: %[1]s/b
    kind: slack
    ping_channel: true
    hours: [18]
    source_url: https://adventofcode.com/2024/leaderboard/private/view/1?view_key=k
  - endpoint: %[1]s/c
    kind: teams
    hours: [18]
    source_url: https://adventofcode.com/2024/leaderboard/private/view/1?view_key=k
  - endpoint: %[1]s/d
    kind: slack
    hours: [24]
    source_url: https://adventofcode.com/2024/leaderboard/private/view/1?view_key=k
`, f.hooks.URL))
	if res.Stored != 2 || res.Skipped != 2 {
		t.Fatalf("import = %+v", res)
	}

	subs, err := f.app.Store().ListSubscriptions(context.Background())
	if err != nil || len(subs) != 2 {
		t.Fatalf("ListSubscriptions = %d, %v", len(subs), err)
	}
	if subs[0].ReleaseHour != 0 || subs[1].ReleaseHour != subscription.ReleaseDisabled {
		t.Fatalf("release hours = %d/%d", subs[0].ReleaseHour, subs[1].ReleaseHour)
	}

	hour, day := 18, 4
	sum, err := f.app.Run(context.Background(), dispatch.RunOptions{Hour: &hour, Day: &day})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Update.Success != 2 || f.posts.Load() != 2 || f.fetches.Load() != 1 {
		t.Fatalf("summary = %+v posts=%d fetches=%d", sum.Update, f.posts.Load(), f.fetches.Load())
	}

	// A second pass within the TTL is served from the sqlite cache.
	if _, err := f.app.Run(context.Background(), dispatch.RunOptions{Hour: &hour, Day: &day}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.fetches.Load() != 1 {
		t.Fatalf("fetches = %d, want cached", f.fetches.Load())
	}
}

func TestNoCacheOption(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	src := "https://adventofcode.com/2024/leaderboard/private/view/1?view_key=k"
	for range 2 {
		out, err := f.app.SendTest(context.Background(), dispatch.TestSend{
			Endpoint:       f.hooks.URL + "/t",
			Destination:    subscription.Slack{},
			LeaderboardURL: src,
		})
		if err != nil || !out.OK() {
			t.Fatalf("SendTest = %+v, %v", out, err)
		}
	}
	if f.fetches.Load() != 2 {
		t.Fatalf("fetches = %d, want 2 with cache disabled", f.fetches.Load())
	}
}

func TestImportRejectsEmptyFile(t *testing.T) {
	t.Parallel()
	if _, err := parseImport([]byte("subscriptions: []")); err == nil {
		t.Fatal("expected error")
	}
	entries, err := parseImport([]byte(`{"subscriptions":[{"endpoint":"https://h/x","kind":"discord","hours":[1],"source_url":"s"}]}`))
	if err != nil || len(entries) != 1 {
		t.Fatalf("JSON import = %v, %v", entries, err)
	}
	if _, err := importInto(context.Background(), nil, []importEntry{{Kind: "discord"}}, logx.Nop()); err != nil {
		t.Fatalf("invalid entries should be skipped, got %v", err)
	}
}

func TestNewFailsOnBadConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`{"storage":{"driver":"nope"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(context.Background(), Options{ConfigPath: path}); err == nil {
		t.Fatal("expected config error")
	}
}
