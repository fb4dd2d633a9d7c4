package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestSplitText(t *testing.T) {
	t.Parallel()
	if got := splitText("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("splitText = %q", got)
	}
	long := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	got := splitText(long, 10)
	if len(got) != 2 || got[0] != strings.Repeat("a", 8) || got[1] != strings.Repeat("b", 8) {
		t.Fatalf("splitText = %q", got)
	}
	for _, c := range splitText(strings.Repeat("x", 25), 10) {
		if len([]rune(c)) > 10 {
			t.Fatalf("chunk too long: %d", len(c))
		}
	}
}

func TestSendText(t *testing.T) {
	t.Parallel()
	var (
		mu    sync.Mutex
		paths []string
		texts []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		if s, ok := req["text"].(string); ok {
			texts = append(texts, s)
		}
		mu.Unlock()
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"chat":{"id":42}}}`)
	}))
	defer srv.Close()

	s, err := New(Config{Token: "123:abc", URL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	text := strings.Repeat("line\n", 1000)
	if err := s.SendText(context.Background(), 42, 0, text); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(paths) < 2 {
		t.Fatalf("expected chunked sends, got %d", len(paths))
	}
	if paths[0] != "/bot123:abc/sendMessage" {
		t.Fatalf("path = %s", paths[0])
	}
	if strings.Join(texts, "\n") != strings.TrimRight(text, "\n") {
		t.Fatal("chunks do not reassemble the text")
	}
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error")
	}
}
