package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"leaderbot/internal/format"
	"leaderbot/internal/httpx"
	"leaderbot/internal/subscription"
	logx "leaderbot/pkg/logx"
)

func testPolicy() httpx.Policy { return httpx.Policy{MaxAttempts: 1, Timeout: 5 * time.Second} }

func statusServer(t *testing.T, code int, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if code == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "3")
		}
		w.WriteHeader(code)
		_, _ = io.WriteString(w, "no_service")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDeliverClassification(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		dest subscription.Destination
		code int
		want Status
	}{
		{"discord 200", subscription.Discord{}, 200, Success},
		{"discord 204", subscription.Discord{}, 204, Success},
		{"discord 404", subscription.Discord{}, 404, PermanentFailure},
		{"discord 410", subscription.Discord{}, 410, TransientFailure},
		{"discord 500", subscription.Discord{}, 500, TransientFailure},
		{"discord 429", subscription.Discord{}, 429, TransientFailure},
		{"slack 200", subscription.Slack{}, 200, Success},
		{"slack 404", subscription.Slack{}, 404, PermanentFailure},
		{"slack 410", subscription.Slack{}, 410, PermanentFailure},
		{"slack 403", subscription.Slack{}, 403, TransientFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := statusServer(t, tc.code, nil)
			c := NewClient(Config{Policy: testPolicy()}, srv.Client(), logx.Nop())
			got := c.Deliver(context.Background(), tc.dest, srv.URL+"/hook", format.Test(tc.dest))
			if got.Status != tc.want || got.Code != tc.code {
				t.Fatalf("Deliver = %+v, want status %s code %d", got, tc.want, tc.code)
			}
			if tc.want == PermanentFailure && got.Message != MsgGone {
				t.Fatalf("message = %q", got.Message)
			}
		})
	}
}

func TestDeliverRateLimitedMentionsRetryAfter(t *testing.T) {
	t.Parallel()
	srv := statusServer(t, http.StatusTooManyRequests, nil)
	c := NewClient(Config{Policy: testPolicy()}, srv.Client(), logx.Nop())
	got := c.Deliver(context.Background(), subscription.Slack{}, srv.URL, format.Test(subscription.Slack{}))
	if got.Status != TransientFailure || !strings.Contains(got.Message, "Retry-After: 3") {
		t.Fatalf("Deliver = %+v", got)
	}
}

func TestDeliverSendsPayload(t *testing.T) {
	t.Parallel()
	var body format.DiscordPayload
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.UserAgent()
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	dest := subscription.Discord{MentionID: "42"}
	c := NewClient(Config{Policy: testPolicy(), UserAgent: "test-agent"}, srv.Client(), logx.Nop())
	if got := c.DeliverTest(context.Background(), dest, srv.URL); !got.OK() {
		t.Fatalf("DeliverTest = %+v", got)
	}
	if ua != "test-agent" {
		t.Fatalf("user agent = %q", ua)
	}
	if body.Content != "<@&42>" || len(body.Embeds) != 1 || body.Embeds[0].Title != "leaderbot test message" {
		t.Fatalf("body = %+v", body)
	}
}

func TestDeliverTransportErrorIsTransient(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(Config{Policy: testPolicy()}, nil, logx.Nop())
	got := c.Deliver(context.Background(), subscription.Discord{}, url, format.Test(subscription.Discord{}))
	if got.Status != TransientFailure || got.Code != 0 {
		t.Fatalf("Deliver = %+v", got)
	}
	var te *httpx.TransportError
	if !errors.As(got.Err, &te) {
		t.Fatalf("Err = %v, want *httpx.TransportError", got.Err)
	}
}

func TestDeliverInvalidEndpointSkipsNetwork(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := statusServer(t, 200, &hits)
	c := NewClient(Config{Policy: testPolicy(), StrictHosts: true}, srv.Client(), logx.Nop())

	got := c.Deliver(context.Background(), subscription.Discord{}, srv.URL, format.Test(subscription.Discord{}))
	if got.Status != TransientFailure {
		t.Fatalf("Deliver = %+v", got)
	}
	var ve *ValidationError
	if !errors.As(got.Err, &ve) {
		t.Fatalf("Err = %v, want *ValidationError", got.Err)
	}
	if hits.Load() != 0 {
		t.Fatalf("server hit %d times", hits.Load())
	}
}

func TestValidateEndpoint(t *testing.T) {
	t.Parallel()
	cases := []struct {
		kind     subscription.Kind
		endpoint string
		strict   bool
		ok       bool
	}{
		{subscription.KindDiscord, "https://discord.com/api/webhooks/1/abc", true, true},
		{subscription.KindDiscord, "https://discordapp.com/api/webhooks/1/abc", true, true},
		{subscription.KindDiscord, "https://hooks.slack.com/services/T/B/x", true, false},
		{subscription.KindDiscord, "http://discord.com/api/webhooks/1/abc", true, false},
		{subscription.KindSlack, "https://hooks.slack.com/services/T/B/x", true, true},
		{subscription.KindSlack, "https://hooks.slack.com/other", true, false},
		{subscription.KindSlack, "http://127.0.0.1:8080/hook", false, true},
		{subscription.KindSlack, "ftp://example.com/hook", false, false},
		{subscription.KindSlack, "/relative", false, false},
		{subscription.KindSlack, "  ", false, false},
	}
	for _, tc := range cases {
		err := ValidateEndpoint(tc.kind, tc.endpoint, tc.strict)
		if (err == nil) != tc.ok {
			t.Errorf("ValidateEndpoint(%s, %q, %v) = %v, want ok=%v", tc.kind, tc.endpoint, tc.strict, err, tc.ok)
		}
	}
}

func TestValidationErrorRedactsSecret(t *testing.T) {
	t.Parallel()
	err := ValidateEndpoint(subscription.KindSlack, "https://example.com/services/T/B/secret", true)
	if err == nil || strings.Contains(err.Error(), "secret") {
		t.Fatalf("err = %v", err)
	}
}
