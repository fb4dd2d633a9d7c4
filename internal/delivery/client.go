package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"leaderbot/internal/format"
	"leaderbot/internal/httpx"
	"leaderbot/internal/subscription"
	logx "leaderbot/pkg/logx"
)

const DefaultUserAgent = "leaderbot (webhook delivery)"

// Config configures the client.
type Config struct {
	Policy      httpx.Policy
	UserAgent   string
	StrictHosts bool // require the platform's own webhook host
}

// Client posts rendered messages to webhooks.
type Client struct {
	cfg    Config
	client *http.Client
	log    logx.Logger
}

func NewClient(cfg Config, client *http.Client, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Client{cfg: cfg, client: client, log: log}
}

// Deliver posts msg to endpoint and classifies the result using dest's
// notion of a permanent status.
func (c *Client) Deliver(ctx context.Context, dest subscription.Destination, endpoint string, msg format.Message) Outcome {
	if dest == nil {
		return transient(0, "no destination type", nil)
	}
	log := c.log.With(logx.String("kind", string(dest.Kind())), logx.URL("endpoint", endpoint))

	if err := ValidateEndpoint(dest.Kind(), endpoint, c.cfg.StrictHosts); err != nil {
		log.Warn("delivery skipped", logx.Err(err))
		return transient(0, err.Error(), err)
	}
	body, err := json.Marshal(msg.Payload)
	if err != nil {
		return transient(0, "encode payload: "+err.Error(), err)
	}

	var out Outcome
	err = c.cfg.Policy.Do(ctx, c.client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSpace(endpoint), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", c.cfg.UserAgent)
		return req, nil
	}, func(resp *http.Response) error {
		out = classify(dest, resp)
		return nil
	}, log)
	if err != nil {
		var te *httpx.TransportError
		if errors.As(err, &te) {
			out = transient(0, "transport: "+te.Err.Error(), err)
		} else {
			out = transient(0, err.Error(), err)
		}
	}

	switch out.Status {
	case Success:
		log.Debug("delivered", logx.String("title", msg.Title), logx.Int("status", out.Code))
	case PermanentFailure:
		log.Warn("destination gone", logx.Int("status", out.Code))
	default:
		log.Warn("delivery failed", logx.String("msg", out.Message), logx.Int("status", out.Code))
	}
	return out
}

// DeliverTest sends the fixed verification message; no leaderboard is needed.
func (c *Client) DeliverTest(ctx context.Context, dest subscription.Destination, endpoint string) Outcome {
	return c.Deliver(ctx, dest, endpoint, format.Test(dest))
}

func classify(dest subscription.Destination, resp *http.Response) Outcome {
	code := resp.StatusCode
	snippet := readSnippet(resp.Body)
	switch {
	case code >= 200 && code < 300:
		return succeeded(code)
	case dest.PermanentStatus(code):
		return gone(code)
	case code == http.StatusTooManyRequests:
		msg := "rate limited"
		if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
			msg += " (Retry-After: " + ra + ")"
		}
		return transient(code, msg, nil)
	default:
		msg := fmt.Sprintf("unexpected status %d %s", code, http.StatusText(code))
		if snippet != "" {
			msg += ": " + snippet
		}
		return transient(code, msg, nil)
	}
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "…"
	}
	return strings.Join(strings.Fields(s), " ")
}
