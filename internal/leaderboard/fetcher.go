package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"leaderbot/internal/httpx"
	logx "leaderbot/pkg/logx"
)

const maxPayloadBytes = 4 << 20

// DefaultUserAgent identifies the bot to the provider.
const DefaultUserAgent = "leaderbot (private leaderboard notifier)"

// FetcherConfig configures the HTTP fetcher.
type FetcherConfig struct {
	BaseURL   string
	UserAgent string
	Policy    httpx.Policy
}

// Fetcher retrieves leaderboard payloads over HTTP.
type Fetcher struct {
	cfg    FetcherConfig
	client *http.Client
	log    logx.Logger
}

func NewFetcher(cfg FetcherConfig, client *http.Client, log logx.Logger) *Fetcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if client == nil {
		client = &http.Client{}
	}
	// Unauthorized view keys are redirected to the login page; treat the
	// redirect itself as the answer.
	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return &Fetcher{cfg: cfg, client: &c, log: log}
}

// Fetch reads and parses the board for src.
// Every failure is returned as *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (*Leaderboard, error) {
	endpoint := src.JSONURL(f.cfg.BaseURL)
	var lb *Leaderboard
	err := f.cfg.Policy.Do(ctx, f.client, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", f.cfg.UserAgent)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, func(resp *http.Response) error {
		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return &FetchError{Key: src.Key, Status: resp.StatusCode, Msg: describeStatus(resp.StatusCode)}
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
		if err != nil {
			return &FetchError{Key: src.Key, Msg: "read body: " + err.Error(), Err: err}
		}
		parsed, err := Parse(body)
		if err != nil {
			return &FetchError{Key: src.Key, Msg: "unexpected payload (is the view key valid?)", Err: err}
		}
		lb = parsed
		return nil
	}, f.log)
	if err == nil {
		return lb, nil
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		return nil, fe
	}
	return nil, &FetchError{Key: src.Key, Msg: err.Error(), Err: err}
}

func describeStatus(code int) string {
	switch {
	case code >= 300 && code < 400:
		return "redirected (view key rejected)"
	case code == http.StatusNotFound:
		return "leaderboard not found"
	case code == http.StatusTooManyRequests:
		return "rate limited by provider"
	case code >= 500:
		return "provider error"
	default:
		return fmt.Sprintf("unexpected status %s", http.StatusText(code))
	}
}
