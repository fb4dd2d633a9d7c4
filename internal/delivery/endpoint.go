package delivery

import (
	"fmt"
	"net/url"
	"strings"

	"leaderbot/internal/subscription"
	logx "leaderbot/pkg/logx"
)

// ValidationError reports an endpoint that cannot be posted to.
type ValidationError struct {
	Endpoint string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid destination endpoint %q: %s", logx.RedactURL(e.Endpoint), e.Reason)
}

// ValidateEndpoint checks that endpoint is an absolute http(s) URL. Strict
// mode requires https and a host and path of the destination's platform.
func ValidateEndpoint(kind subscription.Kind, endpoint string, strict bool) error {
	raw := strings.TrimSpace(endpoint)
	if raw == "" {
		return &ValidationError{Endpoint: endpoint, Reason: "empty"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Endpoint: endpoint, Reason: err.Error()}
	}
	if !u.IsAbs() || u.Host == "" {
		return &ValidationError{Endpoint: endpoint, Reason: "not an absolute url"}
	}
	if strict && u.Scheme != "https" {
		return &ValidationError{Endpoint: endpoint, Reason: "scheme must be https"}
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return &ValidationError{Endpoint: endpoint, Reason: "unsupported scheme " + u.Scheme}
	}
	if !strict {
		return nil
	}

	host := strings.ToLower(u.Hostname())
	switch kind {
	case subscription.KindDiscord:
		if host != "discord.com" && host != "discordapp.com" && !strings.HasSuffix(host, ".discord.com") {
			return &ValidationError{Endpoint: endpoint, Reason: "not a discord host"}
		}
		if !strings.HasPrefix(u.Path, "/api/webhooks/") {
			return &ValidationError{Endpoint: endpoint, Reason: "not a discord webhook path"}
		}
	case subscription.KindSlack:
		if host != "hooks.slack.com" {
			return &ValidationError{Endpoint: endpoint, Reason: "not a slack host"}
		}
		if !strings.HasPrefix(u.Path, "/services/") {
			return &ValidationError{Endpoint: endpoint, Reason: "not a slack webhook path"}
		}
	default:
		return &ValidationError{Endpoint: endpoint, Reason: fmt.Sprintf("unknown destination kind %q", kind)}
	}
	return nil
}
