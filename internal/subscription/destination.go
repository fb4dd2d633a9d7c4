package subscription

import (
	"fmt"
	"strings"
)

// Kind names a destination type.
type Kind string

const (
	KindDiscord Kind = "discord"
	KindSlack   Kind = "slack"
)

// ParseKind accepts the canonical names (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindDiscord:
		return KindDiscord, nil
	case KindSlack:
		return KindSlack, nil
	default:
		return "", fmt.Errorf("unknown destination kind %q", s)
	}
}

// Destination is a closed sum type: Discord or Slack.
// Switch on the concrete type to reach type-specific fields.
type Destination interface {
	Kind() Kind
	// PermanentStatus reports whether an HTTP status means the webhook is gone.
	PermanentStatus(code int) bool
	isDestination()
}

// Discord webhooks may mention a role when a message is posted.
type Discord struct {
	MentionID string
}

func (Discord) Kind() Kind { return KindDiscord }

func (Discord) PermanentStatus(code int) bool { return code == 404 }

func (Discord) isDestination() {}

// Mention renders the role mention, or "" when none is set.
func (d Discord) Mention() string {
	id := strings.TrimSpace(d.MentionID)
	if id == "" {
		return ""
	}
	return "<@&" + id + ">"
}

// Slack incoming webhooks may ping the whole channel.
type Slack struct {
	PingChannel bool
}

func (Slack) Kind() Kind { return KindSlack }

// Slack answers 404 no_service for revoked hooks and 410 for archived channels.
func (Slack) PermanentStatus(code int) bool { return code == 404 || code == 410 }

func (Slack) isDestination() {}

// NewDestination builds the variant for kind from the flattened storage columns.
func NewDestination(kind Kind, mentionID string, ping bool) (Destination, error) {
	switch kind {
	case KindDiscord:
		return Discord{MentionID: strings.TrimSpace(mentionID)}, nil
	case KindSlack:
		return Slack{PingChannel: ping}, nil
	default:
		return nil, fmt.Errorf("unknown destination kind %q", kind)
	}
}

// Flatten is the inverse of NewDestination.
func Flatten(d Destination) (kind Kind, mentionID string, ping bool) {
	switch v := d.(type) {
	case Discord:
		return KindDiscord, v.MentionID, false
	case Slack:
		return KindSlack, "", v.PingChannel
	default:
		return "", "", false
	}
}
