package storage

import (
	"encoding/json"
	"fmt"

	"leaderbot/internal/subscription"
)

// record is the flattened, schema-stable shape of a subscription used by both
// drivers (sqlite columns, file snapshot entries).
type record struct {
	ID          int64     `json:"id"`
	Endpoint    string    `json:"endpoint"`
	Kind        string    `json:"kind"`
	MentionID   string    `json:"mention_id,omitempty"`
	PingChannel bool      `json:"ping_channel,omitempty"`
	Hours       []int     `json:"hours"`
	SourceURL   string    `json:"source_url"`
	JoinCode    string    `json:"join_code,omitempty"`
	ReleaseHour *int      `json:"release_hour,omitempty"`
	CreatedAt   timestamp `json:"created_at"`
	UpdatedAt   timestamp `json:"updated_at"`
}

func toRecord(s subscription.Subscription) record {
	kind, mention, ping := subscription.Flatten(s.Destination)
	r := record{
		ID:          s.ID,
		Endpoint:    s.Endpoint,
		Kind:        string(kind),
		MentionID:   mention,
		PingChannel: ping,
		Hours:       subscription.NormalizeHours(s.Hours),
		SourceURL:   s.SourceURL,
		JoinCode:    s.JoinCode,
		CreatedAt:   timestamp(s.CreatedAt),
		UpdatedAt:   timestamp(s.UpdatedAt),
	}
	if s.ReleaseEnabled() {
		h := s.ReleaseHour
		r.ReleaseHour = &h
	}
	return r
}

func (r record) subscription() (subscription.Subscription, error) {
	dest, err := subscription.NewDestination(subscription.Kind(r.Kind), r.MentionID, r.PingChannel)
	if err != nil {
		return subscription.Subscription{}, fmt.Errorf("subscription %d: %w", r.ID, err)
	}
	release := subscription.ReleaseDisabled
	if r.ReleaseHour != nil {
		release = *r.ReleaseHour
	}
	return subscription.Subscription{
		ID:          r.ID,
		Endpoint:    r.Endpoint,
		Destination: dest,
		Hours:       subscription.NormalizeHours(r.Hours),
		SourceURL:   r.SourceURL,
		JoinCode:    r.JoinCode,
		ReleaseHour: release,
		CreatedAt:   r.CreatedAt.Time(),
		UpdatedAt:   r.UpdatedAt.Time(),
	}, nil
}

func encodeHours(hours []int) (string, error) {
	b, err := json.Marshal(subscription.NormalizeHours(hours))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeHours(raw string) ([]int, error) {
	var hours []int
	if err := json.Unmarshal([]byte(raw), &hours); err != nil {
		return nil, fmt.Errorf("decode hours %q: %w", raw, err)
	}
	return subscription.NormalizeHours(hours), nil
}
