package leaderboard

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Member is one participant on a private leaderboard.
type Member struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Stars       int    `json:"stars"`
	LocalScore  int    `json:"local_score"`
	GlobalScore int    `json:"global_score"`
	LastStarTS  int64  `json:"last_star_ts"`
}

// DisplayName falls back to the provider's anonymous label.
func (m Member) DisplayName() string {
	if n := strings.TrimSpace(m.Name); n != "" {
		return n
	}
	return "(anonymous user #" + strconv.FormatInt(m.ID, 10) + ")"
}

// Leaderboard is the parsed provider payload.
type Leaderboard struct {
	Event   string            `json:"event"`
	OwnerID int64             `json:"owner_id"`
	Members map[string]Member `json:"members"`

	raw []byte
}

// Raw returns the payload bytes the board was parsed from.
func (l *Leaderboard) Raw() []byte { return l.raw }

// Year parses Event, or returns 0.
func (l *Leaderboard) Year() int {
	y, err := strconv.Atoi(strings.TrimSpace(l.Event))
	if err != nil {
		return 0
	}
	return y
}

// Parse decodes a provider payload.
func Parse(payload []byte) (*Leaderboard, error) {
	var lb Leaderboard
	if err := json.Unmarshal(payload, &lb); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}
	if lb.Members == nil {
		return nil, fmt.Errorf("decode leaderboard: members missing")
	}
	for k, m := range lb.Members {
		if m.ID == 0 {
			if id, err := strconv.ParseInt(k, 10, 64); err == nil {
				m.ID = id
				lb.Members[k] = m
			}
		}
	}
	lb.raw = append([]byte(nil), payload...)
	return &lb, nil
}
