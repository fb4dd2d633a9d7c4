package leaderboard

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// DefaultBaseURL is the provider origin.
const DefaultBaseURL = "https://adventofcode.com"

var rePrivateView = regexp.MustCompile(`^/(\d{4})/leaderboard/private/view/(\d+)(?:\.json)?/?$`)

var reViewKey = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Source identifies one private leaderboard.
type Source struct {
	Year int
	ID   string
	// Key is the view_key access key; it also keys the cache.
	Key string
}

// ParseSource validates raw against the provider's private-view URL shape.
func ParseSource(raw string) (Source, error) {
	s := strings.TrimSpace(raw)
	u, err := url.Parse(s)
	if err != nil {
		return Source{}, &ValidationError{URL: raw, Reason: err.Error()}
	}
	if u.Scheme != "https" || !strings.EqualFold(u.Host, "adventofcode.com") {
		return Source{}, &ValidationError{URL: raw, Reason: "must be an https://adventofcode.com link"}
	}
	m := rePrivateView.FindStringSubmatch(u.Path)
	if m == nil {
		return Source{}, &ValidationError{URL: raw, Reason: "not a private leaderboard view"}
	}
	key := u.Query().Get("view_key")
	if key == "" {
		return Source{}, &ValidationError{URL: raw, Reason: "missing view_key parameter"}
	}
	if !reViewKey.MatchString(key) {
		return Source{}, &ValidationError{URL: raw, Reason: "malformed view_key"}
	}
	year, _ := strconv.Atoi(m[1])
	return Source{Year: year, ID: m[2], Key: key}, nil
}

// JSONURL derives the read-only JSON endpoint under base.
func (s Source) JSONURL(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return base + "/" + strconv.Itoa(s.Year) + "/leaderboard/private/view/" + s.ID +
		".json?view_key=" + url.QueryEscape(s.Key)
}

// ViewURL is the human-facing page for the board.
func (s Source) ViewURL() string {
	return DefaultBaseURL + "/" + strconv.Itoa(s.Year) + "/leaderboard/private/view/" + s.ID
}
