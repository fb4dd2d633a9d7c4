package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"leaderbot/internal/leaderboard"
	"leaderbot/internal/subscription"
)

const (
	noParticipants = "No participants yet. Be the first to earn a star! ⭐"
	testBody       = "If you can read this, leaderbot can post to this webhook."
	siteURL        = "https://adventofcode.com"
)

// Message is a rendered notification ready for delivery.
type Message struct {
	Kind  subscription.Kind
	Title string
	// Text is a plain rendition for logs and dry runs.
	Text    string
	Payload any
}

// Options carry the per-subscription fields the formatter needs.
type Options struct {
	Destination subscription.Destination
	JoinCode    string
	BoardURL    string
}

// OptionsFor extracts Options from a subscription.
func OptionsFor(sub subscription.Subscription) Options {
	opt := Options{Destination: sub.Destination, JoinCode: strings.TrimSpace(sub.JoinCode)}
	if src, err := leaderboard.ParseSource(sub.SourceURL); err == nil {
		opt.BoardURL = src.ViewURL()
	}
	return opt
}

// content is the destination-neutral body shared by both renderers.
type content struct {
	title     string
	url       string
	lines     []string // ranked lines or the announcement body
	footer    []string
	timestamp time.Time
	color     int
}

// LeaderboardUpdate renders the standings of lb as of now.
func LeaderboardUpdate(opt Options, lb *leaderboard.Leaderboard, now time.Time) Message {
	year := 0
	if lb != nil {
		year = lb.Year()
	}
	st := Rank(lb)
	c := content{
		title:     leaderboardTitle(year),
		url:       opt.BoardURL,
		timestamp: now,
		color:     0x009900,
	}
	rd := rendererFor(opt.Destination)
	if len(st.Top) == 0 {
		c.lines = []string{noParticipants}
	} else {
		c.lines = make([]string, 0, len(st.Top))
		for _, e := range st.Top {
			c.lines = append(c.lines, fmt.Sprintf("%s %s — %d pts (%d⭐)",
				rankMarker(e.Rank), rd.bold(e.Member.DisplayName()), e.Member.LocalScore, e.Member.Stars))
		}
	}
	c.footer = append(c.footer, fmt.Sprintf("👥 %d / %d participants active", st.Active, st.Total))
	if opt.JoinCode != "" {
		c.footer = append(c.footer, "🔑 Join code: "+rd.code(opt.JoinCode))
	}
	c.footer = append(c.footer, "🕒 Updated "+now.Format("Jan 2, 15:04 MST"))
	return rd.render(opt.Destination, c)
}

// PuzzleRelease renders the announcement for day of year.
func PuzzleRelease(opt Options, day, year int) Message {
	link := fmt.Sprintf("%s/%d/day/%d", siteURL, year, day)
	rd := rendererFor(opt.Destination)
	c := content{
		title: fmt.Sprintf("Advent of Code %d · Day %d", year, day),
		url:   link,
		lines: []string{
			fmt.Sprintf("🎄 The puzzle for day %d is unlocked!", day),
			rd.link(link, "Open today's puzzle"),
		},
		color: 0xffff66,
	}
	if opt.JoinCode != "" {
		c.footer = append(c.footer, "🔑 Join code: "+rd.code(opt.JoinCode))
	}
	return rd.render(opt.Destination, c)
}

// Test renders the fixed self-describing verification message.
func Test(dest subscription.Destination) Message {
	rd := rendererFor(dest)
	c := content{
		title: "leaderbot test message",
		lines: []string{testBody},
		color: 0x5865f2,
	}
	return rd.render(dest, c)
}

func leaderboardTitle(year int) string {
	if year <= 0 {
		return "Advent of Code Leaderboard"
	}
	return fmt.Sprintf("Advent of Code %d Leaderboard", year)
}

func itoa(v int) string { return strconv.Itoa(v) }

// renderer is implemented per destination type.
type renderer interface {
	bold(s string) string
	code(s string) string
	link(url, label string) string
	render(dest subscription.Destination, c content) Message
}

func rendererFor(dest subscription.Destination) renderer {
	switch dest.(type) {
	case subscription.Slack:
		return slackRenderer{}
	default:
		return discordRenderer{}
	}
}

func plainText(c content) string {
	var b strings.Builder
	b.WriteString(c.title)
	for _, l := range c.lines {
		b.WriteString("\n")
		b.WriteString(l)
	}
	for _, l := range c.footer {
		b.WriteString("\n")
		b.WriteString(l)
	}
	return b.String()
}
