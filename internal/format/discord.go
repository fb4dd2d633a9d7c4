package format

import (
	"strings"
	"time"

	"leaderbot/internal/subscription"
)

// DiscordPayload is the execute-webhook request body.
type DiscordPayload struct {
	Content         string                 `json:"content,omitempty"`
	Embeds          []DiscordEmbed         `json:"embeds"`
	AllowedMentions DiscordAllowedMentions `json:"allowed_mentions"`
}

type DiscordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	URL         string         `json:"url,omitempty"`
	Color       int            `json:"color,omitempty"`
	Footer      *DiscordFooter `json:"footer,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

type DiscordFooter struct {
	Text string `json:"text"`
}

// DiscordAllowedMentions keeps member names from pinging anyone; only the
// configured role may be mentioned.
type DiscordAllowedMentions struct {
	Parse []string `json:"parse"`
	Roles []string `json:"roles,omitempty"`
}

type discordRenderer struct{}

var discordEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "~", `\~`, "|", `\|`)

func (discordRenderer) bold(s string) string { return "**" + discordEscaper.Replace(s) + "**" }

func (discordRenderer) code(s string) string { return "`" + strings.ReplaceAll(s, "`", "'") + "`" }

func (discordRenderer) link(url, label string) string { return "[" + label + "](" + url + ")" }

func (discordRenderer) render(dest subscription.Destination, c content) Message {
	p := DiscordPayload{AllowedMentions: DiscordAllowedMentions{Parse: []string{}}}
	if d, ok := dest.(subscription.Discord); ok {
		if m := d.Mention(); m != "" {
			p.Content = m
			p.AllowedMentions.Roles = []string{strings.TrimSpace(d.MentionID)}
		}
	}
	e := DiscordEmbed{
		Title:       c.title,
		Description: strings.Join(c.lines, "\n"),
		URL:         c.url,
		Color:       c.color,
	}
	if len(c.footer) > 0 {
		e.Footer = &DiscordFooter{Text: strings.Join(c.footer, " • ")}
	}
	if !c.timestamp.IsZero() {
		e.Timestamp = c.timestamp.UTC().Format(time.RFC3339)
	}
	p.Embeds = []DiscordEmbed{e}

	text := plainText(c)
	if p.Content != "" {
		text = p.Content + " " + text
	}
	return Message{Kind: subscription.KindDiscord, Title: c.title, Text: text, Payload: p}
}
