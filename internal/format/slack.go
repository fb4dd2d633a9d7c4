package format

import (
	"strings"

	"leaderbot/internal/subscription"
)

// SlackPayload is the incoming-webhook request body.
type SlackPayload struct {
	Text   string       `json:"text"`
	Blocks []SlackBlock `json:"blocks"`
}

type SlackBlock struct {
	Type     string      `json:"type"`
	Text     *SlackText  `json:"text,omitempty"`
	Elements []SlackText `json:"elements,omitempty"`
}

type SlackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

const slackBroadcast = "<!channel>"

type slackRenderer struct{}

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func (slackRenderer) bold(s string) string { return "*" + slackEscaper.Replace(s) + "*" }

func (slackRenderer) code(s string) string {
	return "`" + slackEscaper.Replace(strings.ReplaceAll(s, "`", "'")) + "`"
}

func (slackRenderer) link(url, label string) string { return "<" + url + "|" + label + ">" }

func (slackRenderer) render(dest subscription.Destination, c content) Message {
	ping := false
	if s, ok := dest.(subscription.Slack); ok {
		ping = s.PingChannel
	}

	body := strings.Join(c.lines, "\n")
	if ping {
		body = slackBroadcast + "\n" + body
	}
	blocks := []SlackBlock{
		{Type: "header", Text: &SlackText{Type: "plain_text", Text: c.title, Emoji: true}},
		{Type: "section", Text: &SlackText{Type: "mrkdwn", Text: body}},
	}
	if c.url != "" {
		blocks = append(blocks, SlackBlock{Type: "context", Elements: []SlackText{{Type: "mrkdwn", Text: "<" + c.url + "|View on adventofcode.com>"}}})
	}
	if len(c.footer) > 0 {
		els := make([]SlackText, 0, len(c.footer))
		for _, f := range c.footer {
			els = append(els, SlackText{Type: "mrkdwn", Text: f})
		}
		blocks = append(blocks, SlackBlock{Type: "context", Elements: els})
	}

	// text is the notification fallback; the ping must live here too for
	// Slack to notify the channel.
	fallback := c.title
	if ping {
		fallback = slackBroadcast + " " + fallback
	}
	text := plainText(c)
	if ping {
		text = slackBroadcast + " " + text
	}
	return Message{
		Kind:    subscription.KindSlack,
		Title:   c.title,
		Text:    text,
		Payload: SlackPayload{Text: fallback, Blocks: blocks},
	}
}
