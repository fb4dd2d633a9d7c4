package dispatch

import (
	"strings"
	"time"

	"leaderbot/internal/delivery"
	"leaderbot/internal/window"
)

// Pass names the two halves of a run.
type Pass string

const (
	PassRelease Pass = "release"
	PassUpdate  Pass = "update"
)

// Counts aggregates the outcomes of one pass.
type Counts struct {
	Success int `json:"success"`
	Errors  int `json:"errors"`
	Retired int `json:"retired"`
	DryRun  int `json:"dry_run,omitempty"`
}

// Total is the number of subscriptions the pass touched.
func (c Counts) Total() int { return c.Success + c.Errors + c.Retired + c.DryRun }

func (c *Counts) add(r Record) {
	switch {
	case r.DryRun:
		c.DryRun++
	case r.Outcome.Status == delivery.Success:
		c.Success++
	case r.Outcome.Status == delivery.PermanentFailure && r.Retired:
		c.Retired++
	default:
		c.Errors++
	}
}

// Record is one subscription's result within a pass.
type Record struct {
	Pass           Pass             `json:"pass"`
	SubscriptionID int64            `json:"subscription_id"`
	Title          string           `json:"title,omitempty"`
	Outcome        delivery.Outcome `json:"-"`
	Result         string           `json:"result"`
	DryRun         bool             `json:"dry_run,omitempty"`
	// Retired is set once the subscription was actually deleted.
	Retired bool `json:"retired,omitempty"`
}

// Summary describes one completed run.
type Summary struct {
	RunID      string        `json:"run_id"`
	Window     window.Window `json:"window"`
	DryRun     bool          `json:"dry_run"`
	InRelease  bool          `json:"release_season"`
	InExtended bool          `json:"extended_season"`
	Release    Counts        `json:"release"`
	Update     Counts        `json:"update"`
	Deliveries []Record      `json:"deliveries"`
	Duration   time.Duration `json:"duration"`
}

// Noop reports a run in which nothing was due.
func (s Summary) Noop() bool { return len(s.Deliveries) == 0 }

// Titles lists the rendered titles in delivery order.
func (s Summary) Titles() []string {
	out := make([]string, 0, len(s.Deliveries))
	for _, r := range s.Deliveries {
		out = append(out, r.Title)
	}
	return out
}

func (s *Summary) record(r Record) {
	switch {
	case r.DryRun:
		r.Result = "dry_run"
	case r.Retired:
		r.Result = "retired"
	default:
		r.Result = r.Outcome.String()
	}
	s.Deliveries = append(s.Deliveries, r)
	if r.Pass == PassRelease {
		s.Release.add(r)
	} else {
		s.Update.add(r)
	}
}

// Text renders a short multi-line report for the CLI.
func (s Summary) Text() string {
	var b strings.Builder
	b.WriteString("run " + s.RunID + " at " + s.Window.String())
	if s.DryRun {
		b.WriteString(" (dry run)")
	}
	b.WriteString("\n")
	if s.Noop() {
		b.WriteString("nothing due\n")
	}
	for _, r := range s.Deliveries {
		b.WriteString("  " + string(r.Pass) + " #" + itoa64(r.SubscriptionID) + " " + r.Title + ": " + r.Result + "\n")
	}
	b.WriteString("release: " + countsText(s.Release) + "\n")
	b.WriteString("update:  " + countsText(s.Update) + "\n")
	b.WriteString("took " + s.Duration.Round(time.Millisecond).String())
	return b.String()
}

func countsText(c Counts) string {
	t := itoa(c.Success) + " ok, " + itoa(c.Errors) + " errors, " + itoa(c.Retired) + " retired"
	if c.DryRun > 0 {
		t += ", " + itoa(c.DryRun) + " dry-run"
	}
	return t
}
