package dispatch

import (
	"context"
	"strings"
	"time"

	"leaderbot/internal/delivery"
	"leaderbot/internal/format"
	"leaderbot/internal/subscription"
	logx "leaderbot/pkg/logx"
)

// TestSend describes an ad-hoc delivery that bypasses the store.
type TestSend struct {
	Endpoint    string
	Destination subscription.Destination
	// LeaderboardURL, when set, sends a real leaderboard update instead of
	// the fixed verification message.
	LeaderboardURL string
	JoinCode       string
}

// SendTest delivers one message to ts.Endpoint. The returned error is a
// leaderboard failure (validation or fetch); delivery results are in the
// Outcome.
func (d *Dispatcher) SendTest(ctx context.Context, ts TestSend) (delivery.Outcome, error) {
	dest := ts.Destination
	if dest == nil {
		dest = subscription.Discord{}
	}
	log := d.log.With(logx.String("kind", string(dest.Kind())))

	src := strings.TrimSpace(ts.LeaderboardURL)
	if src == "" {
		log.Info("sending test message")
		return d.deps.Deliverer.DeliverTest(ctx, dest, ts.Endpoint), nil
	}

	lb, err := d.deps.Boards.Get(ctx, src)
	if err != nil {
		return delivery.Outcome{}, err
	}
	opt := format.OptionsFor(subscription.Subscription{Destination: dest, SourceURL: src, JoinCode: ts.JoinCode})
	msg := format.LeaderboardUpdate(opt, lb, d.now().In(d.location()))
	log.Info("sending leaderboard test", logx.String("title", msg.Title))
	return d.deps.Deliverer.Deliver(ctx, dest, ts.Endpoint, msg), nil
}

func (d *Dispatcher) location() *time.Location {
	if d.cfg.Season.Location != nil {
		return d.cfg.Season.Location
	}
	return time.UTC
}
