package leaderboard

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	logx "leaderbot/pkg/logx"
)

// Source fetchers implement this; *Fetcher is the HTTP one.
type SourceFetcher interface {
	Fetch(ctx context.Context, src Source) (*Leaderboard, error)
}

// Provider serves boards from cache when fresh and fetches otherwise.
type Provider struct {
	fetcher SourceFetcher
	cache   *Cache
	log     logx.Logger
	now     func() time.Time
}

func NewProvider(fetcher SourceFetcher, cache *Cache, log logx.Logger) *Provider {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Provider{fetcher: fetcher, cache: cache, log: log, now: time.Now}
}

// Get returns the board behind sourceURL. A malformed URL yields
// *ValidationError without any I/O; upstream failures yield *FetchError.
func (p *Provider) Get(ctx context.Context, sourceURL string) (*Leaderboard, error) {
	src, err := ParseSource(sourceURL)
	if err != nil {
		return nil, err
	}
	log := p.log.With(logx.String("board", src.ID), logx.Int("year", src.Year))

	snap, ok, err := p.cache.Get(ctx, src.Key)
	if err != nil {
		log.Warn("leaderboard cache read failed; fetching", logx.Err(err))
	}
	if ok && p.cache.Fresh(snap) {
		lb, perr := Parse(snap.Payload)
		if perr == nil {
			log.Debug("leaderboard cache hit",
				logx.Duration("age", snap.Age),
				logx.String("fetched", humanize.RelTime(snap.FetchedAt, p.now(), "ago", "from now")))
			return lb, nil
		}
		log.Warn("cached leaderboard unreadable; refetching", logx.Err(perr))
	}

	start := p.now()
	lb, err := p.fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	log.Debug("leaderboard fetched", logx.Int("members", len(lb.Members)), logx.Duration("took", p.now().Sub(start)))
	if err := p.cache.Put(ctx, src.Key, lb.Raw(), p.now()); err != nil {
		log.Warn("leaderboard cache write failed", logx.Err(err))
	}
	return lb, nil
}
