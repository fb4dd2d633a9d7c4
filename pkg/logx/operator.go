package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	operatorQueue   = 256
	operatorTimeout = 10 * time.Second
	operatorMaxLen  = 3500
	operatorMaxVal  = 600
)

// operator is a zerolog.LevelWriter that forwards events at or above a
// minimum level to a chat. Writes never block; excess events are dropped.
type operator struct {
	sender Sender
	queue  chan string

	mu       sync.Mutex
	chatID   int64
	threadID int
	minLevel zerolog.Level
	limiter  *rate.Limiter

	start  sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func newOperator(sender Sender) *operator {
	return &operator{
		sender:   sender,
		queue:    make(chan string, operatorQueue),
		minLevel: LevelWarn,
		done:     make(chan struct{}),
	}
}

func (o *operator) configure(cfg OperatorConfig) {
	rps := max(1, cfg.RatePerSec)
	o.mu.Lock()
	o.chatID, o.threadID = cfg.ChatID, cfg.ThreadID
	o.minLevel = ParseLevel(cfg.MinLevel, LevelWarn)
	o.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	o.mu.Unlock()

	o.start.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		o.cancel = cancel
		go o.run(ctx)
	})
}

func (o *operator) run(ctx context.Context) {
	defer close(o.done)
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-o.queue:
			o.mu.Lock()
			chatID, threadID := o.chatID, o.threadID
			o.mu.Unlock()
			sctx, cancel := context.WithTimeout(ctx, operatorTimeout)
			_ = o.sender.SendText(sctx, chatID, threadID, text)
			cancel()
		}
	}
}

func (o *operator) close() {
	if o.cancel == nil {
		return
	}
	o.cancel()
	<-o.done
}

func (o *operator) Write(p []byte) (int, error) { return o.WriteLevel(zerolog.NoLevel, p) }

func (o *operator) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	o.mu.Lock()
	skip := level == zerolog.NoLevel || level < o.minLevel || o.limiter == nil || !o.limiter.Allow()
	o.mu.Unlock()
	if skip {
		return len(p), nil
	}
	if text := formatAlert(p); text != "" {
		select {
		case o.queue <- text:
		default:
		}
	}
	return len(p), nil
}

// formatAlert turns one JSON log line into a chat message:
//
//	[ERROR] dispatch: retire subscription failed
//	- err=...
//	- run=...
func formatAlert(p []byte) string {
	var m map[string]any
	if err := json.Unmarshal(p, &m); err != nil {
		return truncate(strings.TrimSpace(string(p)), operatorMaxLen)
	}

	var b strings.Builder
	if lvl, _ := m["level"].(string); lvl != "" {
		b.WriteString("[" + strings.ToUpper(lvl) + "] ")
	}
	if comp, _ := m["comp"].(string); comp != "" {
		b.WriteString(comp + ": ")
	}
	msg, _ := m["message"].(string)
	b.WriteString(msg)

	keys := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case "time", "level", "message", "comp", zerolog.CallerFieldName:
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n- %s=%s", k, truncate(fmt.Sprint(m[k]), operatorMaxVal))
	}
	return truncate(b.String(), operatorMaxLen)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n < 10 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
