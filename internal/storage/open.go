package storage

import (
	"fmt"
	"sort"
	"strings"

	logx "leaderbot/pkg/logx"
)

type opener func(Config, logx.Logger) (Store, error)

var drivers = map[string]opener{
	"file":    openFile,
	"sqlite":  openSQLite,
	"sqlite3": openSQLite,
}

// Open initializes the configured store. An empty driver or "none" yields
// ErrDisabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if name == "" || name == "none" {
		return nil, ErrDisabled
	}
	open, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("unknown storage driver %q (known: %s)", cfg.Driver, strings.Join(driverNames(), ", "))
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	st, err := open(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("%s store: %w", name, err)
	}
	log.Debug("store opened", logx.String("driver", name), logx.String("path", cfg.Path))
	return st, nil
}

func driverNames() []string {
	out := make([]string, 0, len(drivers))
	for k := range drivers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
