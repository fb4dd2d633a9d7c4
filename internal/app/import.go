package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	yaml "go.yaml.in/yaml/v3"

	"leaderbot/internal/storage"
	"leaderbot/internal/subscription"
	logx "leaderbot/pkg/logx"
)

// importEntry is one subscription in an import file. JSON files parse as
// YAML too.
type importEntry struct {
	Endpoint    string `yaml:"endpoint"`
	Kind        string `yaml:"kind"`
	MentionID   string `yaml:"mention_id"`
	PingChannel bool   `yaml:"ping_channel"`
	Hours       []int  `yaml:"hours"`
	SourceURL   string `yaml:"source_url"`
	JoinCode    string `yaml:"join_code"`
	ReleaseHour *int   `yaml:"release_hour"`
}

type importFile struct {
	Subscriptions []importEntry `yaml:"subscriptions"`
}

func (e importEntry) subscription() (subscription.Subscription, error) {
	kind, err := subscription.ParseKind(e.Kind)
	if err != nil {
		return subscription.Subscription{}, err
	}
	dest, err := subscription.NewDestination(kind, e.MentionID, e.PingChannel)
	if err != nil {
		return subscription.Subscription{}, err
	}
	s := subscription.Subscription{
		Endpoint:    e.Endpoint,
		Destination: dest,
		Hours:       e.Hours,
		SourceURL:   e.SourceURL,
		JoinCode:    e.JoinCode,
		ReleaseHour: subscription.ReleaseDisabled,
	}
	if e.ReleaseHour != nil {
		s.ReleaseHour = *e.ReleaseHour
	}
	return s, s.Validate()
}

// ImportResult counts what an import did.
type ImportResult struct {
	Stored  int
	Skipped int
}

// parseImport decodes an import file body.
func parseImport(data []byte) ([]importEntry, error) {
	var f importFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse import file: %w", err)
	}
	if len(f.Subscriptions) == 0 {
		return nil, errors.New("import file has no subscriptions")
	}
	return f.Subscriptions, nil
}

// Import upserts the subscriptions listed in path. Invalid entries are
// logged and skipped.
func (a *App) Import(ctx context.Context, path string) (ImportResult, error) {
	if a.store == nil {
		return ImportResult{}, storage.ErrDisabled
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ImportResult{}, err
	}
	entries, err := parseImport(data)
	if err != nil {
		return ImportResult{}, err
	}
	return importInto(ctx, a.store, entries, a.root.Component("import"))
}

func importInto(ctx context.Context, store storage.Subscriptions, entries []importEntry, log logx.Logger) (ImportResult, error) {
	var res ImportResult
	for i, e := range entries {
		s, err := e.subscription()
		if err != nil {
			res.Skipped++
			log.Warn("import entry rejected", logx.Int("index", i), logx.Err(err))
			continue
		}
		id, err := store.PutSubscription(ctx, s)
		if err != nil {
			return res, fmt.Errorf("store entry %d: %w", i, err)
		}
		res.Stored++
		log.Info("subscription stored", logx.Int64("id", id), logx.String("kind", string(s.Kind())))
	}
	return res, nil
}
