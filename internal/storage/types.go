package storage

import (
	"context"
	"errors"
	"time"

	"leaderbot/internal/subscription"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("not found")
)

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (json snapshot + jsonl audit)
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Subscriptions is read-mostly from the dispatcher's point of view: it only
// ever deletes. PutSubscription exists for imports and tests.
type Subscriptions interface {
	ListSubscriptions(ctx context.Context) ([]subscription.Subscription, error)
	GetSubscription(ctx context.Context, id int64) (subscription.Subscription, bool, error)
	DeleteSubscription(ctx context.Context, id int64) error
	// PutSubscription upserts by endpoint and returns the record id.
	PutSubscription(ctx context.Context, s subscription.Subscription) (int64, error)
}

// CacheEntry is the stored leaderboard snapshot for one access key.
type CacheEntry struct {
	Key       string
	Payload   []byte
	FetchedAt time.Time
}

type Cache interface {
	ReadCache(ctx context.Context, key string) (CacheEntry, bool, error)
	// UpsertCache overwrites any previous entry for key.
	UpsertCache(ctx context.Context, key string, payload []byte, fetchedAt time.Time) error
}

type AuditKind string

const (
	AuditSuccess            AuditKind = "success"
	AuditError              AuditKind = "error"
	AuditDestinationRetired AuditKind = "destination_retired"
)

// AuditEntry records one delivery outcome.
// SubscriptionID is 0 when the outcome is not tied to a stored record.
type AuditEntry struct {
	At             time.Time `json:"at"`
	SubscriptionID int64     `json:"subscription_id,omitempty"`
	Kind           AuditKind `json:"kind"`
	Message        string    `json:"message"`
	RunID          string    `json:"run_id,omitempty"`
	Pass           string    `json:"pass,omitempty"`
}

type Audit interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
}

// Store is the persistence API used by the dispatcher and the CLI.
type Store interface {
	Subscriptions
	Cache
	Audit
	Close() error
}
