package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"leaderbot/internal/subscription"
	logx "leaderbot/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrations string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if _, err := db.ExecContext(context.Background(), migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const subscriptionColumns = `id, endpoint, kind, mention_id, ping_channel, hours, source_url, join_code, release_hour, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (subscription.Subscription, error) {
	var (
		r         record
		mention   sql.NullString
		joinCode  sql.NullString
		release   sql.NullInt64
		hoursRaw  string
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&r.ID, &r.Endpoint, &r.Kind, &mention, &r.PingChannel, &hoursRaw,
		&r.SourceURL, &joinCode, &release, &createdAt, &updatedAt); err != nil {
		return subscription.Subscription{}, err
	}
	hours, err := decodeHours(hoursRaw)
	if err != nil {
		return subscription.Subscription{}, fmt.Errorf("subscription %d: %w", r.ID, err)
	}
	r.Hours = hours
	r.MentionID = mention.String
	r.JoinCode = joinCode.String
	if release.Valid {
		h := int(release.Int64)
		r.ReleaseHour = &h
	}
	ca, _ := parseTimestamp(createdAt)
	ua, _ := parseTimestamp(updatedAt)
	r.CreatedAt, r.UpdatedAt = timestamp(ca), timestamp(ua)
	return r.subscription()
}

func (s *sqliteStore) ListSubscriptions(ctx context.Context) ([]subscription.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			// One corrupt row must not hide every other subscription.
			s.log.Warn("skipping unreadable subscription", logx.Err(err))
			continue
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetSubscription(ctx context.Context, id int64) (subscription.Subscription, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return subscription.Subscription{}, false, nil
	}
	if err != nil {
		return subscription.Subscription{}, false, err
	}
	return sub, true, nil
}

func (s *sqliteStore) DeleteSubscription(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) PutSubscription(ctx context.Context, sub subscription.Subscription) (int64, error) {
	r := toRecord(sub)
	hours, err := encodeHours(r.Hours)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	if r.CreatedAt.Time().IsZero() {
		r.CreatedAt = timestamp(now)
	}
	var release any
	if r.ReleaseHour != nil {
		release = *r.ReleaseHour
	}
	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO subscriptions(endpoint, kind, mention_id, ping_channel, hours, source_url, join_code, release_hour, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(endpoint) DO UPDATE SET
		   kind=excluded.kind, mention_id=excluded.mention_id, ping_channel=excluded.ping_channel,
		   hours=excluded.hours, source_url=excluded.source_url, join_code=excluded.join_code,
		   release_hour=excluded.release_hour, updated_at=excluded.updated_at
		 RETURNING id`,
		r.Endpoint, r.Kind, nullStr(r.MentionID), r.PingChannel, hours, r.SourceURL,
		nullStr(r.JoinCode), release, r.CreatedAt.String(), timestamp(now).String(),
	).Scan(&id)
	return id, err
}

func (s *sqliteStore) ReadCache(ctx context.Context, key string) (CacheEntry, bool, error) {
	var (
		payload []byte
		ms      int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT payload, fetched_at FROM leaderboard_cache WHERE key = ?`, key).Scan(&payload, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return CacheEntry{}, false, nil
	}
	if err != nil {
		return CacheEntry{}, false, err
	}
	return CacheEntry{Key: key, Payload: payload, FetchedAt: time.UnixMilli(ms)}, true, nil
}

func (s *sqliteStore) UpsertCache(ctx context.Context, key string, payload []byte, fetchedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leaderboard_cache(key, payload, fetched_at) VALUES(?,?,?)
		 ON CONFLICT(key) DO UPDATE SET payload=excluded.payload, fetched_at=excluded.fetched_at`,
		key, payload, fetchedAt.UnixMilli(),
	)
	return err
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	var subID any
	if e.SubscriptionID != 0 {
		subID = e.SubscriptionID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, subscription_id, kind, message, run_id, pass) VALUES(?,?,?,?,?,?)`,
		timestamp(e.At).String(), subID, string(e.Kind), e.Message, nullStr(e.RunID), nullStr(e.Pass),
	)
	return err
}

// listAudit is used by tests.
func (s *sqliteStore) listAudit(ctx context.Context) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT at, subscription_id, kind, message, run_id, pass FROM audit ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditEntry
	for rows.Next() {
		var (
			e     AuditEntry
			at    string
			subID sql.NullInt64
			kind  string
			runID sql.NullString
			pass  sql.NullString
		)
		if err := rows.Scan(&at, &subID, &kind, &e.Message, &runID, &pass); err != nil {
			return nil, err
		}
		e.At, _ = parseTimestamp(at)
		e.SubscriptionID = subID.Int64
		e.Kind = AuditKind(kind)
		e.RunID, e.Pass = runID.String, pass.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
