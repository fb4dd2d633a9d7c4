package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"leaderbot/internal/subscription"
	logx "leaderbot/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.state.json  (subscriptions + cache, rewritten atomically)
//   - <prefix>.audit.jsonl (append-only JSON Lines)
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	statePath string
	auditFile *os.File
	state     fileState
}

type fileState struct {
	NextID        int64                 `json:"next_id"`
	Subscriptions []record              `json:"subscriptions"`
	Cache         map[string]cacheEntry `json:"cache"`
}

type cacheEntry struct {
	Payload   string `json:"payload"` // base64
	FetchedAt int64  `json:"fetched_at"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	st := &fileStore{
		log:       log,
		statePath: prefix + ".state.json",
		state:     fileState{NextID: 1, Cache: map[string]cacheEntry{}},
	}
	if err := st.load(); err != nil {
		return nil, err
	}

	af, err := os.OpenFile(prefix+".audit.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	st.auditFile = af
	return st, nil
}

func (s *fileStore) load() error {
	b, err := os.ReadFile(s.statePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var st fileState
	if err := json.Unmarshal(b, &st); err != nil {
		return err
	}
	if st.Cache == nil {
		st.Cache = map[string]cacheEntry{}
	}
	if st.NextID <= 0 {
		st.NextID = 1
	}
	for _, r := range st.Subscriptions {
		if r.ID >= st.NextID {
			st.NextID = r.ID + 1
		}
	}
	s.state = st
	return nil
}

// commitLocked writes next to a temp file, renames it into place and only
// then makes it the in-memory state.
func (s *fileStore) commitLocked(next fileState) error {
	tmp := s.statePath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(next); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.statePath); err != nil {
		return err
	}
	s.state = next
	return nil
}

// cloneLocked copies the state deep enough that edits to the copy never
// reach s.state.
func (s *fileStore) cloneLocked() fileState {
	next := fileState{
		NextID:        s.state.NextID,
		Subscriptions: append([]record(nil), s.state.Subscriptions...),
		Cache:         make(map[string]cacheEntry, len(s.state.Cache)),
	}
	for k, v := range s.state.Cache {
		next.Cache[k] = v
	}
	return next
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return nil
	}
	err := s.auditFile.Close()
	s.auditFile = nil
	return err
}

func (s *fileStore) ListSubscriptions(ctx context.Context) ([]subscription.Subscription, error) {
	_ = ctx
	s.mu.Lock()
	recs := append([]record(nil), s.state.Subscriptions...)
	s.mu.Unlock()

	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	out := make([]subscription.Subscription, 0, len(recs))
	for _, r := range recs {
		sub, err := r.subscription()
		if err != nil {
			s.log.Warn("skipping unreadable subscription", logx.Err(err))
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

func (s *fileStore) GetSubscription(ctx context.Context, id int64) (subscription.Subscription, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.state.Subscriptions {
		if r.ID == id {
			sub, err := r.subscription()
			return sub, err == nil, err
		}
	}
	return subscription.Subscription{}, false, nil
}

func (s *fileStore) DeleteSubscription(ctx context.Context, id int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.state.Subscriptions {
		if r.ID == id {
			next := s.cloneLocked()
			next.Subscriptions = append(next.Subscriptions[:i], next.Subscriptions[i+1:]...)
			return s.commitLocked(next)
		}
	}
	return ErrNotFound
}

func (s *fileStore) PutSubscription(ctx context.Context, sub subscription.Subscription) (int64, error) {
	_ = ctx
	r := toRecord(sub)
	now := timestamp(time.Now())
	r.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cloneLocked()
	for i, cur := range next.Subscriptions {
		if cur.Endpoint == r.Endpoint {
			r.ID = cur.ID
			r.CreatedAt = cur.CreatedAt
			next.Subscriptions[i] = r
			if err := s.commitLocked(next); err != nil {
				return 0, err
			}
			return r.ID, nil
		}
	}
	r.ID = next.NextID
	next.NextID++
	if r.CreatedAt.Time().IsZero() {
		r.CreatedAt = now
	}
	next.Subscriptions = append(next.Subscriptions, r)
	if err := s.commitLocked(next); err != nil {
		return 0, err
	}
	return r.ID, nil
}

func (s *fileStore) ReadCache(ctx context.Context, key string) (CacheEntry, bool, error) {
	_ = ctx
	s.mu.Lock()
	e, ok := s.state.Cache[key]
	s.mu.Unlock()
	if !ok {
		return CacheEntry{}, false, nil
	}
	payload, err := base64.StdEncoding.DecodeString(e.Payload)
	if err != nil {
		return CacheEntry{}, false, err
	}
	return CacheEntry{Key: key, Payload: payload, FetchedAt: time.UnixMilli(e.FetchedAt)}, true, nil
}

func (s *fileStore) UpsertCache(ctx context.Context, key string, payload []byte, fetchedAt time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cloneLocked()
	next.Cache[key] = cacheEntry{
		Payload:   base64.StdEncoding.EncodeToString(payload),
		FetchedAt: fetchedAt.UnixMilli(),
	}
	return s.commitLocked(next)
}

func (s *fileStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return errors.New("audit file closed")
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}
