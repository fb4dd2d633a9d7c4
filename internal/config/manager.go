package config

import (
	"encoding/json"
	"hash/fnv"
	"os"
	"sync"
	"time"

	logx "leaderbot/pkg/logx"
)

// Manager loads the config file and, in serve mode, watches it for changes.
type Manager struct {
	path string

	mu       sync.RWMutex
	cfg      *Config
	settings *Settings
	lastHash uint64

	subsMu sync.Mutex
	subs   []chan *Settings

	log      logx.Logger
	debounce time.Duration
}

func NewManager(path string) *Manager {
	return &Manager{path: path, debounce: 250 * time.Millisecond}
}

func (m *Manager) SetLogger(log logx.Logger) { m.log = log }

func (m *Manager) Path() string { return m.path }

// Parse reads and strictly decodes the file. Environment references are
// expanded before decoding.
func (m *Manager) Parse() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	return Decode(m.path, b)
}

// Load parses, resolves and commits the file.
func (m *Manager) Load() (*Settings, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	s, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	m.commit(cfg, s)
	return s, nil
}

func (m *Manager) commit(cfg *Config, s *Settings) {
	m.mu.Lock()
	m.cfg = cfg
	m.settings = s
	m.lastHash = hashConfig(cfg)
	m.mu.Unlock()
}

// Get returns the last committed settings.
func (m *Manager) Get() *Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

func (m *Manager) raw() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// Subscribe returns a channel receiving every committed reload.
func (m *Manager) Subscribe(buffer int) chan *Settings {
	ch := make(chan *Settings, buffer)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

func (m *Manager) Unsubscribe(ch chan *Settings) {
	if ch == nil {
		return
	}
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for i, s := range m.subs {
		if s == ch {
			last := len(m.subs) - 1
			m.subs[i] = m.subs[last]
			m.subs[last] = nil
			m.subs = m.subs[:last]
			close(ch)
			return
		}
	}
}

// publish delivers the newest settings, dropping one stale item when a
// subscriber is behind.
func (m *Manager) publish(s *Settings) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
			m.log.Debug("config update dropped (subscriber slow)", logx.Int("queue_cap", cap(ch)))
		}
	}
}

// reload parses the file and publishes it when content changed and it
// resolves cleanly.
func (m *Manager) reload() {
	cfg, err := m.Parse()
	if err != nil {
		m.log.Warn("config parse failed", logx.String("path", m.path), logx.Err(err))
		return
	}
	h := hashConfig(cfg)
	m.mu.RLock()
	unchanged := h != 0 && h == m.lastHash
	m.mu.RUnlock()
	if unchanged {
		m.log.Debug("config unchanged; skipping publish", logx.String("path", m.path))
		return
	}
	s, err := cfg.Resolve()
	if err != nil {
		m.log.Warn("config rejected", logx.String("path", m.path), logx.Err(err))
		return
	}
	old := m.raw()
	m.commit(cfg, s)
	m.publish(s)
	m.log.Info("config reloaded", logx.String("path", m.path), logx.Strings("changed", ChangedSections(old, cfg)))
}
