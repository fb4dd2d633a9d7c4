package logx

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Config selects sinks and levels. Apply accepts a new Config at any time.
type Config struct {
	Level    string
	Console  bool
	File     FileConfig
	Operator OperatorConfig

	// Out receives console output; nil means stderr.
	Out io.Writer
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// OperatorConfig routes warnings and errors to a chat.
type OperatorConfig struct {
	Enabled    bool
	ChatID     int64
	ThreadID   int
	MinLevel   string
	RatePerSec int
}

// Sender delivers operator log lines to a chat. The Telegram sender in
// internal/transport/telegram implements it.
type Sender interface {
	SendText(ctx context.Context, chatID int64, threadID int, text string) error
}

const defaultLogFile = "./leaderbot.log"

// Service owns the sinks. Loggers it hands out see every Apply.
type Service struct {
	root atomic.Pointer[zerolog.Logger]

	mu   sync.Mutex
	file *os.File
	op   *operator
}

// New applies cfg and returns the service with its root logger. sender may
// be nil when no operator chat is configured.
func New(cfg Config, sender Sender) (*Service, Logger) {
	s := &Service{}
	if sender != nil {
		s.op = newOperator(sender)
	}
	s.Apply(cfg)
	return s, Logger{src: s}
}

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

func (s *Service) Logger() Logger { return Logger{src: s} }

// Apply rebuilds the sink set. Open files from the previous set are closed.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var writers []io.Writer
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	if cfg.Console {
		writers = append(writers, consoleWriter(out))
	}

	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	if cfg.File.Enabled {
		if f, err := openLogFile(cfg.File.Path); err != nil {
			fmt.Fprintf(out, "logx: %v\n", err)
		} else {
			s.file = f
			writers = append(writers, zerolog.SyncWriter(f))
		}
	}

	if cfg.Operator.Enabled {
		switch {
		case s.op == nil:
			fmt.Fprintln(out, "logx: operator sink enabled without a sender")
		case cfg.Operator.ChatID == 0:
			fmt.Fprintln(out, "logx: operator sink enabled without chat_id")
		default:
			s.op.configure(cfg.Operator)
			writers = append(writers, s.op)
		}
	}

	if len(writers) == 0 {
		writers = append(writers, consoleWriter(out))
	}
	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(cfg.Level, LevelInfo)).
		With().Timestamp().Logger()
	s.root.Store(&zl)
}

// Close stops the operator worker after it drains and closes the log file.
func (s *Service) Close() error {
	s.mu.Lock()
	f, op := s.file, s.op
	s.file = nil
	s.mu.Unlock()

	if op != nil {
		op.close()
	}
	if f != nil {
		return f.Close()
	}
	return nil
}

func consoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: timeFormat}
}

func openLogFile(path string) (*os.File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultLogFile
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	return f, nil
}
