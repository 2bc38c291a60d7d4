package logger

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	charmlog "github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes how the process logger should behave.
type Config struct {
	Level       string
	Format      string
	OutputPaths []string
	Access      AccessConfig
}

// AccessConfig controls the per-request access log.
type AccessConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type state struct {
	logger  *slog.Logger
	access  *slog.Logger
	closers []io.Closer
}

var (
	mu      sync.RWMutex
	current *state
	once    sync.Once
	initErr error
)

// Init configures the global logger instances. Only the first call has effect.
func Init(cfg Config) error {
	once.Do(func() {
		st, err := build(cfg)
		if err != nil {
			initErr = err
			return
		}
		mu.Lock()
		current = st
		mu.Unlock()
		slog.SetDefault(st.logger)
	})
	return initErr
}

func build(cfg Config) (*state, error) {
	st := &state{}
	level := parseLevel(cfg.Level)

	writer, err := st.buildWriter(cfg.OutputPaths, cfg.Access)
	if err != nil {
		st.close()
		return nil, err
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level})
	case "console":
		handler = charmlog.NewWithOptions(writer, charmlog.Options{
			ReportTimestamp: true,
			ReportCaller:    level == slog.LevelDebug,
			Level:           charmlog.Level(level),
		})
	default:
		handler = slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level, AddSource: true})
	}
	st.logger = slog.New(handler)

	if cfg.Access.Enabled {
		access, err := st.buildAccessLogger(cfg.Access)
		if err != nil {
			st.close()
			return nil, err
		}
		st.access = access
	}
	return st, nil
}

func (st *state) buildWriter(outputs []string, access AccessConfig) (io.Writer, error) {
	if len(outputs) == 0 {
		return os.Stdout, nil
	}
	writers := make([]io.Writer, 0, len(outputs))
	for _, out := range outputs {
		switch strings.ToLower(out) {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return nil, err
			}
			file := &lumberjack.Logger{
				Filename:   out,
				MaxSize:    withDefault(access.MaxSizeMB, 100),
				MaxBackups: withDefault(access.MaxBackups, 7),
				MaxAge:     withDefault(access.MaxAgeDays, 30),
			}
			st.closers = append(st.closers, file)
			writers = append(writers, file)
		}
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func (st *state) buildAccessLogger(cfg AccessConfig) (*slog.Logger, error) {
	if cfg.Path == "" {
		return nil, errors.New("access log path cannot be empty when enabled")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	writer := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    withDefault(cfg.MaxSizeMB, 100),
		MaxBackups: withDefault(cfg.MaxBackups, 7),
		MaxAge:     withDefault(cfg.MaxAgeDays, 30),
		Compress:   cfg.Compress,
	}
	st.closers = append(st.closers, writer)
	return slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: slog.LevelInfo})), nil
}

func (st *state) close() error {
	var err error
	for _, closer := range st.closers {
		err = errors.Join(err, closer.Close())
	}
	st.closers = nil
	return err
}

func withDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// L returns the process logger, initialising defaults on first use.
func L() *slog.Logger {
	mu.RLock()
	st := current
	mu.RUnlock()
	if st == nil {
		if err := Init(Config{}); err != nil {
			return slog.Default()
		}
		mu.RLock()
		st = current
		mu.RUnlock()
	}
	if st == nil {
		return slog.Default()
	}
	return st.logger
}

// Access returns the access logger, or nil when the access log is disabled.
func Access() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		return nil
	}
	return current.access
}

// Sync flushes and closes file outputs.
func Sync() error {
	mu.RLock()
	st := current
	mu.RUnlock()
	if st == nil {
		return nil
	}
	return st.close()
}

// Named returns a child logger tagged with the provided component name.
func Named(name string) *slog.Logger {
	return L().With(slog.String("component", name))
}
