package observ

import (
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogConfig selects level and output format for the process logger.
type LogConfig struct {
	Level  string // debug | info | warn | error
	Format string // json | console
}

var (
	logMu  sync.RWMutex
	logger = newLogger(os.Stdout, LogConfig{Level: "info", Format: "json"})
)

func newLogger(w io.Writer, cfg LogConfig) zerolog.Logger {
	zerolog.TimestampFieldName = "ts"
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if strings.EqualFold(cfg.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// InitLogger replaces the process logger. Output goes to stdout.
func InitLogger(cfg LogConfig) {
	logMu.Lock()
	defer logMu.Unlock()
	logger = newLogger(os.Stdout, cfg)
}

// SetLogOutput redirects logging, mostly for tests.
func SetLogOutput(w io.Writer, cfg LogConfig) {
	logMu.Lock()
	defer logMu.Unlock()
	logger = newLogger(w, cfg)
}

// Logger exposes the underlying zerolog logger.
func Logger() *zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	l := logger
	return &l
}

// Log writes one info-level event line with the given fields.
func Log(event string, kv map[string]any) {
	emit(Logger().Info(), event, kv)
}

// Debug writes a debug-level event.
func Debug(event string, kv map[string]any) {
	emit(Logger().Debug(), event, kv)
}

// Warn writes a warn-level event.
func Warn(event string, kv map[string]any) {
	emit(Logger().Warn(), event, kv)
}

// Error writes an error-level event carrying err.
func Error(event string, err error, kv map[string]any) {
	emit(Logger().Error().Err(err), event, kv)
}

func emit(e *zerolog.Event, event string, kv map[string]any) {
	if e == nil {
		return
	}
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e = e.Interface(k, kv[k])
	}
	e.Str("event", event).Send()
}
