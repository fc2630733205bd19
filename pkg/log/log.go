package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	charmlog "github.com/charmbracelet/log"
)

// Logger represents a named logger with helper methods.
type Logger struct {
	name string
	cl   *charmlog.Logger
}

// writerHolder wraps an io.Writer so that atomic.Value always stores the same
// concrete type, avoiding the "inconsistently typed value" panic when changing
// from *os.File to *bytes.Buffer (or any other writer) in tests or runtime config.
type writerHolder struct {
	w io.Writer
}

var (
	// globalDebug holds global debug enablement.
	globalDebug atomic.Bool

	// serviceDebug stores per-service debug overrides.
	serviceDebug sync.Map // map[string]*atomic.Bool

	// loggers caches created named loggers.
	loggers sync.Map // map[string]*Logger

	// outputWriter holds the destination for all loggers (wrapped in writerHolder).
	outputWriter atomic.Value // writerHolder
)

func init() {
	outputWriter.Store(writerHolder{w: os.Stderr})
}

// ForService returns (and memoizes) a named logger for the given service or
// subsystem. The name SHOULD be stable (e.g. "crawler", "api").
func ForService(name string) *Logger {
	if name == "" {
		name = "unknown"
	}
	if l, ok := loggers.Load(name); ok {
		return l.(*Logger)
	}
	current := outputWriter.Load().(writerHolder).w
	cl := charmlog.NewWithOptions(current, charmlog.Options{
		Prefix:          name,
		ReportTimestamp: true,
	})
	if DebugEnabledFor(name) {
		cl.SetLevel(charmlog.DebugLevel)
	}
	logger := &Logger{name: name, cl: cl}
	actual, _ := loggers.LoadOrStore(name, logger)
	return actual.(*Logger)
}

// SetGlobalDebug enables or disables debug logging globally.
func SetGlobalDebug(enabled bool) {
	globalDebug.Store(enabled)
	loggers.Range(func(_, v any) bool {
		l := v.(*Logger)
		l.cl.SetLevel(levelFor(l.name))
		return true
	})
}

// GlobalDebug returns whether global debug logging is enabled.
func GlobalDebug() bool {
	return globalDebug.Load()
}

// EnableDebugFor enables debug logging for a specific service.
func EnableDebugFor(name string) {
	if name == "" {
		return
	}
	val, _ := serviceDebug.LoadOrStore(name, &atomic.Bool{})
	val.(*atomic.Bool).Store(true)
	if l, ok := loggers.Load(name); ok {
		l.(*Logger).cl.SetLevel(charmlog.DebugLevel)
	}
}

// DisableDebugFor disables debug logging for a specific service.
func DisableDebugFor(name string) {
	if name == "" {
		return
	}
	if val, ok := serviceDebug.Load(name); ok {
		val.(*atomic.Bool).Store(false)
	}
	if l, ok := loggers.Load(name); ok {
		l.(*Logger).cl.SetLevel(levelFor(name))
	}
}

// DebugEnabledFor returns whether debug is enabled for the given service
// (either globally or specifically for the service).
func DebugEnabledFor(name string) bool {
	if globalDebug.Load() {
		return true
	}
	if val, ok := serviceDebug.Load(name); ok {
		return val.(*atomic.Bool).Load()
	}
	return false
}

func levelFor(name string) charmlog.Level {
	if DebugEnabledFor(name) {
		return charmlog.DebugLevel
	}
	return charmlog.InfoLevel
}

// SetOutput sets the output writer for all subsequently created loggers.
// Existing loggers will also adopt the new writer.
func SetOutput(w io.Writer) {
	if w == nil {
		return
	}
	outputWriter.Store(writerHolder{w: w})
	loggers.Range(func(_, v any) bool {
		l := v.(*Logger)
		l.cl.SetOutput(w)
		return true
	})
}

// Infof logs an informational message with fmt.Sprintf semantics.
func (l *Logger) Infof(format string, args ...any) {
	l.cl.Info(fmt.Sprintf(format, args...))
}

// Warnf logs a warning message.
func (l *Logger) Warnf(format string, args ...any) {
	l.cl.Warn(fmt.Sprintf(format, args...))
}

// Errorf logs an error message.
func (l *Logger) Errorf(format string, args ...any) {
	l.cl.Error(fmt.Sprintf(format, args...))
}

// Debugf logs a debug message if debug is enabled (globally or for this
// logger's service).
func (l *Logger) Debugf(format string, args ...any) {
	if !DebugEnabledFor(l.name) {
		return
	}
	l.cl.Debug(fmt.Sprintf(format, args...))
}
