// Package logging wraps the standard logger with levels and a per-component
// prefix, matching the daemon's key=value log line convention.
package logging

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"
	"time"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// StdLogger returns a bare standard logger on the same sink, for components
// that want raw line output (the audit trail).
func StdLogger(w io.Writer) *log.Logger {
	return log.New(w, "", 0)
}

// Logger is a leveled logger bound to one component. The level is shared
// across WithComponent derivatives and can be swapped at runtime (config hot
// reload).
type Logger struct {
	base      *log.Logger
	level     *atomic.Int32
	component string
}

func New(w io.Writer, level Level, component string) *Logger {
	l := &Logger{
		base:      log.New(w, "", 0),
		level:     &atomic.Int32{},
		component: component,
	}
	l.level.Store(int32(level))
	return l
}

// WithComponent returns a logger sharing the sink and level but labelled for
// another component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		base:      l.base,
		level:     l.level,
		component: component,
	}
}

// SetLevel changes the minimum emitted level.
func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }

func (l *Logger) logf(level Level, format string, args ...any) {
	if int32(level) < l.level.Load() {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.base.Printf("%s %s %s: %s", time.Now().UTC().Format(time.RFC3339), level, l.component, msg)
}
