// Package logging adapts the teacher's ProductionLogger technique (pretty
// vs. json output, level/debug gating, structured fields) to the gateway's
// own Logger interface, dropping the cross-module global-registry wiring
// that only made sense in a multi-module framework.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Logger is the structured logging capability surface every component
// accepts by injection, mirroring core.ComponentAwareLogger.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	WithComponent(name string) Logger
}

// Format is the closed sum of output renderings.
type Format string

const (
	FormatPretty Format = "pretty"
	FormatJSON   Format = "json"
)

// Level is the closed sum of severities, ordered least to most severe.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var levelRank = map[Level]int{LevelDebug: 0, LevelInfo: 1, LevelWarn: 2, LevelError: 3}

// ProductionLogger is the gateway's concrete Logger, generalized from
// core.ProductionLogger: same pretty/json duality, same field-map shape.
type ProductionLogger struct {
	mu        sync.Mutex
	out       *os.File
	format    Format
	level     Level
	component string
}

// NewProductionLogger builds a logger writing to stderr at the given
// format/level, matching the teacher's constructor shape.
func NewProductionLogger(format Format, level Level) *ProductionLogger {
	if format == "" {
		format = FormatPretty
	}
	if level == "" {
		level = LevelInfo
	}
	return &ProductionLogger{out: os.Stderr, format: format, level: level}
}

func (l *ProductionLogger) WithComponent(name string) Logger {
	return &ProductionLogger{out: l.out, format: l.format, level: l.level, component: name}
}

func (l *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	l.logEvent(LevelDebug, msg, fields)
}
func (l *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	l.logEvent(LevelInfo, msg, fields)
}
func (l *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	l.logEvent(LevelWarn, msg, fields)
}
func (l *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	l.logEvent(LevelError, msg, fields)
}

func (l *ProductionLogger) logEvent(level Level, msg string, fields map[string]interface{}) {
	if levelRank[level] < levelRank[l.level] {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now().UTC()
	if l.format == FormatJSON {
		entry := map[string]interface{}{
			"timestamp": now.Format(time.RFC3339Nano),
			"level":     string(level),
			"message":   msg,
			"component": l.component,
		}
		for k, v := range fields {
			entry[k] = v
		}
		enc, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(l.out, "%s [%s] %s (marshal error: %v)\n", now.Format(time.RFC3339), level, msg, err)
			return
		}
		fmt.Fprintln(l.out, string(enc))
		return
	}
	comp := l.component
	if comp == "" {
		comp = "-"
	}
	fmt.Fprintf(l.out, "%s [%s] (%s) %s", now.Format("15:04:05.000"), level, comp, msg)
	for k, v := range fields {
		fmt.Fprintf(l.out, " %s=%v", k, v)
	}
	fmt.Fprintln(l.out)
}

// ctxKey is unexported per Go convention for context value keys.
type ctxKey struct{}

// WithContext attaches a Logger to ctx for ambient access down a call
// chain, mirroring the teacher's *WithContext log methods.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves the ambient Logger, or a no-op logger if none was
// attached.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok {
		return l
	}
	return NoOp{}
}

// NoOp discards every call; used as the default when no logger is injected.
type NoOp struct{}

func (NoOp) Debug(string, map[string]interface{})      {}
func (NoOp) Info(string, map[string]interface{})       {}
func (NoOp) Warn(string, map[string]interface{})       {}
func (NoOp) Error(string, map[string]interface{})      {}
func (NoOp) WithComponent(string) Logger               { return NoOp{} }
