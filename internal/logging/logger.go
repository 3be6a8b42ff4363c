// Package logging writes structured JSON log lines, one object per event.
// Every entry carries ts, level and msg plus the logger's context fields.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents a log level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is safe for concurrent use; children created by With share the writer lock.
type Logger struct {
	mu       *sync.Mutex
	out      io.Writer
	loc      *time.Location
	minLevel Level
	fields   map[string]any
}

// New creates a Logger writing to w with timestamps rendered in loc.
func New(w io.Writer, loc *time.Location, level Level) *Logger {
	if w == nil {
		w = os.Stdout
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Logger{
		mu:       &sync.Mutex{},
		out:      w,
		loc:      loc,
		minLevel: level,
		fields:   map[string]any{},
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return New(io.Discard, time.UTC, LevelError+1)
}

// With returns a child logger with an additional context field.
func (l *Logger) With(key string, value any) *Logger {
	fields := make(map[string]any, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value
	return &Logger{mu: l.mu, out: l.out, loc: l.loc, minLevel: l.minLevel, fields: fields}
}

// Location returns the timezone used for the ts field.
func (l *Logger) Location() *time.Location { return l.loc }

func (l *Logger) Debug(msg string, keyVals ...any) { l.log(LevelDebug, msg, keyVals...) }
func (l *Logger) Info(msg string, keyVals ...any)  { l.log(LevelInfo, msg, keyVals...) }
func (l *Logger) Warn(msg string, keyVals ...any)  { l.log(LevelWarn, msg, keyVals...) }
func (l *Logger) Error(msg string, keyVals ...any) { l.log(LevelError, msg, keyVals...) }

// Entry writes a prebuilt map as one log line, adding ts and level when absent.
func (l *Logger) Entry(data map[string]any) {
	entry := make(map[string]any, len(l.fields)+len(data)+2)
	for k, v := range l.fields {
		entry[k] = v
	}
	for k, v := range data {
		entry[k] = normalize(v)
	}
	if _, ok := entry["level"]; !ok {
		if entry["status"] == "error" {
			entry["level"] = levelNames[LevelError]
		} else {
			entry["level"] = levelNames[LevelInfo]
		}
	}
	l.write(entry)
}

func (l *Logger) log(level Level, msg string, keyVals ...any) {
	if level < l.minLevel {
		return
	}
	entry := make(map[string]any, len(l.fields)+len(keyVals)/2+3)
	for k, v := range l.fields {
		entry[k] = v
	}
	for i := 0; i+1 < len(keyVals); i += 2 {
		key, ok := keyVals[i].(string)
		if !ok {
			key = fmt.Sprint(keyVals[i])
		}
		entry[key] = normalize(keyVals[i+1])
	}
	entry["level"] = levelNames[level]
	entry["msg"] = msg
	l.write(entry)
}

func (l *Logger) write(entry map[string]any) {
	entry["ts"] = time.Now().In(l.loc).Format(time.RFC3339Nano)
	b, err := json.Marshal(entry)
	if err != nil {
		b, _ = json.Marshal(map[string]any{
			"ts":    entry["ts"],
			"level": levelNames[LevelError],
			"msg":   "log_marshal_failed",
			"error": err.Error(),
		})
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(append(b, '\n'))
}

func normalize(v any) any {
	switch val := v.(type) {
	case error:
		if val == nil {
			return nil
		}
		return val.Error()
	case time.Duration:
		return val.Milliseconds()
	case fmt.Stringer:
		return val.String()
	default:
		return v
	}
}
