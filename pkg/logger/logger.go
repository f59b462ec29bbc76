// Package logger writes structured diagnostics for the lineage simulator.
// Stdout belongs to the transcript, so logs go to stderr by default, as JSON
// objects or as sorted key=value text lines.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level is the severity of an entry.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelOff silences the logger.
	LevelOff
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "OFF"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelOff {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel accepts level names in any case; "warning" and "none" are
// aliases. Anything else is info.
func ParseLevel(s string) Level {
	switch name := strings.ToUpper(strings.TrimSpace(s)); name {
	case "WARNING":
		return LevelWarn
	case "NONE":
		return LevelOff
	default:
		for i, n := range levelNames {
			if n == name {
				return Level(i)
			}
		}
		return LevelInfo
	}
}

// Format is the entry encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseFormat returns FormatText for "text" and FormatJSON otherwise.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatText)) {
		return FormatText
	}
	return FormatJSON
}

// Field is one key/value pair attached to an entry.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field      { return Field{key, value} }
func Int(key string, value int) Field     { return Field{key, value} }
func Int64(key string, value int64) Field { return Field{key, value} }
func Bool(key string, value bool) Field   { return Field{key, value} }
func Any(key string, value any) Field     { return Field{key, value} }

// Duration renders the value with time.Duration.String.
func Duration(key string, value time.Duration) Field { return Field{key, value.String()} }

// Err stores the error text under "error".
func Err(err error) Field {
	if err == nil {
		return Field{"error", nil}
	}
	return Field{"error", err.Error()}
}

// LogEntry is the JSON shape of one line.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Options for New. A nil Output means stderr; an empty Format means JSON.
type Options struct {
	Output io.Writer
	Level  Level
	Format Format
}

// Logger is safe for concurrent use. Children made by With share the
// parent's writer lock.
type Logger struct {
	mu     *sync.Mutex
	out    io.Writer
	level  Level
	format Format
	fields []Field
	now    func() time.Time
}

func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	return &Logger{
		mu:     &sync.Mutex{},
		out:    opts.Output,
		level:  opts.Level,
		format: opts.Format,
		now:    time.Now,
	}
}

// Nop discards everything.
func Nop() *Logger {
	return New(Options{Output: io.Discard, Level: LevelOff})
}

// Enabled reports whether entries at level are written.
func (l *Logger) Enabled(level Level) bool {
	return l.level != LevelOff && level >= l.level
}

// With returns a child that adds fields to every entry.
func (l *Logger) With(fields ...Field) *Logger {
	child := *l
	child.fields = append(append(make([]Field, 0, len(l.fields)+len(fields)), l.fields...), fields...)
	return &child
}

// RunIDKey ties entries to one simulation run.
const RunIDKey = "run_id"

func (l *Logger) WithRunID(runID string) *Logger {
	return l.With(String(RunIDKey, runID))
}

func (l *Logger) Debug(msg string, fields ...Field) { l.write(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.write(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.write(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.write(LevelError, msg, fields) }

func (l *Logger) write(level Level, msg string, fields []Field) {
	if !l.Enabled(level) {
		return
	}

	entry := LogEntry{
		Timestamp: l.now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
	}
	if n := len(l.fields) + len(fields); n > 0 {
		entry.Fields = make(map[string]any, n)
		for _, f := range l.fields {
			entry.Fields[f.Key] = f.Value
		}
		for _, f := range fields {
			entry.Fields[f.Key] = f.Value
		}
	}

	var line []byte
	if l.format == FormatText {
		line = []byte(entry.text())
	} else if data, err := json.Marshal(entry); err == nil {
		line = append(data, '\n')
	} else {
		line = []byte(fmt.Sprintf("%s %s %s\n", entry.Timestamp, entry.Level, msg))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(line)
}

func (e LogEntry) text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", e.Timestamp, e.Level, e.Message)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
	}
	b.WriteByte('\n')
	return b.String()
}

// Field helpers for the simulation.

func Practitioner(name string) Field   { return String("practitioner", name) }
func Representative(name string) Field { return String("representative", name) }
func Rank(name string) Field           { return String("rank", name) }
func Step(index int) Field             { return Int("step", index) }
func Seed(seed int64) Field            { return Int64("seed", seed) }
func Component(name string) Field      { return String("component", name) }
func Operation(name string) Field      { return String("operation", name) }
func Latency(d time.Duration) Field    { return Duration("latency", d) }
