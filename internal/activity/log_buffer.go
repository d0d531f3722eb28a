package activity

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// LogEntry represents a single log entry
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// String renders the entry the way the on-page log shows it
func (e LogEntry) String() string {
	return fmt.Sprintf("[%s] %s", e.Timestamp.Format("15:04:05"), e.Message)
}

// LogBuffer is a thread-safe ring buffer for log entries. A capacity of zero
// or less keeps every entry.
type LogBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	cap     int
	now     func() time.Time
}

// NewLogBuffer creates a new log buffer with the given capacity
func NewLogBuffer(capacity int) *LogBuffer {
	initial := capacity
	if initial <= 0 {
		initial = 16
	}
	return &LogBuffer{
		entries: make([]LogEntry, 0, initial),
		cap:     capacity,
		now:     time.Now,
	}
}

// Add adds a log entry to the buffer
func (lb *LogBuffer) Add(level, message string) {
	lb.addAt(lb.now(), level, message)
}

func (lb *LogBuffer) addAt(ts time.Time, level, message string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	entry := LogEntry{
		Timestamp: ts,
		Level:     level,
		Message:   message,
	}

	if lb.cap > 0 && len(lb.entries) >= lb.cap {
		// Shift everything left by 1, drop oldest
		copy(lb.entries, lb.entries[1:])
		lb.entries[len(lb.entries)-1] = entry
	} else {
		lb.entries = append(lb.entries, entry)
	}
}

// Entries returns all entries, optionally filtered by level
func (lb *LogBuffer) Entries(levels []string) []LogEntry {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	if len(levels) == 0 {
		result := make([]LogEntry, len(lb.entries))
		copy(result, lb.entries)
		return result
	}

	levelSet := make(map[string]bool)
	for _, l := range levels {
		levelSet[strings.ToLower(l)] = true
	}

	result := make([]LogEntry, 0)
	for _, e := range lb.entries {
		if levelSet[strings.ToLower(e.Level)] {
			result = append(result, e)
		}
	}
	return result
}

// Len returns the number of buffered entries
func (lb *LogBuffer) Len() int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return len(lb.entries)
}

// Clear removes all entries
func (lb *LogBuffer) Clear() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.entries = lb.entries[:0]
}

// Core returns a zap core that copies log entries at or above level into the
// buffer, so the console's activity pane mirrors the process log.
func (lb *LogBuffer) Core(level zapcore.LevelEnabler) zapcore.Core {
	return &bufferCore{LevelEnabler: level, buf: lb}
}

type bufferCore struct {
	zapcore.LevelEnabler
	buf    *LogBuffer
	fields []zapcore.Field
}

func (c *bufferCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field{}, c.fields...), fields...)
	return &clone
}

func (c *bufferCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *bufferCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	c.buf.addAt(e.Time, e.Level.String(), formatFields(e.Message, append(append([]zapcore.Field{}, c.fields...), fields...)))
	return nil
}

func (c *bufferCore) Sync() error { return nil }

// formatFields appends key=value pairs in key order
func formatFields(msg string, fields []zapcore.Field) string {
	if len(fields) == 0 {
		return msg
	}
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, enc.Fields[k])
	}
	return b.String()
}
