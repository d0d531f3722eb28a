package activity

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notice levels, matching the colours the dashboard uses.
const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelWarning = "warning"
	LevelInfo    = "info"
)

// Notice is a transient notification shown on a page
type Notice struct {
	ID        string    `json:"id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NoticeBuffer is a thread-safe ring buffer of notices that dismiss
// themselves after a fixed TTL.
type NoticeBuffer struct {
	mu      sync.RWMutex
	entries []Notice
	cap     int
	ttl     time.Duration
	now     func() time.Time
}

// NewNoticeBuffer creates a new notice buffer with the given capacity and TTL
func NewNoticeBuffer(capacity int, ttl time.Duration) *NoticeBuffer {
	return &NoticeBuffer{
		entries: make([]Notice, 0, capacity),
		cap:     capacity,
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock replaces the time source
func (nb *NoticeBuffer) SetClock(now func() time.Time) {
	nb.mu.Lock()
	nb.now = now
	nb.mu.Unlock()
}

// Push records a notice and returns it
func (nb *NoticeBuffer) Push(level, message string) Notice {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	now := nb.now()
	n := Notice{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(nb.ttl),
	}

	if len(nb.entries) >= nb.cap {
		copy(nb.entries, nb.entries[1:])
		nb.entries[len(nb.entries)-1] = n
	} else {
		nb.entries = append(nb.entries, n)
	}
	return n
}

// Active returns the notices that have not yet been dismissed (newest first)
func (nb *NoticeBuffer) Active() []Notice {
	nb.mu.RLock()
	defer nb.mu.RUnlock()

	now := nb.now()
	result := make([]Notice, 0, len(nb.entries))
	for j := len(nb.entries) - 1; j >= 0; j-- {
		if now.Before(nb.entries[j].ExpiresAt) {
			result = append(result, nb.entries[j])
		}
	}
	return result
}

// All returns every buffered notice including dismissed ones (newest first)
func (nb *NoticeBuffer) All() []Notice {
	nb.mu.RLock()
	defer nb.mu.RUnlock()

	result := make([]Notice, len(nb.entries))
	// Reverse order so newest is first
	for i, j := 0, len(nb.entries)-1; j >= 0; i, j = i+1, j-1 {
		result[i] = nb.entries[j]
	}
	return result
}
