package tasks

import (
	"sync"

	"github.com/desertthunder/ytrelay/internal/models"
)

// DefaultAttemptLogSize is how many attempts GET /logs reports.
const DefaultAttemptLogSize = 10

// AttemptLog is a fixed-size ring of the most recent resolver attempts. A nil *AttemptLog
// discards everything.
type AttemptLog struct {
	mu    sync.Mutex
	buf   []models.ResolveAttempt
	next  int
	count int
	total int64
}

// NewAttemptLog creates a log holding the last size attempts.
func NewAttemptLog(size int) *AttemptLog {
	if size <= 0 {
		size = DefaultAttemptLogSize
	}
	return &AttemptLog{buf: make([]models.ResolveAttempt, size)}
}

// Record appends a, overwriting the oldest entry once full.
func (l *AttemptLog) Record(a models.ResolveAttempt) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf[l.next] = a
	l.next = (l.next + 1) % len(l.buf)
	if l.count < len(l.buf) {
		l.count++
	}
	l.total++
}

// Recent returns the held attempts, oldest first.
func (l *AttemptLog) Recent() []models.ResolveAttempt {
	if l == nil {
		return []models.ResolveAttempt{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.ResolveAttempt, 0, l.count)
	start := (l.next - l.count + len(l.buf)) % len(l.buf)
	for i := range l.count {
		out = append(out, l.buf[(start+i)%len(l.buf)])
	}
	return out
}

// Total reports how many attempts were ever recorded.
func (l *AttemptLog) Total() int64 {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
