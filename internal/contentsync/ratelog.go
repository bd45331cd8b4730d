package contentsync

import (
	"log"
	"sync"
	"time"
)

// rateLimitedLogger drops lines that arrive within interval of the last
// printed one and reports how many were dropped.
type rateLimitedLogger struct {
	log      *log.Logger
	mu       sync.Mutex
	lastAt   time.Time
	interval time.Duration
	dropped  int
}

func newRateLimitedLogger(l *log.Logger, interval time.Duration) *rateLimitedLogger {
	return &rateLimitedLogger{log: l, interval: interval}
}

func (l *rateLimitedLogger) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if !l.lastAt.IsZero() && now.Sub(l.lastAt) < l.interval {
		l.dropped++
		return
	}
	l.lastAt = now
	if l.dropped > 0 {
		l.log.Printf("(%d similar lines suppressed)", l.dropped)
		l.dropped = 0
	}
	l.log.Printf(format, args...)
}
