package signal

import (
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Relay/internal/core"
)

var errTooManyJoins = errors.New("too many room changes, slow down")

// JoinLimiter caps how often one connection may create or join rooms,
// sliding window per connection token.
type JoinLimiter struct {
	mu      sync.Mutex
	history map[core.SessionID][]time.Time
	limit   int
	window  time.Duration
}

func NewJoinLimiter(limit int, window time.Duration) *JoinLimiter {
	return &JoinLimiter{
		history: make(map[core.SessionID][]time.Time),
		limit:   limit,
		window:  window,
	}
}

func (l *JoinLimiter) Allow(sid core.SessionID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-l.window)

	attempts := l.history[sid]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= l.limit {
		l.history[sid] = fresh
		return false
	}

	l.history[sid] = append(fresh, now)
	return true
}
