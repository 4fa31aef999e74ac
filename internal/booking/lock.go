package booking

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// LocalLocker is an in-process Locker for single-instance deployments and
// tests. Expired entries are reclaimed on the next Acquire.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock Clock
}

func NewLocalLocker(clock Clock) *LocalLocker {
	if clock == nil {
		clock = SystemClock{}
	}
	return &LocalLocker{held: make(map[string]time.Time), clock: clock}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if until, ok := l.held[key]; ok && now.Before(until) {
		return nil, ErrLocked
	}
	until := now.Add(ttl)
	l.held[key] = until

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key].Equal(until) {
			delete(l.held, key)
		}
	}, nil
}

func bookingLockKey(id uint) string {
	return fmt.Sprintf("booking:%d", id)
}
