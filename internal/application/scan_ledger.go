package application

import (
	"sync"
	"time"
)

// scanLedger remembers check-in codes consumed during one scanning session so a
// code held in front of the camera is processed once.
type scanLedger struct {
	mu         sync.Mutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]time.Time
}

func newScanLedger(ttl time.Duration, maxEntries int, now func() time.Time) *scanLedger {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	if now == nil {
		now = time.Now
	}
	return &scanLedger{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]time.Time),
	}
}

// Consume marks key as scanned. It returns false when key was already consumed.
func (l *scanLedger) Consume(key string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expiresAt, ok := l.entries[key]; ok && !now.After(expiresAt) {
		return false
	}

	l.cleanupLocked(now)
	if len(l.entries) >= l.maxEntries {
		l.evictOldestLocked()
	}
	l.entries[key] = now.Add(l.ttl)
	return true
}

// Release forgets key so the same code can be scanned again.
func (l *scanLedger) Release(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
}

// Consumed reports whether key is currently locked.
func (l *scanLedger) Consumed(key string) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	expiresAt, ok := l.entries[key]
	return ok && !l.now().After(expiresAt)
}

// Reset clears every consumed code, starting a new scanning session.
func (l *scanLedger) Reset() {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.entries = make(map[string]time.Time)
	l.mu.Unlock()
}

func (l *scanLedger) cleanupLocked(now time.Time) {
	for key, expiresAt := range l.entries {
		if now.After(expiresAt) {
			delete(l.entries, key)
		}
	}
}

func (l *scanLedger) evictOldestLocked() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, expiresAt := range l.entries {
		if oldestKey == "" || expiresAt.Before(oldest) {
			oldestKey, oldest = key, expiresAt
		}
	}
	delete(l.entries, oldestKey)
}
