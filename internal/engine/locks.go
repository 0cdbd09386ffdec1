package engine

import (
	"sync"
	"time"

	"nasmon/internal/clock"
)

// DefaultLockTTL bounds how long a forgotten lock can suppress a source.
const DefaultLockTTL = time.Hour

type sourceLock struct {
	source    string
	expiresAt time.Time
}

// LockManager holds named timed locks that suppress a source without
// losing its existing alerts. Subsystems take a lock right before doing
// something that would raise spurious alerts.
type LockManager struct {
	clk clock.Clock

	mu     sync.Mutex
	nextID int64
	locks  map[int64]sourceLock
}

func NewLockManager(clk clock.Clock) *LockManager {
	return &LockManager{
		clk:    clk,
		nextID: 1,
		locks:  make(map[int64]sourceLock),
	}
}

// Block suppresses one source and returns the lock id. A zero ttl means
// DefaultLockTTL.
func (m *LockManager) Block(source string, ttl time.Duration) int64 {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.locks[id] = sourceLock{source: source, expiresAt: m.clk.Now().Add(ttl)}
	return id
}

// Unblock releases one lock. Unknown ids are ignored.
func (m *LockManager) Unblock(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.locks[id]
	delete(m.locks, id)
	return ok
}

// Sweep drops expired locks. The engine calls this before iterating
// sources on every tick.
func (m *LockManager) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clk.Now()
	for id, lock := range m.locks {
		if now.After(lock.expiresAt) {
			delete(m.locks, id)
		}
	}
}

// Blocked reports whether a source has at least one live lock.
func (m *LockManager) Blocked(source string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clk.Now()
	for _, lock := range m.locks {
		if lock.source == source && !now.After(lock.expiresAt) {
			return true
		}
	}
	return false
}

// BlockedSources returns the currently suppressed source names.
func (m *LockManager) BlockedSources() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clk.Now()
	seen := make(map[string]bool)
	var out []string
	for _, lock := range m.locks {
		if !now.After(lock.expiresAt) && !seen[lock.source] {
			seen[lock.source] = true
			out = append(out, lock.source)
		}
	}
	return out
}
