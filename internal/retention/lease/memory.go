package lease

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"dataguard/pkg/platform/sentinel"
)

// MemoryLocker is a single-process Locker for local runs and tests.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]memoryEntry
	now    func() time.Time
}

type memoryEntry struct {
	token   string
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: make(map[string]memoryEntry), now: time.Now}
}

// WithClock replaces the clock used for expiry.
func (l *MemoryLocker) WithClock(now func() time.Time) *MemoryLocker {
	l.now = now
	return l
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if e, ok := l.leases[key]; ok && now.Before(e.expires) {
		return nil, sentinel.ErrLeaseHeld
	}
	token := uuid.NewString()
	l.leases[key] = memoryEntry{token: token, expires: now.Add(ttl)}
	return &memoryLease{locker: l, key: key, token: token, ttl: ttl}, nil
}

// Held reports whether key is currently leased.
func (l *MemoryLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.leases[key]
	return ok && l.now().Before(e.expires)
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	token  string
	ttl    time.Duration
}

func (m *memoryLease) Extend(_ context.Context) error {
	l := m.locker
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.leases[m.key]
	if !ok || e.token != m.token {
		return sentinel.ErrLeaseHeld
	}
	e.expires = l.now().Add(m.ttl)
	l.leases[m.key] = e
	return nil
}

func (m *memoryLease) Release(_ context.Context) error {
	l := m.locker
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.leases[m.key]; ok && e.token == m.token {
		delete(l.leases, m.key)
	}
	return nil
}
