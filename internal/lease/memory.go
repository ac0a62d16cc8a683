package lease

import (
	"context"
	"sync"
	"time"
)

type memLease struct {
	token   string
	expires time.Time
}

// MemoryLocker serves single-process deployments where redis is not configured.
type MemoryLocker struct {
	Now func() time.Time

	mu     sync.Mutex
	leases map[string]memLease
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: map[string]memLease{}}
}

func (m *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (*Lease, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.leases == nil {
		m.leases = map[string]memLease{}
	}
	if cur, ok := m.leases[key]; ok && now.Before(cur.expires) {
		return nil, ErrHeld
	}
	l := &Lease{Key: key, Token: newToken(), ExpiresAt: now.Add(ttl)}
	m.leases[key] = memLease{token: l.Token, expires: l.ExpiresAt}
	return l, nil
}

func (m *MemoryLocker) Release(_ context.Context, l *Lease) error {
	if l == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.leases[l.Key]; ok && cur.token == l.Token {
		delete(m.leases, l.Key)
	}
	return nil
}

func (m *MemoryLocker) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}
