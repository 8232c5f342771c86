package lock

import (
	"context"
	"sync"
	"time"
)

type lease struct {
	owner   string
	expires time.Time
}

// Memory is a process-local Locker.
type Memory struct {
	mu     sync.Mutex
	ttl    time.Duration
	leases map[string]lease
	now    func() time.Time
}

// NewMemory creates a Locker whose leases expire after ttl.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, leases: make(map[string]lease), now: time.Now}
}

// WithClock replaces the time source and returns the locker.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Acquire(ctx context.Context, key, owner string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if cur, ok := m.leases[key]; ok && cur.owner != owner && now.Before(cur.expires) {
		return false, nil
	}
	m.leases[key] = lease{owner: owner, expires: now.Add(m.ttl)}
	return true, nil
}

func (m *Memory) Refresh(ctx context.Context, key, owner string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.leases[key]
	if !ok || cur.owner != owner {
		return ErrNotHeld
	}
	m.leases[key] = lease{owner: owner, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *Memory) Release(_ context.Context, key, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.leases[key]
	if !ok || cur.owner != owner {
		return ErrNotHeld
	}
	delete(m.leases, key)
	return nil
}
