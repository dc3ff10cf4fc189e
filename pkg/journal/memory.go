package journal

import (
	"context"
	"sync"
)

const DefaultMemoryCapacity = 1024

// Memory keeps the most recent events in a fixed-size ring. It backs the
// recent-events API endpoint and tests.
type Memory struct {
	mu    sync.RWMutex
	ring  []Event
	next  int
	count int
}

// NewMemory returns a ring journal holding up to capacity events. A
// non-positive capacity falls back to DefaultMemoryCapacity.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &Memory{ring: make([]Event, capacity)}
}

func (m *Memory) Record(ctx context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ring[m.next] = ev
	m.next = (m.next + 1) % len(m.ring)
	if m.count < len(m.ring) {
		m.count++
	}
	return nil
}

// Recent returns up to n events, newest first.
func (m *Memory) Recent(n int) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n > m.count {
		n = m.count
	}
	if n <= 0 {
		return nil
	}
	out := make([]Event, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, m.ring[(m.next-i+len(m.ring))%len(m.ring)])
	}
	return out
}

// Len returns the number of events currently retained.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count
}
