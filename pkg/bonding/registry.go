package bonding

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrCurveNotFound      = errors.New("curve not found")
	ErrCurveAlreadyExists = errors.New("curve already registered")
)

// Registry holds independent engine instances keyed by curve ID. Instances
// are isolated; the registry gives no ordering guarantees across curves.
type Registry struct {
	mu      sync.RWMutex
	engines map[uuid.UUID]*Engine
}

func NewRegistry() *Registry {
	return &Registry{engines: make(map[uuid.UUID]*Engine)}
}

func (r *Registry) Register(e *Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.engines[e.ID()]; ok {
		return fmt.Errorf("register %s: %w", e.ID(), ErrCurveAlreadyExists)
	}
	r.engines[e.ID()] = e
	return nil
}

func (r *Registry) Get(id uuid.UUID) (*Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, ErrCurveNotFound)
	}
	return e, nil
}

func (r *Registry) Remove(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.engines[id]; !ok {
		return fmt.Errorf("remove %s: %w", id, ErrCurveNotFound)
	}
	delete(r.engines, id)
	return nil
}

// List returns all registered engines in unspecified order.
func (r *Registry) List() []*Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Engine, 0, len(r.engines))
	for _, e := range r.engines {
		out = append(out, e)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.engines)
}
