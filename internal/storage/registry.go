package storage

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/maruel/flatdb/internal/jsondb"
)

// ErrUnknownCollection is returned by Registry.Get for names not configured.
var ErrUnknownCollection = errors.New("unknown collection")

// Registry maps collection names to collections. It is safe for concurrent
// use and can be reloaded while serving.
type Registry struct {
	mu          sync.RWMutex
	collections map[string]*jsondb.Collection
}

// NewRegistry creates a registry holding one collection per configuration.
func NewRegistry(cfgs []jsondb.Config) (*Registry, error) {
	r := &Registry{}
	if err := r.Reload(cfgs); err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns the collection called name.
func (r *Registry) Get(name string) (*jsondb.Collection, error) {
	r.mu.RLock()
	c, ok := r.collections[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return c, nil
}

// Names returns the sorted collection names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.collections))
	for n := range r.collections {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Reload replaces the set of collections. Collections whose configuration
// did not change are kept so their in-process lock survives the reload. On
// error the previous set stays in place.
func (r *Registry) Reload(cfgs []jsondb.Config) error {
	r.mu.RLock()
	old := r.collections
	r.mu.RUnlock()
	next := make(map[string]*jsondb.Collection, len(cfgs))
	for _, cfg := range cfgs {
		if _, dup := next[cfg.Name]; dup {
			return fmt.Errorf("duplicate collection %q", cfg.Name)
		}
		if c, ok := old[cfg.Name]; ok && c.Config() == cfg {
			next[cfg.Name] = c
			continue
		}
		c, err := jsondb.NewCollection(cfg)
		if err != nil {
			return err
		}
		next[cfg.Name] = c
	}
	r.mu.Lock()
	r.collections = next
	r.mu.Unlock()
	return nil
}
