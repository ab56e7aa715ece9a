package specialist

import (
	"errors"
	"fmt"
)

// ErrUnknownSpecialist is returned for ids missing from the registry.
var ErrUnknownSpecialist = errors.New("unknown specialist")

// Registry is an immutable catalog of specialists. It is safe for concurrent
// reads once built.
type Registry struct {
	byID     map[string]*Descriptor
	order    []string
	fallback string
}

// NewRegistry validates the descriptors and builds a registry. fallback is the
// id Resolve returns for unknown ids and must be one of the descriptors.
func NewRegistry(fallback string, descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{
		byID:     make(map[string]*Descriptor, len(descriptors)),
		fallback: fallback,
	}
	for i := range descriptors {
		d := descriptors[i]
		if d.ID == "" {
			return nil, errors.New("specialist id must not be empty")
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate specialist id %q", d.ID)
		}
		seen := map[string]bool{}
		for _, t := range d.Tools {
			if t.Run == nil {
				return nil, fmt.Errorf("specialist %q: tool %q has no implementation", d.ID, t.Name)
			}
			if seen[t.Name] {
				return nil, fmt.Errorf("specialist %q: duplicate tool %q", d.ID, t.Name)
			}
			seen[t.Name] = true
		}
		r.byID[d.ID] = &d
		r.order = append(r.order, d.ID)
	}

	if _, ok := r.byID[fallback]; !ok {
		return nil, fmt.Errorf("fallback specialist %q: %w", fallback, ErrUnknownSpecialist)
	}
	for _, id := range r.order {
		for _, h := range r.byID[id].Handoffs {
			if _, ok := r.byID[h.Target]; !ok {
				return nil, fmt.Errorf("specialist %q hands off to %q: %w", id, h.Target, ErrUnknownSpecialist)
			}
		}
	}
	return r, nil
}

// Get returns the descriptor for id.
func (r *Registry) Get(id string) (*Descriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Resolve returns the descriptor for id, or the fallback for unknown ids.
func (r *Registry) Resolve(id string) *Descriptor {
	if d, ok := r.byID[id]; ok {
		return d
	}
	return r.byID[r.fallback]
}

// Fallback returns the id of the fallback specialist.
func (r *Registry) Fallback() string {
	return r.fallback
}

// All returns the descriptors in registration order.
func (r *Registry) All() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Summaries returns the client listing in registration order.
func (r *Registry) Summaries() []Summary {
	out := make([]Summary, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].Summary())
	}
	return out
}
