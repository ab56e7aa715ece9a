package agent

import (
	"fmt"

	"github.com/ashureev/skydesk/internal/domain"
	"github.com/ashureev/skydesk/internal/specialist"
)

// Transition is the outcome of an accepted handoff.
type Transition struct {
	Target   *specialist.Descriptor
	Greeting string
}

// Router applies handoff requests produced by the reasoning capability.
type Router struct {
	registry *specialist.Registry
}

// NewRouter creates a handoff router over registry.
func NewRouter(registry *specialist.Registry) *Router {
	return &Router{registry: registry}
}

// Route moves control from `from` to target. Targets outside from's allowed
// handoff list, or missing from the registry, are rejected with ok=false and
// nothing is recorded. A hook error fails the turn.
func (r *Router) Route(from *specialist.Descriptor, target string, shared *domain.AirlineContext, rec *Recorder) (Transition, bool, error) {
	h, allowed := from.Handoff(target)
	if !allowed {
		return Transition{}, false, nil
	}
	to, known := r.registry.Get(target)
	if !known {
		return Transition{}, false, nil
	}

	rec.Handoff(from.ID, to.ID)

	var greeting string
	if h.Hook != nil {
		rec.HookCall(to.ID, h.Hook.Name)
		g, err := h.Hook.Run(shared)
		if err != nil {
			return Transition{}, false, fmt.Errorf("handoff hook %s: %w", h.Hook.Name, err)
		}
		greeting = g
		rec.HookOutput(to.ID, h.Hook.Name, greeting)
	}

	return Transition{Target: to, Greeting: greeting}, true, nil
}
