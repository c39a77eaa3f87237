package strategy

import (
	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// DefaultID is used for profiles whose strategy id is empty or unknown.
const DefaultID = ManualID

// Registry holds the fixed set of strategies.
type Registry struct {
	strategies map[string]Strategy
	order      []string
}

// NewRegistry creates a registry with every built-in strategy sharing deps.
func NewRegistry(d *Deps) *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}

	r.register(NewManual(d))
	r.register(NewToken(d, domain.TokenNFC))
	r.register(NewTokenManual(d, domain.TokenNFC))
	r.register(NewTokenTimer(d, domain.TokenNFC))
	r.register(NewToken(d, domain.TokenQR))
	r.register(NewTokenManual(d, domain.TokenQR))
	r.register(NewTokenTimer(d, domain.TokenQR))
	r.register(NewTimer(d))
	r.register(NewSchedule(d))

	return r
}

func (r *Registry) register(s Strategy) {
	if _, ok := r.strategies[s.ID()]; !ok {
		r.order = append(r.order, s.ID())
	}
	r.strategies[s.ID()] = s
}

// Get resolves a strategy id. Unknown ids fall back to the default.
func (r *Registry) Get(id string) Strategy {
	if s, ok := r.strategies[id]; ok {
		return s
	}
	return r.strategies[DefaultID]
}

// Has reports whether id names a registered strategy.
func (r *Registry) Has(id string) bool {
	_, ok := r.strategies[id]
	return ok
}

// IDs lists the strategy ids in registration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Manual returns the unconditional strategy used for overrides.
func (r *Registry) Manual() Strategy {
	return r.strategies[ManualID]
}
