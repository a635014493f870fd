package truncate

import (
	"sort"
	"sync"
)

// Registry holds strategies keyed by name and selects applicable ones in
// dispatch order.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// DefaultRegistry returns a registry with the four standard strategies.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewStackTrace())
	r.Register(NewErrorFocused())
	r.Register(NewSmart())
	r.Register(NewHeadTail())
	return r
}

// Register adds or replaces a strategy.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Name()] = s
}

// Get looks a strategy up by name.
func (r *Registry) Get(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	return s, ok
}

// Select returns the strategies able to truncate the given content:
// caller-preferred names first (in the order given), then the rest sorted by
// descending strategy priority.
func (r *Registry) Select(content string, tctx *Context, preferred []string) []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	applicable := make(map[string]Strategy)
	for name, s := range r.strategies {
		if s.CanTruncate(content, tctx) {
			applicable[name] = s
		}
	}

	out := make([]Strategy, 0, len(applicable))
	for _, name := range preferred {
		if s, ok := applicable[name]; ok {
			out = append(out, s)
			delete(applicable, name)
		}
	}

	rest := make([]Strategy, 0, len(applicable))
	for _, s := range applicable {
		rest = append(rest, s)
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].Priority() != rest[j].Priority() {
			return rest[i].Priority() > rest[j].Priority()
		}
		return rest[i].Name() < rest[j].Name()
	})
	return append(out, rest...)
}
