package rules

import (
	"sort"
	"sync"

	"github.com/solatis/overseer/internal/types"
)

// CustomEvaluator decides a custom condition.
// Implementations must be side-effect free and fast: the engine has no
// timeout of its own and runs them on the caller's goroutine.
type CustomEvaluator interface {
	Evaluate(data types.Context, cond types.Condition) (bool, error)
}

// EvaluatorFunc adapts a plain function to CustomEvaluator.
type EvaluatorFunc func(data types.Context, cond types.Condition) (bool, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(data types.Context, cond types.Condition) (bool, error) {
	return f(data, cond)
}

// Registry maps evaluator names to implementations.
type Registry struct {
	mu         sync.RWMutex
	evaluators map[string]CustomEvaluator
}

// NewRegistry creates an empty evaluator registry.
func NewRegistry() *Registry {
	return &Registry{evaluators: make(map[string]CustomEvaluator)}
}

// Register binds name to ev, replacing any previous binding.
func (r *Registry) Register(name string, ev CustomEvaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluators[name] = ev
}

// Unregister removes name. Returns false if it was not registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.evaluators[name]; !ok {
		return false
	}
	delete(r.evaluators, name)
	return true
}

// Lookup returns the evaluator bound to name.
func (r *Registry) Lookup(name string) (CustomEvaluator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ev, ok := r.evaluators[name]
	return ev, ok
}

// Names returns registered evaluator names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.evaluators))
	for name := range r.evaluators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
