// internal/rules/cache.go
package rules

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
)

/*
 * Derived evaluation caches.
 *
 * Three caches sit between rule definitions and evaluation:
 *   - evaluator name -> resolved CustomEvaluator
 *   - pattern string -> compiled *regexp.Regexp (nil for malformed patterns,
 *     so a broken pattern is compiled once, not on every evaluation)
 *   - (field, value list) -> membership set for in/not_in
 *
 * Caches are owned by a Store instance, never process-global, and are
 * cleared by every mutating store operation. Evaluation populates them
 * lazily from concurrent goroutines, hence the mutex.
 */

// CacheStats reports the number of entries held by each cache.
type CacheStats struct {
	Evaluators     int `json:"evaluators"`
	Patterns       int `json:"patterns"`
	MembershipSets int `json:"membershipSets"`
}

// Caches holds derived state that must be discarded when rules change.
type Caches struct {
	mu         sync.RWMutex
	evaluators map[string]CustomEvaluator
	patterns   map[string]*regexp.Regexp
	sets       map[string]*membershipSet
}

// NewCaches creates empty caches.
func NewCaches() *Caches {
	c := &Caches{}
	c.reset()
	return c
}

func (c *Caches) reset() {
	c.evaluators = make(map[string]CustomEvaluator)
	c.patterns = make(map[string]*regexp.Regexp)
	c.sets = make(map[string]*membershipSet)
}

// Invalidate drops every cached entry.
func (c *Caches) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

// InvalidateEvaluators drops resolved custom evaluators only.
// Used when the evaluator registry changes without a rule mutation.
func (c *Caches) InvalidateEvaluators() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evaluators = make(map[string]CustomEvaluator)
}

// Stats returns current cache sizes.
func (c *Caches) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{
		Evaluators:     len(c.evaluators),
		Patterns:       len(c.patterns),
		MembershipSets: len(c.sets),
	}
}

// pattern returns the compiled pattern, compiling on first use.
// Malformed patterns are cached as nil and reported with an error each time.
func (c *Caches) pattern(p string) (*regexp.Regexp, error) {
	c.mu.RLock()
	re, hit := c.patterns[p]
	c.mu.RUnlock()
	if hit {
		if re == nil {
			return nil, fmt.Errorf("pattern %q: cached compile failure", p)
		}
		return re, nil
	}

	re, err := regexp.Compile(p)
	c.mu.Lock()
	c.patterns[p] = re
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return re, nil
}

// evaluator resolves name through reg, caching hits.
// Misses are not cached so a later registration takes effect.
func (c *Caches) evaluator(name string, reg *Registry) (CustomEvaluator, bool) {
	c.mu.RLock()
	ev, hit := c.evaluators[name]
	c.mu.RUnlock()
	if hit {
		return ev, true
	}
	if reg == nil {
		return nil, false
	}
	ev, ok := reg.Lookup(name)
	if !ok {
		return nil, false
	}
	c.mu.Lock()
	c.evaluators[name] = ev
	c.mu.Unlock()
	return ev, true
}

// membership returns the set for (field, list), building it on first use.
func (c *Caches) membership(field string, list []any) *membershipSet {
	key := membershipKey(field, list)
	c.mu.RLock()
	set, hit := c.sets[key]
	c.mu.RUnlock()
	if hit {
		return set
	}
	set = newMembershipSet(list)
	c.mu.Lock()
	c.sets[key] = set
	c.mu.Unlock()
	return set
}

// membershipKey distinguishes [1] from ["1"], which %v would not.
func membershipKey(field string, list []any) string {
	b, err := json.Marshal(list)
	if err != nil {
		return field + "\x00" + fmt.Sprintf("%#v", list)
	}
	return field + "\x00" + string(b)
}

// membershipSet answers membership in O(1) for scalar elements and falls
// back to a linear scan for lists and maps.
type membershipSet struct {
	keys    map[any]struct{}
	complex []any
}

func newMembershipSet(list []any) *membershipSet {
	s := &membershipSet{keys: make(map[any]struct{}, len(list))}
	for _, v := range list {
		if k, ok := hashKey(v); ok {
			s.keys[k] = struct{}{}
			continue
		}
		s.complex = append(s.complex, v)
	}
	return s
}

func (s *membershipSet) contains(v any) bool {
	if k, ok := hashKey(v); ok {
		_, hit := s.keys[k]
		return hit
	}
	for _, elem := range s.complex {
		if valuesEqual(v, elem) {
			return true
		}
	}
	return false
}
