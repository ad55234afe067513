// internal/rules/store.go
package rules

import (
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/solatis/overseer/internal/types"
)

/*
 * In-memory rule registry.
 *
 * Rules are keyed by id. Register is an upsert: a re-registered id replaces
 * the stored definition but keeps its original insertion position, so
 * priority ties resolve the same way before and after a reload.
 *
 * Replace swaps the whole rule set under one write lock, so a concurrent
 * Active sees either the previous set or the new one, never a mix.
 *
 * Every successful mutation clears the store-owned Caches. Unregister of an
 * absent id is not a mutation and leaves caches intact.
 *
 * Version gating: with an engine version set, Active skips rules whose
 * MinVersion is newer than the engine. A MinVersion that does not parse as
 * semver is tolerated outside strict mode and excluded inside it.
 */

// Store holds registered rules. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	rules   map[types.RuleID]*storedRule
	nextSeq uint64
	caches  *Caches
	version *semver.Version
}

type storedRule struct {
	rule types.Rule
	seq  uint64
}

// NewStore creates an empty store with its own caches.
func NewStore() *Store {
	return &Store{
		rules:  make(map[types.RuleID]*storedRule),
		caches: NewCaches(),
	}
}

// Caches returns the caches owned by this store.
func (s *Store) Caches() *Caches {
	return s.caches
}

// SetVersion sets the engine version used for MinVersion gating.
// nil disables gating.
func (s *Store) SetVersion(v *semver.Version) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = v
}

// Register upserts rule by id and invalidates caches.
func (s *Store) Register(rule types.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(rule)
	s.caches.Invalidate()
}

// RegisterMany upserts every rule with a single cache invalidation.
func (s *Store) RegisterMany(rules []types.Rule) {
	if len(rules) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rules {
		s.put(r)
	}
	s.caches.Invalidate()
}

// Replace makes rules the complete rule set with a single cache
// invalidation. Surviving ids keep their insertion position. Returns the
// removed ids in insertion order.
func (s *Store) Replace(rules []types.Rule) []types.RuleID {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := make(map[types.RuleID]bool, len(rules))
	for _, r := range rules {
		keep[r.ID] = true
	}
	removed := []types.RuleID{}
	for _, sr := range s.sortedEntries() {
		if !keep[sr.rule.ID] {
			delete(s.rules, sr.rule.ID)
			removed = append(removed, sr.rule.ID)
		}
	}
	for _, r := range rules {
		s.put(r)
	}
	s.caches.Invalidate()
	return removed
}

// put stores a deep copy of the rule. Caller must hold mu.
func (s *Store) put(rule types.Rule) {
	if existing, ok := s.rules[rule.ID]; ok {
		existing.rule = cloneRule(rule)
		return
	}
	s.rules[rule.ID] = &storedRule{rule: cloneRule(rule), seq: s.nextSeq}
	s.nextSeq++
}

// Unregister removes id. Returns false, without invalidating caches, if
// id was not registered.
func (s *Store) Unregister(id types.RuleID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return false
	}
	delete(s.rules, id)
	s.caches.Invalidate()
	return true
}

// Get returns the rule registered under id.
func (s *Store) Get(id types.RuleID) (types.Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sr, ok := s.rules[id]
	if !ok {
		return types.Rule{}, false
	}
	return cloneRule(sr.rule), true
}

// Len returns the number of registered rules.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}

// List returns all rules in insertion order.
func (s *Store) List() []types.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.sortedEntries()
	out := make([]types.Rule, len(entries))
	for i, sr := range entries {
		out[i] = cloneRule(sr.rule)
	}
	return out
}

// Active returns enabled rules sorted by priority descending, ties broken
// by insertion order. strict additionally excludes deprecated rules.
func (s *Store) Active(strict bool) []types.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.sortedEntries()
	out := make([]types.Rule, 0, len(entries))
	for _, sr := range entries {
		r := &sr.rule
		if !r.Enabled {
			continue
		}
		if strict && r.Deprecated {
			continue
		}
		if !s.versionAllows(r.MinVersion, strict) {
			continue
		}
		out = append(out, cloneRule(*r))
	}

	// Stable sort: entries are already in insertion order
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// versionAllows applies MinVersion gating. Caller must hold mu.
func (s *Store) versionAllows(minVersion string, strict bool) bool {
	if s.version == nil || minVersion == "" {
		return true
	}
	required, err := semver.NewVersion(minVersion)
	if err != nil {
		return !strict
	}
	return !s.version.LessThan(required)
}

// sortedEntries returns entries in insertion order. Caller must hold mu.
func (s *Store) sortedEntries() []*storedRule {
	entries := make([]*storedRule, 0, len(s.rules))
	for _, sr := range s.rules {
		entries = append(entries, sr)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})
	return entries
}

// cloneRule copies the slices of r so stored rules cannot be mutated
// through a caller's reference.
func cloneRule(r types.Rule) types.Rule {
	r.Conditions = append([]types.Condition(nil), r.Conditions...)
	r.Actions = append([]types.Action(nil), r.Actions...)
	r.Tags = append([]string(nil), r.Tags...)
	r.DependsOn = append([]types.RuleID(nil), r.DependsOn...)
	r.ConflictsWith = append([]types.RuleID(nil), r.ConflictsWith...)
	r.RelatedRules = append([]types.RuleID(nil), r.RelatedRules...)
	return r
}
