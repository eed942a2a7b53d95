// Package change holds the ephemeral, per-reactor-pass diff record that the
// apply, validate, materialize, and patch packages all thread through one
// reactor pass.
package change

import (
	"github.com/nextgraph-org/ng-orm-core/rdf"
	"github.com/nextgraph-org/ng-orm-core/tracked"
)

// PredicateChange is the predicate-level diff recorded by the Change
// Applier for one predicate of one Change.
type PredicateChange struct {
	ValuesAdded   []rdf.Value
	ValuesRemoved []rdf.Value

	// Predicate points at the TrackedPredicate this diff was applied to,
	// so downstream passes (validate, materialize, patch) don't need to
	// re-resolve it.
	Predicate *tracked.Predicate
}

// Change is the ephemeral record of a predicate-level diff for one
// (shape, subject) pair during one reactor pass.
type Change struct {
	Key tracked.Key

	// Subject is the TrackedSubject this Change refers to. It is filled in
	// by the Reactor/Applier on first touch; thereafter callers reuse the
	// same Change instance.
	Subject *tracked.Subject

	// Predicates is keyed by predicate IRI.
	Predicates map[rdf.IRI]*PredicateChange

	// DataApplied ensures a (shape, subject) pair receives triple
	// application at most once per pass.
	DataApplied bool
}

// New returns an empty Change for the given key and subject.
func New(key tracked.Key, subject *tracked.Subject) *Change {
	return &Change{
		Key:        key,
		Subject:    subject,
		Predicates: make(map[rdf.IRI]*PredicateChange),
	}
}

// PredicateChange returns (creating if needed) the PredicateChange for p.
func (c *Change) PredicateChange(p rdf.IRI, tp *tracked.Predicate) *PredicateChange {
	pc, ok := c.Predicates[p]
	if !ok {
		pc = &PredicateChange{Predicate: tp}
		c.Predicates[p] = pc
	}
	return pc
}

// IsEmpty reports whether this Change recorded no value diffs at all, as
// for a subject a commit batch touched in name only (e.g. an add of a value
// already present).
func (c *Change) IsEmpty() bool {
	for _, pc := range c.Predicates {
		if len(pc.ValuesAdded) > 0 || len(pc.ValuesRemoved) > 0 {
			return false
		}
	}
	return true
}

// Set is a pass-scoped collection of Changes keyed by (shape, subject),
// mirroring how the Reactor accumulates one Change per touched node before
// handing the whole set to the Patch Emitter at the end of a pass.
type Set struct {
	byKey map[tracked.Key]*Change
	// Order preserves the left-to-right, depth-first construction order:
	// Change records are built left-to-right across predicates and
	// depth-first across nested shapes.
	Order []tracked.Key
}

// NewSet returns an empty Change Set.
func NewSet() *Set {
	return &Set{byKey: make(map[tracked.Key]*Change)}
}

// GetOrCreate returns the Change for key, creating and recording its
// construction order the first time it is requested.
func (s *Set) GetOrCreate(key tracked.Key, subject *tracked.Subject) *Change {
	c, ok := s.byKey[key]
	if ok {
		return c
	}
	c = New(key, subject)
	s.byKey[key] = c
	s.Order = append(s.Order, key)
	return c
}

// Get looks up a Change without creating one.
func (s *Set) Get(key tracked.Key) (*Change, bool) {
	c, ok := s.byKey[key]
	return c, ok
}

// Changes returns every Change in the set, in construction order.
func (s *Set) Changes() []*Change {
	out := make([]*Change, 0, len(s.Order))
	for _, k := range s.Order {
		out = append(out, s.byKey[k])
	}
	return out
}
