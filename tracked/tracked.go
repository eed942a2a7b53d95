// Package tracked holds the per-subscription graph of tracked (subject,
// shape) nodes: the live validation state the Reactor drives to a fixed
// point on every pass.
//
// Children hold strong references to themselves only via the subscription's
// single owning map (State.subjects); parent back-references are weak,
// using the standard library's weak.Pointer so a dropped parent simply
// resolves to nil rather than keeping the whole graph alive forever.
package tracked

import (
	"weak"

	"github.com/nextgraph-org/ng-orm-core/rdf"
	"github.com/nextgraph-org/ng-orm-core/schema"
)

// Validity is the three-valued validation status of a TrackedSubject.
type Validity int

const (
	Untracked Validity = iota
	Valid
	Invalid
)

func (v Validity) String() string {
	switch v {
	case Valid:
		return "Valid"
	case Invalid:
		return "Invalid"
	default:
		return "Untracked"
	}
}

// Key identifies a tracked node by (shape, subject) — the same compound key
// used throughout for tracked subjects and changes.
type Key struct {
	Shape   rdf.IRI
	Subject rdf.IRI
}

// ParentRef is a weak, non-owning back-reference from a child
// TrackedSubject to one of its parents. Traversal (the Patch Emitter's path
// walk) must tolerate Ref.Value() returning nil when the parent has been
// dropped from the subscription's subject map.
type ParentRef struct {
	ParentKey Key
	// ParentPredicate is the predicate IRI on the parent through which this
	// child was reached — needed to reconstruct the JSON-Pointer path
	// segment.
	ParentPredicate rdf.IRI
	Ref             weak.Pointer[Subject]
}

// Predicate is the tracked, per-subscription state of one predicate of one
// subject: the schema definition it was declared against, and the value
// set currently accepted for it.
type Predicate struct {
	Schema schema.SchemaPredicate
	Values []rdf.Value

	// Rejecting counts values that were added but failed every datatype
	// check under Extra==false; a nonzero count alone does not invalidate
	// the predicate — cardinality and the value set do (see validate
	// package) — but it is kept so diagnostics can explain a validity
	// transition.
	Rejecting int
}

// Has reports whether v is already present in this predicate's value set.
func (p *Predicate) Has(v rdf.Value) bool {
	for _, existing := range p.Values {
		if existing.Equal(v) {
			return true
		}
	}
	return false
}

// Remove deletes v from the value set if present, reporting whether it was
// found.
func (p *Predicate) Remove(v rdf.Value) bool {
	for i, existing := range p.Values {
		if existing.Equal(v) {
			p.Values = append(p.Values[:i], p.Values[i+1:]...)
			return true
		}
	}
	return false
}

// Subject is the core's in-memory, per-subscription view of one (subject,
// shape) pair.
type Subject struct {
	SubjectIRI rdf.IRI
	Shape      *schema.SchemaShape

	// Predicates is keyed by predicate IRI.
	Predicates map[rdf.IRI]*Predicate

	Validity         Validity
	PreviousValidity Validity

	// Parents is a multimap keyed by parent subject IRI — a subject may be
	// reached through the same predicate from several distinct parent
	// subjects, and the Patch Emitter emits one patch per
	// parent chain.
	Parents map[rdf.IRI][]ParentRef
}

func newSubject(subjectIRI rdf.IRI, shape *schema.SchemaShape) *Subject {
	preds := make(map[rdf.IRI]*Predicate, len(shape.Predicates))
	for _, sp := range shape.Predicates {
		preds[sp.PredicateIRI] = &Predicate{Schema: sp}
	}
	return &Subject{
		SubjectIRI:       subjectIRI,
		Shape:            shape,
		Predicates:       preds,
		Validity:         Untracked,
		PreviousValidity: Untracked,
		Parents:          make(map[rdf.IRI][]ParentRef),
	}
}

// AddParent records a weak back-reference from this subject to one of its
// parents, de-duplicating on (parent key, predicate).
func (s *Subject) AddParent(parent *Subject, predicate rdf.IRI) {
	key := Key{Shape: parent.Shape.ShapeIRI, Subject: parent.SubjectIRI}
	for _, ref := range s.Parents[parent.SubjectIRI] {
		if ref.ParentKey == key && ref.ParentPredicate == predicate {
			return
		}
	}
	s.Parents[parent.SubjectIRI] = append(s.Parents[parent.SubjectIRI], ParentRef{
		ParentKey:       key,
		ParentPredicate: predicate,
		Ref:             weak.Make(parent),
	})
}

// State is the owning container of every TrackedSubject for one
// subscription. It is single-writer (the subscription's own reactor pass)
// and multi-reader (a concurrently-running Patch Emitter may read between
// reactor steps).
type State struct {
	subjects map[Key]*Subject
}

// NewState returns an empty Tracked State.
func NewState() *State {
	return &State{subjects: make(map[Key]*Subject)}
}

// GetOrCreate is idempotent: repeated calls for the same (subject, shape)
// return the identical *Subject pointer, which is load-bearing for parent
// back-reference correctness.
func (st *State) GetOrCreate(subjectIRI rdf.IRI, shape *schema.SchemaShape) *Subject {
	key := Key{Shape: shape.ShapeIRI, Subject: subjectIRI}
	if s, ok := st.subjects[key]; ok {
		return s
	}
	s := newSubject(subjectIRI, shape)
	st.subjects[key] = s
	return s
}

// Get looks up an already-tracked subject without creating one.
func (st *State) Get(subjectIRI, shapeIRI rdf.IRI) (*Subject, bool) {
	s, ok := st.subjects[Key{Shape: shapeIRI, Subject: subjectIRI}]
	return s, ok
}

// Delete removes a tracked subject. The Reactor does not call it: a
// subject caught in a cycle is marked Invalid and stays tracked.
func (st *State) Delete(key Key) {
	delete(st.subjects, key)
}

// ParentsOf returns the weak parent references recorded for (subject,
// shape), or nil when that pair is not tracked.
func (st *State) ParentsOf(subjectIRI, shapeIRI rdf.IRI) []ParentRef {
	s, ok := st.subjects[Key{Shape: shapeIRI, Subject: subjectIRI}]
	if !ok {
		return nil
	}
	var all []ParentRef
	for _, refs := range s.Parents {
		all = append(all, refs...)
	}
	return all
}

// All returns every tracked subject currently held, for diagnostics and
// snapshot_view.
func (st *State) All() map[Key]*Subject {
	return st.subjects
}

// RootOrder is a helper insertion-order index: it records, per shape, the
// order in which subjects were first validated there, so Materializer and
// the root-level view can emit the root array in
// first-validation order rather than arbitrary map iteration order.
type RootOrder struct {
	order map[rdf.IRI][]rdf.IRI
	seen  map[Key]bool
}

// NewRootOrder returns an empty insertion-order tracker.
func NewRootOrder() *RootOrder {
	return &RootOrder{order: make(map[rdf.IRI][]rdf.IRI), seen: make(map[Key]bool)}
}

// Observe records subjectIRI as validated at shapeIRI the first time it is
// seen; subsequent calls are no-ops.
func (r *RootOrder) Observe(shapeIRI, subjectIRI rdf.IRI) {
	key := Key{Shape: shapeIRI, Subject: subjectIRI}
	if r.seen[key] {
		return
	}
	r.seen[key] = true
	r.order[shapeIRI] = append(r.order[shapeIRI], subjectIRI)
}

// Order returns the recorded first-validation order for shapeIRI.
func (r *RootOrder) Order(shapeIRI rdf.IRI) []rdf.IRI {
	return r.order[shapeIRI]
}
