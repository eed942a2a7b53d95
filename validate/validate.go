// Package validate implements the Validator: it evaluates
// cardinality, datatype, and literal-membership rules for one Change and
// returns the nested (shape, subject) pairs that must reach a terminal
// validity before the Change's own validity can be treated as final.
package validate

import (
	"github.com/nextgraph-org/ng-orm-core/change"
	"github.com/nextgraph-org/ng-orm-core/rdf"
	"github.com/nextgraph-org/ng-orm-core/schema"
	"github.com/nextgraph-org/ng-orm-core/tracked"
)

// Result is the outcome of one Validate call.
type Result struct {
	// Validity is meaningful only when Pending is false.
	Validity tracked.Validity
	// Pending is true when at least one `shape`-typed value's child has not
	// yet reached a terminal validity; the caller (the Reactor) must drive
	// those children to resolution and call Validate again before trusting
	// Validity.
	Pending bool
	// Nested lists every child (shape, subject) this Change's validity
	// depends on, whether or not it is currently terminal. The Reactor
	// queues children from the Change Applier's NestedTasks, not from this
	// list.
	Nested []tracked.Key
}

// InProgress reports whether a (shape, subject) key is mid-validation in
// the current reactor pass — used here to avoid treating a cyclic sibling
// as simply "not yet tracked" when it is actually being processed one frame
// up the call stack.
type InProgress func(tracked.Key) bool

// Validate computes new validity for c.Subject given its current predicate
// value sets. It must be called after the Change Applier has folded the
// relevant triples in.
//
// optimistic is set by the Reactor's end-of-pass finalization sweep:
// when true, a child that never reached a
// terminal validity this pass (because it sits in the same unresolved
// reference cycle) is treated as satisfying its shape constraint rather
// than deferring again, so a closed cycle of otherwise-conformant subjects
// resolves to Valid instead of staying Untracked forever.
func Validate(state *tracked.State, sch *schema.Schema, c *change.Change, inProgress InProgress, optimistic bool) Result {
	subject := c.Subject
	valid := true
	pending := false
	var nested []tracked.Key

	for _, sp := range subject.Shape.Predicates {
		tp := subject.Predicates[sp.PredicateIRI]
		count := len(tp.Values)

		if count < sp.MinCardinality || (sp.MaxCardinality != -1 && count > sp.MaxCardinality) {
			valid = false
		}

		shapeAlts := sp.ShapeAlternatives()
		if len(shapeAlts) == 0 {
			continue
		}

		for _, v := range tp.Values {
			if v.Kind != rdf.KindIRI {
				valid = false
				continue
			}

			satisfied := false
			allTerminal := true

			for _, childShapeIRI := range shapeAlts {
				childKey := tracked.Key{Shape: childShapeIRI, Subject: v.IRI}
				nested = append(nested, childKey)

				child, ok := state.Get(v.IRI, childShapeIRI)
				if !ok {
					allTerminal = false
					continue
				}
				if inProgress != nil && inProgress(childKey) {
					allTerminal = false
					continue
				}
				switch child.Validity {
				case tracked.Valid:
					satisfied = true
				case tracked.Untracked:
					allTerminal = false
				}
				if satisfied {
					break
				}
			}

			if satisfied {
				continue
			}
			if !allTerminal {
				if optimistic {
					continue
				}
				pending = true
				continue
			}
			valid = false
		}
	}

	nested = dedupeKeys(nested)

	if pending {
		return Result{Pending: true, Nested: nested}
	}

	subject.PreviousValidity = subject.Validity
	if valid {
		subject.Validity = tracked.Valid
	} else {
		subject.Validity = tracked.Invalid
	}
	return Result{Validity: subject.Validity, Nested: nested}
}

func dedupeKeys(keys []tracked.Key) []tracked.Key {
	if len(keys) < 2 {
		return keys
	}
	seen := make(map[tracked.Key]bool, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
