// Package materialize implements the Materializer: it walks
// the Tracked State reachable from a root shape and renders it into plain
// JSON values — the shape produced by the Reactor's "Initial" message and
// by any snapshot_view debugging dump.
package materialize

import (
	"github.com/nextgraph-org/ng-orm-core/rdf"
	"github.com/nextgraph-org/ng-orm-core/schema"
	"github.com/nextgraph-org/ng-orm-core/tracked"
)

// Root renders every subject order (the first-validation order for
// rootShape, per tracked.RootOrder) into a JSON array of objects, skipping
// any subject that is not currently Valid.
func Root(state *tracked.State, rootShape *schema.SchemaShape, order []rdf.IRI) []interface{} {
	out := make([]interface{}, 0, len(order))
	for _, iri := range order {
		subject, ok := state.Get(iri, rootShape.ShapeIRI)
		if !ok || subject.Validity != tracked.Valid {
			continue
		}
		out = append(out, Subject(state, subject))
	}
	return out
}

// Subject renders one TrackedSubject into a JSON object, including its
// `@id` field.
func Subject(state *tracked.State, subject *tracked.Subject) map[string]interface{} {
	obj := map[string]interface{}{"@id": string(subject.SubjectIRI)}
	for _, sp := range subject.Shape.Predicates {
		tp := subject.Predicates[sp.PredicateIRI]
		obj[sp.Name] = predicateValue(state, sp, tp)
	}
	return obj
}

// predicateValue renders one predicate's current value set: a scalar for a
// single-valued, non-shape predicate; an array for a multi-valued one; a
// nested object (or an object keyed by child IRI, for multi-valued shape
// predicates) when the predicate carries a `shape` datatype alternative.
func predicateValue(state *tracked.State, sp schema.SchemaPredicate, tp *tracked.Predicate) interface{} {
	shapeAlts := sp.ShapeAlternatives()
	if len(shapeAlts) == 0 {
		return scalarValue(sp, tp)
	}

	if sp.Multi() {
		keyed := make(map[string]interface{})
		for _, v := range tp.Values {
			if v.Kind != rdf.KindIRI {
				continue
			}
			child, ok := resolveChild(state, shapeAlts, v.IRI)
			if !ok {
				continue
			}
			keyed[string(v.IRI)] = Subject(state, child)
		}
		return keyed
	}

	for _, v := range tp.Values {
		if v.Kind != rdf.KindIRI {
			continue
		}
		child, ok := resolveChild(state, shapeAlts, v.IRI)
		if !ok {
			continue
		}
		return Subject(state, child)
	}
	return nil
}

// resolveChild looks up, in shapeAlts priority order, the first alternative
// under which subjectIRI is tracked and Valid — the same "priority switch"
// rule the Validator applies when checking shape-satisfaction.
func resolveChild(state *tracked.State, shapeAlts []rdf.IRI, subjectIRI rdf.IRI) (*tracked.Subject, bool) {
	for _, shapeIRI := range shapeAlts {
		child, ok := state.Get(subjectIRI, shapeIRI)
		if ok && child.Validity == tracked.Valid {
			return child, true
		}
	}
	return nil, false
}

// scalarValue renders a non-shape predicate: an array of accepted
// BasicValues when Multi(), otherwise the lone scalar value, or an empty
// array when the predicate is absent, multi-valued, and optional
// (min-cardinality 0).
func scalarValue(sp schema.SchemaPredicate, tp *tracked.Predicate) interface{} {
	if sp.Multi() {
		vals := make([]interface{}, 0, len(tp.Values))
		for _, v := range tp.Values {
			vals = append(vals, v.JSON())
		}
		return vals
	}
	if len(tp.Values) == 0 {
		return nil
	}
	return tp.Values[0].JSON()
}
