// Package apply implements the Change Applier: it folds a
// batch of added/removed triples for one TrackedSubject into that
// subject's predicate value sets, recording a predicate-level diff into a
// Change. It is purely functional on its inputs — it never triggers
// validation or fetches itself; those are the Validator's and Reactor's
// jobs respectively.
package apply

import (
	"github.com/nextgraph-org/ng-orm-core/change"
	"github.com/nextgraph-org/ng-orm-core/rdf"
	"github.com/nextgraph-org/ng-orm-core/schema"
	"github.com/nextgraph-org/ng-orm-core/tracked"
)

// NestedTask is one child (shape, subject) discovered while applying a
// `shape`-typed predicate's added values. NeedsFetch is true iff the child
// was newly tracked under that shape by this call — i.e. the Reactor must
// fetch its triples through the Planner before it can be validated.
type NestedTask struct {
	Shape      rdf.IRI
	Subject    rdf.IRI
	NeedsFetch bool
}

// Apply folds addedTriples/removedTriples (already filtered to this
// subject) into subject's tracked predicates, recording the diff into c,
// and returns the nested (shape, subject) pairs discovered through any
// `shape`-typed predicate.
//
// sch is used only to resolve the child SchemaShape for each shape
// alternative; the schema itself is assumed already Validate()'d by the
// caller (the Reactor, once, at subscription start).
func Apply(state *tracked.State, sch *schema.Schema, c *change.Change, addedTriples, removedTriples []rdf.Triple) ([]NestedTask, error) {
	subject := c.Subject
	var nested []NestedTask

	for _, sp := range subject.Shape.Predicates {
		tp := subject.Predicates[sp.PredicateIRI]
		pc := c.PredicateChange(sp.PredicateIRI, tp)

		for _, t := range removedTriples {
			if t.Predicate != sp.PredicateIRI {
				continue
			}
			if tp.Remove(t.Object) {
				pc.ValuesRemoved = append(pc.ValuesRemoved, t.Object)
			}
		}

		for _, t := range addedTriples {
			if t.Predicate != sp.PredicateIRI {
				continue
			}
			v := t.Object

			accepted := false
			for _, dt := range sp.DataTypes {
				if dt.ValType == schema.ValShape {
					if v.Kind == rdf.KindIRI {
						accepted = true
					}
					continue
				}
				if dt.Accepts(v) {
					accepted = true
				}
			}

			if !accepted {
				if !sp.Extra {
					tp.Rejecting++
				}
				continue
			}

			if tp.Has(v) {
				continue
			}
			tp.Values = append(tp.Values, v)
			pc.ValuesAdded = append(pc.ValuesAdded, v)

			if v.Kind == rdf.KindIRI {
				for _, childShapeIRI := range sp.ShapeAlternatives() {
					childShape, ok := sch.Shape(childShapeIRI)
					if !ok {
						continue
					}
					_, alreadyTracked := state.Get(v.IRI, childShapeIRI)
					child := state.GetOrCreate(v.IRI, childShape)
					child.AddParent(subject, sp.PredicateIRI)
					nested = append(nested, NestedTask{
						Shape:      childShapeIRI,
						Subject:    v.IRI,
						NeedsFetch: !alreadyTracked,
					})
				}
			}
		}
	}

	c.DataApplied = true
	return nested, nil
}
