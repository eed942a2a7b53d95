// Package patch implements the Patch Emitter: it turns one
// reactor pass's change.Set into an ordered list of RFC-6902-flavored JSON
// patch operations describing how the previously-materialized view must
// change to match the new Tracked State.
package patch

import (
	"sort"

	"github.com/nextgraph-org/ng-orm-core/change"
	"github.com/nextgraph-org/ng-orm-core/rdf"
	"github.com/nextgraph-org/ng-orm-core/schema"
	"github.com/nextgraph-org/ng-orm-core/tracked"
)

// Op is one patch operation. ValType tells a receiver how to interpret the
// final Path segment when it does not carry enough information on its own:
//   - "object": the segment addresses a single nested object (single-valued
//     shape predicate) or one member of an object keyed by child IRI
//     (multi-valued shape predicate).
//   - "set": the segment addresses one member of an unordered scalar value
//     set, identified by the value's own rendering rather than by array
//     index, even though the Materializer renders the same predicate as a
//     JSON array.
//   - "scalar": the segment addresses a single-valued scalar predicate.
type Op struct {
	Op    string // "add" | "remove"
	Path  string // RFC 6901 JSON Pointer, rooted at a map keyed by root subject IRI
	Value interface{} `json:"value,omitempty"`
	ValType string
}

// Emit renders changes into patch operations, in the order their Changes
// were first touched this pass (left-to-right across predicates,
// depth-first across nested shapes), with object-creation
// operations sorted ahead of the operations they contain: a shorter Path
// always sorts before a longer one that has it as a prefix, and among ops
// at equal Path length a "remove" sorts before an "add" — so a shape's
// priority switch (one shape alternative invalidating while another
// becomes valid at the same path) always removes the old object before
// the new one is added.
func Emit(state *tracked.State, sch *schema.Schema, changes *change.Set) []Op {
	var ops []Op
	for _, c := range changes.Changes() {
		ops = append(ops, emitChange(state, sch, c)...)
	}
	sort.SliceStable(ops, func(i, j int) bool {
		if len(ops[i].Path) != len(ops[j].Path) {
			return len(ops[i].Path) < len(ops[j].Path)
		}
		return ops[i].Op == "remove" && ops[j].Op == "add"
	})
	return ops
}

// emitChange renders one Change's patch ops, gated on the subject's
// validity transition across this pass:
//   - Invalid (or never tracked) before and Invalid/Untracked now: nothing
//     to retract from a view that never held this subject.
//   - Valid before and Invalid/Untracked now: the subject disappears from
//     the view — a single "remove valType=object" op at each of its root
//     paths, no per-predicate diffs (they are moot).
//   - otherwise (Valid now): per-predicate value diffs. If the subject was
//     not Valid before this pass, it is appearing at this path for the
//     first time, so an object-creation op (plus its `@id`) precedes the
//     diffs. Shape-typed predicates never carry value ops here — the
//     child's own Change (already in this pass's Set) emits its own
//     `@id`/property ops at the same nested path; embedding the child's
//     materialized value here too would duplicate it.
func emitChange(state *tracked.State, sch *schema.Schema, c *change.Change) []Op {
	subject := c.Subject
	paths := rootPaths(state, sch, c.Key, nil)
	if len(paths) == 0 {
		return nil
	}

	wasValid := subject.PreviousValidity == tracked.Valid
	isValid := subject.Validity == tracked.Valid

	if !wasValid && !isValid {
		return nil
	}
	if wasValid && !isValid {
		var ops []Op
		for _, base := range paths {
			ops = append(ops, Op{Op: "remove", Path: base, ValType: "object"})
		}
		return ops
	}

	var ops []Op
	if !wasValid {
		for _, base := range paths {
			ops = append(ops, Op{Op: "add", Path: base, ValType: "object"})
			ops = append(ops, Op{Op: "add", Path: base + "/@id", Value: string(subject.SubjectIRI), ValType: "scalar"})
		}
	}

	for _, sp := range subject.Shape.Predicates {
		pc, ok := c.Predicates[sp.PredicateIRI]
		if !ok {
			continue
		}
		if len(sp.ShapeAlternatives()) > 0 {
			continue
		}

		valType := "scalar"
		if sp.Multi() {
			valType = "set"
		}

		for _, removed := range pc.ValuesRemoved {
			for _, base := range paths {
				ops = append(ops, Op{Op: "remove", Path: predicatePath(base, sp, removed), ValType: valType})
			}
		}
		for _, added := range pc.ValuesAdded {
			for _, base := range paths {
				ops = append(ops, Op{Op: "add", Path: predicatePath(base, sp, added), Value: added.JSON(), ValType: valType})
			}
		}
	}
	return ops
}

func predicatePath(base string, sp schema.SchemaPredicate, v rdf.Value) string {
	path := base + "/" + escapeToken(sp.Name)
	if sp.Multi() {
		path += "/" + escapeToken(memberKey(v))
	}
	return path
}
