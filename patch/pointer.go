package patch

import (
	"strings"

	"github.com/nextgraph-org/ng-orm-core/rdf"
	"github.com/nextgraph-org/ng-orm-core/schema"
	"github.com/nextgraph-org/ng-orm-core/tracked"
)

// escapeToken applies the two RFC 6901 escapes to one JSON-Pointer segment.
func escapeToken(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	s = strings.ReplaceAll(s, "/", "~1")
	return s
}

// memberKey is the JSON-Pointer segment identifying one member of a
// multi-valued predicate's set: the child IRI for a shape-typed value, or
// the value's own string rendering for a scalar one. Addressing members by
// identity rather than array position is what lets a "set"-annotated patch
// stay meaningful even though the Materializer renders the same predicate
// as a JSON array.
func memberKey(v rdf.Value) string {
	if v.Kind == rdf.KindIRI {
		return string(v.IRI)
	}
	return v.String()
}

// rootPaths returns every root-relative JSON-Pointer prefix that currently
// reaches key, one per distinct parent chain — a subject with multiple
// parents gets one patch per chain. The top-level
// collection is addressed as a map keyed by root subject IRI rather than by
// array position, since first-validation order (what the Materializer uses
// for the root array) is not a stable patch target across inserts/removals.
//
// A parent whose weak reference has been dropped (tracked.ParentRef.Ref
// returns nil) contributes no path for that chain; a cyclic parent chain is
// cut as soon as a key already on the chain is reached again.
func rootPaths(state *tracked.State, sch *schema.Schema, key tracked.Key, visiting map[tracked.Key]bool) []string {
	if visiting[key] {
		return nil
	}
	visiting = cloneVisiting(visiting, key)

	subject, ok := state.Get(key.Subject, key.Shape)
	if !ok {
		return nil
	}

	refs := allParentRefs(subject)
	if len(refs) == 0 {
		return []string{"/" + escapeToken(string(subject.SubjectIRI))}
	}

	var out []string
	for _, ref := range refs {
		parent := ref.Ref.Value()
		if parent == nil {
			continue
		}
		parentShape, ok := sch.Shape(ref.ParentKey.Shape)
		if !ok {
			continue
		}
		sp, ok := parentShape.Predicate(ref.ParentPredicate)
		if !ok {
			continue
		}

		parentPaths := rootPaths(state, sch, ref.ParentKey, visiting)
		segment := "/" + escapeToken(sp.Name)
		if sp.Multi() {
			segment += "/" + escapeToken(string(subject.SubjectIRI))
		}
		for _, pp := range parentPaths {
			out = append(out, pp+segment)
		}
	}
	return out
}

func allParentRefs(s *tracked.Subject) []tracked.ParentRef {
	var out []tracked.ParentRef
	for _, refs := range s.Parents {
		out = append(out, refs...)
	}
	return out
}

func cloneVisiting(visiting map[tracked.Key]bool, add tracked.Key) map[tracked.Key]bool {
	out := make(map[tracked.Key]bool, len(visiting)+1)
	for k := range visiting {
		out[k] = true
	}
	out[add] = true
	return out
}
