package reactor

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nextgraph-org/ng-orm-core/apply"
	"github.com/nextgraph-org/ng-orm-core/change"
	"github.com/nextgraph-org/ng-orm-core/jerrors"
	"github.com/nextgraph-org/ng-orm-core/planner"
	"github.com/nextgraph-org/ng-orm-core/rdf"
	"github.com/nextgraph-org/ng-orm-core/schema"
	"github.com/nextgraph-org/ng-orm-core/tracked"
	"github.com/nextgraph-org/ng-orm-core/validate"
)

// frame is one unit of work on the reactor's work stack: a shape and the
// specific subjects within it that need (re-)applying and (re-)validating
// this pass, plus the triple batch that applies to them. inserted/removed
// are the whole pass's ambient batch for a frame driven directly off a
// commit (or the initial CONSTRUCT); a frame spawned to resolve an
// on-demand Planner fetch carries just the triples that fetch returned, as
// pure additions.
type frame struct {
	shape    rdf.IRI
	subjects []rdf.IRI // nil means "derive touched subjects from the batch"
	inserted []rdf.Triple
	removed  []rdf.Triple
}

// nestedGroup accumulates, across every subject processed in one frame, the
// children discovered through one particular child shape — so the frame's
// fetch dispatch issues at most one Planner query per (frame, child shape)
// pair instead of one per subject.
type nestedGroup struct {
	shape    rdf.IRI
	fetch    []rdf.IRI
	deferred []rdf.IRI
}

// runPass drives one full reactor pass over a commit batch (or, for the
// initial view, the whole root-shape CONSTRUCT result treated as one large
// batch of additions) to a fixed point, and returns every Change touched.
func (rt *runtime) runPass(ctx context.Context, inserted, removed []rdf.Triple) (*change.Set, error) {
	changes := change.NewSet()
	inProgress := make(map[tracked.Key]bool)

	stack := []frame{{shape: rt.rootShapeIRI, inserted: inserted, removed: removed}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if err := rt.processFrame(ctx, f, inProgress, changes, &stack); err != nil {
			return nil, err
		}
	}

	rt.finalizePending(changes)
	return changes, nil
}

func (rt *runtime) processFrame(ctx context.Context, f frame, inProgress map[tracked.Key]bool, changes *change.Set, stack *[]frame) error {
	shape, ok := rt.sch.Shape(f.shape)
	if !ok {
		return jerrors.Newf(jerrors.KindSchema, "reactor: frame references unknown shape %q", f.shape)
	}

	touched := deriveTouched(shape, f.subjects, f.inserted, f.removed)

	// Pre-register a Change for every touched subject before applying any of
	// them, so a nested-task dedup check later in this loop (below) sees a
	// subject that is "already handled this pass" regardless of iteration
	// order — this is what keeps a mutual reference within the same batch
	// (a mutual-reference cycle) from re-dispatching a redundant,
	// self-defeating fetch for a subject already native to this frame.
	for _, subj := range touched {
		key := tracked.Key{Shape: f.shape, Subject: subj}
		ts := rt.state.GetOrCreate(subj, shape)
		changes.GetOrCreate(key, ts)
	}

	var frameKeys []tracked.Key
	groups := make(map[rdf.IRI]*nestedGroup)

	for _, subj := range touched {
		key := tracked.Key{Shape: f.shape, Subject: subj}

		if inProgress[key] {
			// Cycle: this (shape, subject) is already being processed further
			// up the call stack: mark Invalid, clear its
			// tracked predicates, skip.
			ts, _ := rt.state.Get(subj, f.shape)
			if ts != nil {
				ts.PreviousValidity = ts.Validity
				ts.Validity = tracked.Invalid
				for _, p := range ts.Predicates {
					p.Values = nil
					p.Rejecting = 0
				}
			}
			continue
		}

		inProgress[key] = true
		frameKeys = append(frameKeys, key)

		ts := rt.state.GetOrCreate(subj, shape)
		c := changes.GetOrCreate(key, ts)

		var nested []apply.NestedTask
		if !c.DataApplied {
			var err error
			nested, err = apply.Apply(rt.state, rt.sch, c, filterBySubject(f.inserted, subj), filterBySubject(f.removed, subj))
			if err != nil {
				return err
			}
		}

		result := validate.Validate(rt.state, rt.sch, c, func(k tracked.Key) bool { return inProgress[k] }, false)
		if !result.Pending && ts.Validity == tracked.Valid && f.shape == rt.rootShapeIRI {
			rt.rootOrder.Observe(f.shape, subj)
		}

		for _, nt := range nested {
			childKey := tracked.Key{Shape: nt.Shape, Subject: nt.Subject}
			if _, exists := changes.Get(childKey); exists {
				// Already native to this pass (either this same frame, via the
				// pre-registration loop above, or an earlier frame) — it will
				// be, or already was, processed on its own; dispatching it
				// again here would just re-fetch data we already have.
				continue
			}
			g := groups[nt.Shape]
			if g == nil {
				g = &nestedGroup{shape: nt.Shape}
				groups[nt.Shape] = g
			}
			if nt.NeedsFetch {
				g.fetch = append(g.fetch, nt.Subject)
			} else {
				g.deferred = append(g.deferred, nt.Subject)
			}
		}
	}

	if err := rt.dispatchNested(ctx, groups, f, stack); err != nil {
		return err
	}

	for _, key := range frameKeys {
		delete(inProgress, key)
	}
	return nil
}

// dispatchNested fans out the Planner fetches for every distinct nested
// shape group discovered in this frame concurrently, using
// golang.org/x/sync/errgroup, then pushes up to two new frames per
// group onto the work stack: a fetch frame carrying the freshly constructed
// triples, and/or a deferred frame reusing this frame's own ambient batch
// for children that were already tracked and so need no fetch.
func (rt *runtime) dispatchNested(ctx context.Context, groups map[rdf.IRI]*nestedGroup, f frame, stack *[]frame) error {
	if len(groups) == 0 {
		return nil
	}

	shapes := make([]rdf.IRI, 0, len(groups))
	for s := range groups {
		shapes = append(shapes, s)
	}
	sort.Slice(shapes, func(i, j int) bool { return shapes[i] < shapes[j] })

	results := make(map[rdf.IRI][]rdf.Triple, len(groups))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, shapeIRI := range shapes {
		grp := groups[shapeIRI]
		if len(grp.fetch) == 0 {
			continue
		}
		shapeIRI, grp := shapeIRI, grp
		g.Go(func() error {
			query, err := planner.Plan(rt.sch, shapeIRI, grp.fetch)
			if err != nil {
				return err
			}
			triples, err := rt.executor.Construct(gctx, query, &rt.graphScope)
			if err != nil {
				return jerrors.New(jerrors.KindStore, err)
			}
			mu.Lock()
			results[shapeIRI] = triples
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, shapeIRI := range shapes {
		grp := groups[shapeIRI]
		if len(grp.fetch) > 0 {
			*stack = append(*stack, frame{shape: shapeIRI, subjects: grp.fetch, inserted: results[shapeIRI]})
		}
		if len(grp.deferred) > 0 {
			*stack = append(*stack, frame{shape: shapeIRI, subjects: grp.deferred, inserted: f.inserted, removed: f.removed})
		}
	}
	return nil
}

// finalizePending resolves every subject still at Untracked validity once
// the whole pass's work stack has drained: such a subject never reached a
// terminal decision only because it sits in a reference cycle with other
// subjects in the same position. Re-running Validate with
// optimistic=true treats the cycle as closed and commits Valid/Invalid
// based on every constraint that does not itself depend on the cycle.
func (rt *runtime) finalizePending(changes *change.Set) {
	for _, c := range changes.Changes() {
		if c.Subject.Validity != tracked.Untracked {
			continue
		}
		validate.Validate(rt.state, rt.sch, c, func(tracked.Key) bool { return false }, true)
		if c.Subject.Validity == tracked.Valid && c.Key.Shape == rt.rootShapeIRI {
			rt.rootOrder.Observe(c.Key.Shape, c.Key.Subject)
		}
	}
}

// deriveTouched computes the distinct subjects a frame must process: the
// explicit list if one was given (an on-demand fetch or a deferred-children
// dispatch), or every subject appearing in the batch against one of shape's
// declared predicates, sorted for determinism.
func deriveTouched(shape *schema.SchemaShape, subjects []rdf.IRI, inserted, removed []rdf.Triple) []rdf.IRI {
	if subjects != nil {
		out := make([]rdf.IRI, len(subjects))
		copy(out, subjects)
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
		return out
	}

	declared := make(map[rdf.IRI]bool, len(shape.Predicates))
	for _, sp := range shape.Predicates {
		declared[sp.PredicateIRI] = true
	}

	seen := make(map[rdf.IRI]bool)
	var out []rdf.IRI
	for _, t := range inserted {
		if declared[t.Predicate] && !seen[t.Subject] {
			seen[t.Subject] = true
			out = append(out, t.Subject)
		}
	}
	for _, t := range removed {
		if declared[t.Predicate] && !seen[t.Subject] {
			seen[t.Subject] = true
			out = append(out, t.Subject)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func filterBySubject(triples []rdf.Triple, subject rdf.IRI) []rdf.Triple {
	var out []rdf.Triple
	for _, t := range triples {
		if t.Subject == subject {
			out = append(out, t)
		}
	}
	return out
}
