// Package store defines the two external collaborators this core consumes
// from: a CONSTRUCT executor the Reactor and on-demand Planner fetches run
// queries against, and a commit feed the Reactor subscribes to for
// incremental triple batches. The core never mutates the store; both are
// pure consumption interfaces.
package store

import (
	"context"

	"github.com/nextgraph-org/ng-orm-core/rdf"
)

// ConstructExecutor runs a CONSTRUCT query produced by the planner package
// against the quad store and returns the resulting triples. Ordering
// within the returned slice carries no semantic meaning beyond grouping by
// subject.
type ConstructExecutor interface {
	Construct(ctx context.Context, query string, defaultGraph *rdf.IRI) ([]rdf.Triple, error)
}

// ConstructExecutorFunc adapts a plain function to a ConstructExecutor,
// the same func-as-interface idiom used elsewhere in this core.
type ConstructExecutorFunc func(ctx context.Context, query string, defaultGraph *rdf.IRI) ([]rdf.Triple, error)

func (f ConstructExecutorFunc) Construct(ctx context.Context, query string, defaultGraph *rdf.IRI) ([]rdf.Triple, error) {
	return f(ctx, query, defaultGraph)
}

// CommitEvent is one incremental graph mutation delivered by a CommitFeed:
// `(inserted, removed, graph_scope, session_id)`.
type CommitEvent struct {
	Inserted   []rdf.Triple
	Removed    []rdf.Triple
	GraphScope rdf.IRI
	SessionID  string
}

// CommitFeed is the sole source of incremental updates; the core never
// mutates the store through it.
type CommitFeed interface {
	// Subscribe returns a channel of commit events scoped to graphScope.
	// The returned channel is closed when ctx is cancelled or the
	// underlying transport is exhausted; the caller must drain it or
	// cancel ctx to avoid leaking the subscription goroutine.
	Subscribe(ctx context.Context, graphScope rdf.IRI) (<-chan CommitEvent, error)
}
