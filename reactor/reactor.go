// Package reactor implements the Reactor: the outer driving
// loop that turns a schema, a root shape, and a live commit feed into a
// stream of Initial/Update messages, running the Planner, Change Applier,
// Validator, Materializer, and Patch Emitter in concert over Tracked State
// private to one subscription.
package reactor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/nextgraph-org/ng-orm-core/jerrors"
	"github.com/nextgraph-org/ng-orm-core/materialize"
	"github.com/nextgraph-org/ng-orm-core/patch"
	"github.com/nextgraph-org/ng-orm-core/planner"
	"github.com/nextgraph-org/ng-orm-core/rdf"
	"github.com/nextgraph-org/ng-orm-core/schema"
	"github.com/nextgraph-org/ng-orm-core/store"
	"github.com/nextgraph-org/ng-orm-core/tracked"
)

// Initial is delivered exactly once, as the first message of a
// subscription: the full materialized view at root shape, in
// first-validation order.
type Initial struct {
	Data []interface{}
}

// Update is delivered for every subsequent commit that changes the view: a
// batch of JSON patch operations to apply against the last delivered view.
// An Update carrying no Ops is never delivered: a commit that touches
// tracked predicates without changing any accepted value produces no
// observable patch.
type Update struct {
	Ops []patch.Op
}

// PassStats records wall-clock timing for one reactor pass, using
// protobuf's well-known time types per the AMBIENT STACK's instrumentation
// convention rather than plain time.Time/time.Duration.
type PassStats struct {
	StartedAt *timestamppb.Timestamp
	Elapsed   *durationpb.Duration
}

type options struct {
	sessionID string
}

// Option configures a subscription, following the functional-options idiom.
type Option func(*options)

// WithSessionID overrides the auto-generated session id (CommitEvent.SessionID)
// used to correlate a subscription's own writes.
func WithSessionID(id string) Option {
	return func(o *options) { o.sessionID = id }
}

// Subscription is the caller-facing handle returned by Start: a message
// stream and a cancel function.
type Subscription struct {
	ID         string
	SessionID  string
	GraphScope rdf.IRI

	cancel context.CancelFunc
	sk     *sink

	lastStats  PassStats
	statsReady bool
}

// Messages returns the subscription's delivery channel: an Initial message
// first, then zero or more Update messages, until Cancel is called or the
// commit feed is exhausted.
func (s *Subscription) Messages() <-chan interface{} { return s.sk.Out() }

// Cancel stops the subscription; its commit feed subscription is released
// and Messages() closes once any in-flight pass finishes.
func (s *Subscription) Cancel() { s.cancel() }

// runtime holds the mutable state of one subscription's reactor loop:
// Tracked State, root-validation order, and its collaborators. It is
// single-writer — only the goroutine started by Start ever mutates state.
type runtime struct {
	sch          *schema.Schema
	rootShapeIRI rdf.IRI
	graphScope   rdf.IRI

	state     *tracked.State
	rootOrder *tracked.RootOrder

	executor store.ConstructExecutor
}

// Start validates sch once, fetches the initial view for rootShape within
// graphScope, delivers it as the subscription's first message, and then
// drives further Update messages from feed until ctx is cancelled.
func Start(ctx context.Context, sch *schema.Schema, rootShape, graphScope rdf.IRI, executor store.ConstructExecutor, feed store.CommitFeed, opts ...Option) (*Subscription, error) {
	if err := sch.Validate(); err != nil {
		return nil, err
	}
	if _, ok := sch.Shape(rootShape); !ok {
		return nil, jerrors.Newf(jerrors.KindSchema, "reactor: root shape %q not found in schema", rootShape)
	}

	cfg := options{}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.sessionID == "" {
		cfg.sessionID = uuid.NewString()
	}

	rctx, cancel := context.WithCancel(ctx)
	rt := &runtime{
		sch:          sch,
		rootShapeIRI: rootShape,
		graphScope:   graphScope,
		state:        tracked.NewState(),
		rootOrder:    tracked.NewRootOrder(),
		executor:     executor,
	}

	sub := &Subscription{
		ID:         uuid.NewString(),
		SessionID:  cfg.sessionID,
		GraphScope: graphScope,
		cancel:     cancel,
		sk:         newSink(),
	}

	go rt.run(rctx, sub, feed)
	return sub, nil
}

func (rt *runtime) run(ctx context.Context, sub *Subscription, feed store.CommitFeed) {
	defer sub.sk.Close()
	defer sub.cancel()

	if err := rt.initial(ctx, sub); err != nil {
		return
	}

	events, err := feed.Subscribe(ctx, rt.graphScope)
	if err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.SessionID == sub.SessionID {
				// A subscription never reflects back its own writes as an
				// incremental update; it already has the post-write view from
				// the operation that produced them.
				continue
			}
			if err := rt.incremental(ctx, sub, ev); err != nil {
				return
			}
		}
	}
}

func (rt *runtime) initial(ctx context.Context, sub *Subscription) error {
	started := time.Now()

	query, err := planner.Plan(rt.sch, rt.rootShapeIRI, nil)
	if err != nil {
		return err
	}
	triples, err := rt.executor.Construct(ctx, query, &rt.graphScope)
	if err != nil {
		return jerrors.New(jerrors.KindStore, err)
	}

	if _, err := rt.runPass(ctx, triples, nil); err != nil {
		return err
	}

	rootShape := rt.sch.MustShape(rt.rootShapeIRI)
	data := materialize.Root(rt.state, rootShape, rt.rootOrder.Order(rt.rootShapeIRI))

	recordStats(sub, started)
	sub.sk.Send(Initial{Data: data})
	return nil
}

func (rt *runtime) incremental(ctx context.Context, sub *Subscription, ev store.CommitEvent) error {
	started := time.Now()

	changes, err := rt.runPass(ctx, ev.Inserted, ev.Removed)
	if err != nil {
		return err
	}

	ops := patch.Emit(rt.state, rt.sch, changes)
	recordStats(sub, started)
	if len(ops) == 0 {
		return nil
	}
	sub.sk.Send(Update{Ops: ops})
	return nil
}

func recordStats(sub *Subscription, started time.Time) {
	sub.lastStats = PassStats{
		StartedAt: timestamppb.New(started),
		Elapsed:   durationpb.New(time.Since(started)),
	}
	sub.statsReady = true
}

// Stats returns the timing of the most recently completed pass, and false
// until the first pass (always the initial view) has finished.
func (s *Subscription) Stats() (PassStats, bool) {
	return s.lastStats, s.statsReady
}
