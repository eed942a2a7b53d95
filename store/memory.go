package store

import (
	"context"
	"sync"

	"gocloud.dev/pubsub"
	"gocloud.dev/pubsub/mempubsub"

	"github.com/nextgraph-org/ng-orm-core/rdf"
)

// Memory is an in-process quad store used by tests and the cmd/ormserver
// demo: it satisfies ConstructExecutor by returning every stored triple
// without evaluating the query (see Construct), and publishes every Apply call onto an
// in-memory gocloud pubsub topic so a PubSubCommitFeed can be driven end
// to end without a real broker.
type Memory struct {
	mu      sync.RWMutex
	triples map[rdf.IRI][]rdf.Triple // by subject

	topic *pubsub.Topic
}

// NewMemory returns an empty Memory store with its commit topic open.
func NewMemory() *Memory {
	return &Memory{
		triples: make(map[rdf.IRI][]rdf.Triple),
		topic:   mempubsub.NewTopic(),
	}
}

// OpenCommitFeed opens a subscription against this store's commit topic
// and wraps it in a PubSubCommitFeed.
func (m *Memory) OpenCommitFeed() *PubSubCommitFeed {
	return NewPubSubCommitFeed(mempubsub.NewSubscription(m.topic, nil))
}

// Seed adds triples directly without publishing a commit event, for
// building the store's initial state before a subscription starts.
func (m *Memory) Seed(triples ...rdf.Triple) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range triples {
		m.triples[t.Subject] = append(m.triples[t.Subject], t)
	}
}

// Apply mutates the store and publishes a CommitEvent for graphScope so
// any subscribed PubSubCommitFeed observes it.
func (m *Memory) Apply(ctx context.Context, graphScope rdf.IRI, sessionID string, inserted, removed []rdf.Triple) error {
	m.mu.Lock()
	for _, t := range inserted {
		m.triples[t.Subject] = append(m.triples[t.Subject], t)
	}
	for _, t := range removed {
		m.removeLocked(t)
	}
	m.mu.Unlock()

	body, err := EncodeCommit(CommitEvent{Inserted: inserted, Removed: removed, GraphScope: graphScope, SessionID: sessionID})
	if err != nil {
		return err
	}
	return m.topic.Send(ctx, &pubsub.Message{Body: body})
}

func (m *Memory) removeLocked(t rdf.Triple) {
	ts := m.triples[t.Subject]
	for i, existing := range ts {
		if existing.Predicate == t.Predicate && existing.Object.Equal(t.Object) {
			m.triples[t.Subject] = append(ts[:i], ts[i+1:]...)
			return
		}
	}
}

// Construct implements ConstructExecutor with naive, full-store matching:
// it ignores the SPARQL text entirely and returns every currently stored
// triple. This is sufficient for tests that control the store directly and
// want to assert on Reactor/Validator/Patch Emitter behavior rather than on
// SPARQL evaluation, which is the external quad store's job, not this
// core's.
func (m *Memory) Construct(ctx context.Context, query string, defaultGraph *rdf.IRI) ([]rdf.Triple, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []rdf.Triple
	for _, ts := range m.triples {
		out = append(out, ts...)
	}
	return out, nil
}

// ConstructFiltered behaves like Construct but restricts the result to the
// given subjects, modeling a planner query issued with a subject filter
// without needing an actual SPARQL evaluator.
func (m *Memory) ConstructFiltered(subjects []rdf.IRI) []rdf.Triple {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []rdf.Triple
	for _, s := range subjects {
		out = append(out, m.triples[s]...)
	}
	return out
}

// Close releases the in-memory topic.
func (m *Memory) Close() error {
	return m.topic.Shutdown(context.Background())
}
