// PubSubCommitFeed adapts gocloud.dev/pubsub to the CommitFeed interface,
// so the quad store's commit notifier can be backed by any broker gocloud
// supports (in-memory for tests, a real broker in production) without the
// Reactor knowing the difference.
package store

import (
	"context"
	"encoding/json"

	"gocloud.dev/pubsub"

	"github.com/nextgraph-org/ng-orm-core/jerrors"
	"github.com/nextgraph-org/ng-orm-core/rdf"
)

// wireValue is the lossless, transport-level encoding of rdf.Value — unlike
// rdf.Value.JSON, which deliberately degrades an iri-string object to a
// plain JSON string for the materialized view, this preserves Kind so a
// receiver can reconstruct the exact tagged union.
type wireValue struct {
	Kind string  `json:"kind"`
	Str  string  `json:"str,omitempty"`
	Num  float64 `json:"num,omitempty"`
	Bool bool    `json:"bool,omitempty"`
	IRI  string  `json:"iri,omitempty"`
}

func toWireValue(v rdf.Value) wireValue {
	return wireValue{Kind: v.Kind.String(), Str: v.Str, Num: v.Num, Bool: v.Bool, IRI: string(v.IRI)}
}

func (w wireValue) toValue() rdf.Value {
	switch w.Kind {
	case "number":
		return rdf.NumberValue(w.Num)
	case "boolean":
		return rdf.BooleanValue(w.Bool)
	case "iri-string":
		return rdf.IRIValue(rdf.IRI(w.IRI))
	default:
		return rdf.StringValue(w.Str)
	}
}

type wireTriple struct {
	Subject   string    `json:"subject"`
	Predicate string    `json:"predicate"`
	Object    wireValue `json:"object"`
}

func toWireTriple(t rdf.Triple) wireTriple {
	return wireTriple{Subject: string(t.Subject), Predicate: string(t.Predicate), Object: toWireValue(t.Object)}
}

func (w wireTriple) toTriple() rdf.Triple {
	return rdf.Triple{Subject: rdf.IRI(w.Subject), Predicate: rdf.IRI(w.Predicate), Object: w.Object.toValue()}
}

type wireCommit struct {
	Inserted   []wireTriple `json:"inserted"`
	Removed    []wireTriple `json:"removed"`
	GraphScope string       `json:"graph_scope"`
	SessionID  string       `json:"session_id"`
}

// EncodeCommit marshals a CommitEvent for publication to a pubsub.Topic;
// the commit-pipeline side of the system (out of scope for this core) is
// expected to use this, or an equivalent encoding, when publishing to the
// topic a PubSubCommitFeed subscribes to.
func EncodeCommit(ev CommitEvent) ([]byte, error) {
	w := wireCommit{GraphScope: string(ev.GraphScope), SessionID: ev.SessionID}
	for _, t := range ev.Inserted {
		w.Inserted = append(w.Inserted, toWireTriple(t))
	}
	for _, t := range ev.Removed {
		w.Removed = append(w.Removed, toWireTriple(t))
	}
	return json.Marshal(w)
}

func decodeCommit(body []byte) (CommitEvent, error) {
	var w wireCommit
	if err := json.Unmarshal(body, &w); err != nil {
		return CommitEvent{}, err
	}
	ev := CommitEvent{GraphScope: rdf.IRI(w.GraphScope), SessionID: w.SessionID}
	for _, t := range w.Inserted {
		ev.Inserted = append(ev.Inserted, t.toTriple())
	}
	for _, t := range w.Removed {
		ev.Removed = append(ev.Removed, t.toTriple())
	}
	return ev, nil
}

// PubSubCommitFeed is a CommitFeed backed by a single gocloud pubsub
// subscription. Every message on Sub is expected to decode to a
// wireCommit (see EncodeCommit); messages for a graph scope other than the
// one passed to Subscribe are Ack'd and dropped without being delivered.
type PubSubCommitFeed struct {
	Sub *pubsub.Subscription
}

// NewPubSubCommitFeed wraps an already-open subscription.
func NewPubSubCommitFeed(sub *pubsub.Subscription) *PubSubCommitFeed {
	return &PubSubCommitFeed{Sub: sub}
}

func (f *PubSubCommitFeed) Subscribe(ctx context.Context, graphScope rdf.IRI) (<-chan CommitEvent, error) {
	if f.Sub == nil {
		return nil, jerrors.Newf(jerrors.KindStore, "pubsub commit feed: nil subscription")
	}

	out := make(chan CommitEvent)
	go func() {
		defer close(out)
		for {
			msg, err := f.Sub.Receive(ctx)
			if err != nil {
				return
			}
			ev, decErr := decodeCommit(msg.Body)
			if decErr != nil {
				msg.Ack()
				continue
			}
			if ev.GraphScope != graphScope {
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
