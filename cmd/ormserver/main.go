// Command ormserver is a runnable demonstration of the reactor package: it
// seeds an in-memory quad store with a small Person/knows graph and serves
// subscriptions over a WebSocket, a single-file http.ListenAndServe demo
// binary, adding the streaming transport this core's subscriptions
// actually need.
package main

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/nextgraph-org/ng-orm-core/reactor"
	"github.com/nextgraph-org/ng-orm-core/rdf"
	"github.com/nextgraph-org/ng-orm-core/schema"
	"github.com/nextgraph-org/ng-orm-core/store"
)

const (
	personShapeIRI = rdf.IRI("https://example.org/shapes/Person")
	nameIRI        = rdf.IRI("https://example.org/predicates/name")
	knowsIRI       = rdf.IRI("https://example.org/predicates/knows")
	demoGraph      = rdf.IRI("https://example.org/graphs/demo")
)

func buildSchema() *schema.Schema {
	person := &schema.SchemaShape{
		ShapeIRI: personShapeIRI,
		Predicates: []schema.SchemaPredicate{
			{
				PredicateIRI:   nameIRI,
				Name:           "name",
				MinCardinality: 1,
				MaxCardinality: 1,
				DataTypes:      []schema.SchemaDataType{{ValType: schema.ValString}},
			},
			{
				PredicateIRI:   knowsIRI,
				Name:           "knows",
				MinCardinality: 0,
				MaxCardinality: -1,
				DataTypes:      []schema.SchemaDataType{{ValType: schema.ValShape, ShapeIRI: personShapeIRI}},
			},
		},
	}
	return schema.New([]*schema.SchemaShape{person})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// subscribeHandler upgrades to a WebSocket, starts one reactor subscription
// per connection, and forwards every Initial/Update message as a JSON
// frame until the client disconnects.
func subscribeHandler(sch *schema.Schema, mem *store.Memory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("ormserver: websocket upgrade: %v", err)
			return
		}
		defer conn.Close()

		feed := mem.OpenCommitFeed()
		sub, err := reactor.Start(r.Context(), sch, personShapeIRI, demoGraph, mem, feed)
		if err != nil {
			_ = conn.WriteJSON(map[string]string{"error": err.Error()})
			return
		}
		defer sub.Cancel()

		for msg := range sub.Messages() {
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

func main() {
	sch := buildSchema()
	if err := sch.Validate(); err != nil {
		log.Fatalf("ormserver: invalid schema: %v", err)
	}

	mem := store.NewMemory()
	defer mem.Close()
	mem.Seed(
		rdf.Triple{Subject: "https://example.org/people/alice", Predicate: nameIRI, Object: rdf.StringValue("Alice")},
		rdf.Triple{Subject: "https://example.org/people/bob", Predicate: nameIRI, Object: rdf.StringValue("Bob")},
		rdf.Triple{Subject: "https://example.org/people/alice", Predicate: knowsIRI, Object: rdf.IRIValue("https://example.org/people/bob")},
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/subscribe", subscribeHandler(sch, mem))

	// h2c lets a local client speak HTTP/2 to this demo without TLS; the
	// WebSocket upgrade itself still rides ordinary HTTP/1.1 semantics.
	handler := h2c.NewHandler(mux, &http2.Server{})

	log.Println("ormserver listening on :9000")
	if err := http.ListenAndServe(":9000", handler); err != nil {
		log.Fatalf("ormserver: %v", err)
	}
}
