package apply

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nextgraph-org/ng-orm-core/change"
	"github.com/nextgraph-org/ng-orm-core/rdf"
	"github.com/nextgraph-org/ng-orm-core/schema"
	"github.com/nextgraph-org/ng-orm-core/tracked"
)

func personSchema(extra bool) *schema.Schema {
	person := &schema.SchemaShape{
		ShapeIRI: "urn:shape:Person",
		Predicates: []schema.SchemaPredicate{
			{
				PredicateIRI: "urn:pred:name", Name: "name",
				MinCardinality: 1, MaxCardinality: 1, Extra: extra,
				DataTypes: []schema.SchemaDataType{{ValType: schema.ValString}},
			},
			{
				PredicateIRI: "urn:pred:knows", Name: "knows",
				MinCardinality: 0, MaxCardinality: -1,
				DataTypes: []schema.SchemaDataType{{ValType: schema.ValShape, ShapeIRI: "urn:shape:Person"}},
			},
		},
	}
	return schema.New([]*schema.SchemaShape{person})
}

func TestApplyAcceptsDeclaredValue(t *testing.T) {
	sch := personSchema(false)
	shape := sch.MustShape("urn:shape:Person")
	state := tracked.NewState()
	subject := state.GetOrCreate("urn:people:alice", shape)
	key := tracked.Key{Shape: shape.ShapeIRI, Subject: subject.SubjectIRI}
	c := change.New(key, subject)

	added := []rdf.Triple{{Subject: "urn:people:alice", Predicate: "urn:pred:name", Object: rdf.StringValue("Alice")}}
	nested, err := Apply(state, sch, c, added, nil)
	require.NoError(t, err)
	require.Empty(t, nested)
	require.Len(t, subject.Predicates["urn:pred:name"].Values, 1)
	require.True(t, c.DataApplied)
}

func TestApplyRejectsUndeclaredDatatypeWithoutExtra(t *testing.T) {
	sch := personSchema(false)
	shape := sch.MustShape("urn:shape:Person")
	state := tracked.NewState()
	subject := state.GetOrCreate("urn:people:alice", shape)
	c := change.New(tracked.Key{Shape: shape.ShapeIRI, Subject: subject.SubjectIRI}, subject)

	added := []rdf.Triple{{Subject: "urn:people:alice", Predicate: "urn:pred:name", Object: rdf.NumberValue(42)}}
	_, err := Apply(state, sch, c, added, nil)
	require.NoError(t, err)
	require.Empty(t, subject.Predicates["urn:pred:name"].Values)
	require.Equal(t, 1, subject.Predicates["urn:pred:name"].Rejecting)
}

func TestApplyExtraIgnoresSilently(t *testing.T) {
	sch := personSchema(true)
	shape := sch.MustShape("urn:shape:Person")
	state := tracked.NewState()
	subject := state.GetOrCreate("urn:people:alice", shape)
	c := change.New(tracked.Key{Shape: shape.ShapeIRI, Subject: subject.SubjectIRI}, subject)

	added := []rdf.Triple{{Subject: "urn:people:alice", Predicate: "urn:pred:name", Object: rdf.NumberValue(42)}}
	_, err := Apply(state, sch, c, added, nil)
	require.NoError(t, err)
	require.Equal(t, 0, subject.Predicates["urn:pred:name"].Rejecting)
}

func TestApplyDiscoversNestedChild(t *testing.T) {
	sch := personSchema(false)
	shape := sch.MustShape("urn:shape:Person")
	state := tracked.NewState()
	subject := state.GetOrCreate("urn:people:alice", shape)
	c := change.New(tracked.Key{Shape: shape.ShapeIRI, Subject: subject.SubjectIRI}, subject)

	added := []rdf.Triple{{Subject: "urn:people:alice", Predicate: "urn:pred:knows", Object: rdf.IRIValue("urn:people:bob")}}
	nested, err := Apply(state, sch, c, added, nil)
	require.NoError(t, err)
	require.Len(t, nested, 1)
	require.Equal(t, rdf.IRI("urn:people:bob"), nested[0].Subject)
	require.True(t, nested[0].NeedsFetch)

	bob, ok := state.Get("urn:people:bob", shape.ShapeIRI)
	require.True(t, ok)
	require.Len(t, bob.Parents["urn:people:alice"], 1)
}

func TestApplyRemovesValue(t *testing.T) {
	sch := personSchema(false)
	shape := sch.MustShape("urn:shape:Person")
	state := tracked.NewState()
	subject := state.GetOrCreate("urn:people:alice", shape)
	subject.Predicates["urn:pred:name"].Values = []rdf.Value{rdf.StringValue("Alice")}
	c := change.New(tracked.Key{Shape: shape.ShapeIRI, Subject: subject.SubjectIRI}, subject)

	removed := []rdf.Triple{{Subject: "urn:people:alice", Predicate: "urn:pred:name", Object: rdf.StringValue("Alice")}}
	_, err := Apply(state, sch, c, nil, removed)
	require.NoError(t, err)
	require.Empty(t, subject.Predicates["urn:pred:name"].Values)
	pc := c.Predicates["urn:pred:name"]
	require.Len(t, pc.ValuesRemoved, 1)
}
