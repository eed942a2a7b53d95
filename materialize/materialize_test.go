package materialize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nextgraph-org/ng-orm-core/rdf"
	"github.com/nextgraph-org/ng-orm-core/schema"
	"github.com/nextgraph-org/ng-orm-core/tracked"
)

func personShape() *schema.SchemaShape {
	return &schema.SchemaShape{
		ShapeIRI: "urn:shape:Person",
		Predicates: []schema.SchemaPredicate{
			{PredicateIRI: "urn:pred:name", Name: "name", MinCardinality: 1, MaxCardinality: 1,
				DataTypes: []schema.SchemaDataType{{ValType: schema.ValString}}},
			{PredicateIRI: "urn:pred:tags", Name: "tags", MaxCardinality: -1,
				DataTypes: []schema.SchemaDataType{{ValType: schema.ValString}}},
			{PredicateIRI: "urn:pred:knows", Name: "knows", MaxCardinality: -1,
				DataTypes: []schema.SchemaDataType{{ValType: schema.ValShape, ShapeIRI: "urn:shape:Person"}}},
		},
	}
}

func TestSubjectRendersScalarsAndID(t *testing.T) {
	shape := personShape()
	state := tracked.NewState()
	alice := state.GetOrCreate("urn:people:alice", shape)
	alice.Predicates["urn:pred:name"].Values = []rdf.Value{rdf.StringValue("Alice")}
	alice.Predicates["urn:pred:tags"].Values = []rdf.Value{rdf.StringValue("a"), rdf.StringValue("b")}
	alice.Validity = tracked.Valid

	obj := Subject(state, alice)
	require.Equal(t, "urn:people:alice", obj["@id"])
	require.Equal(t, "Alice", obj["name"])
	require.Equal(t, []interface{}{"a", "b"}, obj["tags"])
}

func TestSubjectRendersNestedShapeKeyedByIRI(t *testing.T) {
	shape := personShape()
	state := tracked.NewState()
	alice := state.GetOrCreate("urn:people:alice", shape)
	alice.Predicates["urn:pred:name"].Values = []rdf.Value{rdf.StringValue("Alice")}
	alice.Predicates["urn:pred:knows"].Values = []rdf.Value{rdf.IRIValue("urn:people:bob")}
	alice.Validity = tracked.Valid

	bob := state.GetOrCreate("urn:people:bob", shape)
	bob.Predicates["urn:pred:name"].Values = []rdf.Value{rdf.StringValue("Bob")}
	bob.Validity = tracked.Valid

	obj := Subject(state, alice)
	knows, ok := obj["knows"].(map[string]interface{})
	require.True(t, ok)
	bobObj, ok := knows["urn:people:bob"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "Bob", bobObj["name"])
}

func TestSubjectOmitsInvalidNestedChild(t *testing.T) {
	shape := personShape()
	state := tracked.NewState()
	alice := state.GetOrCreate("urn:people:alice", shape)
	alice.Predicates["urn:pred:knows"].Values = []rdf.Value{rdf.IRIValue("urn:people:bob")}
	alice.Validity = tracked.Valid

	bob := state.GetOrCreate("urn:people:bob", shape)
	bob.Validity = tracked.Invalid

	obj := Subject(state, alice)
	knows, ok := obj["knows"].(map[string]interface{})
	require.True(t, ok)
	require.Empty(t, knows)
}

func TestRootSkipsInvalidSubjects(t *testing.T) {
	shape := personShape()
	state := tracked.NewState()
	alice := state.GetOrCreate("urn:people:alice", shape)
	alice.Predicates["urn:pred:name"].Values = []rdf.Value{rdf.StringValue("Alice")}
	alice.Validity = tracked.Valid
	bob := state.GetOrCreate("urn:people:bob", shape)
	bob.Validity = tracked.Invalid

	out := Root(state, shape, []rdf.IRI{"urn:people:alice", "urn:people:bob"})
	require.Len(t, out, 1)
}
