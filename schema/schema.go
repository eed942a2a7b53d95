// Package schema holds the immutable description of shapes, predicates,
// datatypes, cardinalities, and literal constraints that everything else in
// this core validates triples against.
//
// The shape taken by SchemaShape/SchemaPredicate/SchemaDataType mirrors the
// Object/Field/Type hierarchy found in GraphQL-style schema packages: an
// Object carries named Fields, each Field has one Type and metadata; here a
// SchemaShape carries ordered SchemaPredicates, each with an ordered list of
// SchemaDataType alternatives instead of a single Type, since a predicate
// may accept several datatypes and their relative order encodes validation
// priority.
package schema

import (
	"fmt"

	"github.com/iancoleman/strcase"

	"github.com/nextgraph-org/ng-orm-core/jerrors"
	"github.com/nextgraph-org/ng-orm-core/rdf"
)

// ValType enumerates the datatype kinds a SchemaDataType can express.
type ValType int

const (
	ValString ValType = iota
	ValNumber
	ValBoolean
	ValLiteral
	ValShape
)

func (v ValType) String() string {
	switch v {
	case ValString:
		return "string"
	case ValNumber:
		return "number"
	case ValBoolean:
		return "boolean"
	case ValLiteral:
		return "literal"
	case ValShape:
		return "shape"
	default:
		return "unknown"
	}
}

// SchemaDataType is one accepted alternative for a predicate's values.
// Order within a SchemaPredicate's DataTypes slice encodes priority: when
// several `shape` alternatives could match the same subject, the first one
// for which the child validates wins.
type SchemaDataType struct {
	ValType ValType

	// LiteralValues is only meaningful when ValType == ValLiteral: the
	// closed set of rdf.Value a value must exactly match. An empty set
	// rejects every value.
	LiteralValues []rdf.Value

	// ShapeIRI is only meaningful when ValType == ValShape: the shape the
	// referenced child subject must validate against.
	ShapeIRI rdf.IRI
}

// Accepts reports whether v matches this datatype alternative for scalar
// kinds (string/number/boolean/literal). It never resolves `shape`
// alternatives — those require a child TrackedSubject's validity and are
// handled by the validate package.
func (dt SchemaDataType) Accepts(v rdf.Value) bool {
	switch dt.ValType {
	case ValString:
		return v.Kind == rdf.KindString
	case ValNumber:
		return v.Kind == rdf.KindNumber
	case ValBoolean:
		return v.Kind == rdf.KindBoolean
	case ValLiteral:
		for _, lv := range dt.LiteralValues {
			if lv.Equal(v) {
				return true
			}
		}
		return false
	case ValShape:
		return v.Kind == rdf.KindIRI
	default:
		return false
	}
}

// SchemaPredicate describes one predicate of a shape: its cardinality
// bounds, the `extra` escape hatch, and the ordered datatypes it accepts.
type SchemaPredicate struct {
	PredicateIRI rdf.IRI

	// Name is the JSON property key the Materializer/Patch Emitter use. If
	// empty at construction time, Schema.Validate derives one from the IRI
	// fragment with strcase.ToLowerCamel.
	Name string

	MinCardinality int
	// MaxCardinality == -1 means unbounded.
	MaxCardinality int

	// Extra: values matching none of DataTypes are never added to the value
	// set. When Extra is false they are counted in tracked.Predicate.Rejecting;
	// when true they are not counted. Neither case changes the subject's
	// validity: the validate package does not read Rejecting.
	Extra bool

	DataTypes []SchemaDataType
}

// Multi reports whether this predicate can hold more than one accepted
// value (used by the Materializer to pick scalar-vs-array rendering).
func (p SchemaPredicate) Multi() bool {
	return p.MaxCardinality == -1 || p.MaxCardinality > 1
}

// ShapeAlternatives returns the ordered list of child shapes allowed by this
// predicate's `shape` datatypes; it is empty when the predicate has none.
func (p SchemaPredicate) ShapeAlternatives() []rdf.IRI {
	var out []rdf.IRI
	for _, dt := range p.DataTypes {
		if dt.ValType == ValShape {
			out = append(out, dt.ShapeIRI)
		}
	}
	return out
}

// SchemaShape is a named constraint set over predicates of a subject.
type SchemaShape struct {
	ShapeIRI   rdf.IRI
	Predicates []SchemaPredicate
}

// Predicate looks up a predicate of this shape by IRI.
func (s *SchemaShape) Predicate(p rdf.IRI) (SchemaPredicate, bool) {
	for _, sp := range s.Predicates {
		if sp.PredicateIRI == p {
			return sp, true
		}
	}
	return SchemaPredicate{}, false
}

// Schema is a read-only, possibly cyclic mapping from shape IRI to
// SchemaShape. It exposes only lookups and iteration; it performs no eager
// validation — shape-reference resolution and
// empty-datatype-list checks are both deferred to first use via Validate.
type Schema struct {
	shapes map[rdf.IRI]*SchemaShape
}

// New builds a Schema from a set of shapes. Shapes are kept by reference
// (they are reference-counted and shared across subjects); New does not
// validate them.
func New(shapes []*SchemaShape) *Schema {
	m := make(map[rdf.IRI]*SchemaShape, len(shapes))
	for _, s := range shapes {
		m[s.ShapeIRI] = s
	}
	return &Schema{shapes: m}
}

// Shape looks up a shape by IRI.
func (s *Schema) Shape(iri rdf.IRI) (*SchemaShape, bool) {
	sh, ok := s.shapes[iri]
	return sh, ok
}

// MustShape is Shape but panics on a missing shape; only safe to call after
// Validate has succeeded.
func (s *Schema) MustShape(iri rdf.IRI) *SchemaShape {
	sh, ok := s.shapes[iri]
	if !ok {
		panic(fmt.Sprintf("schema: unresolved shape %q after Validate", iri))
	}
	return sh
}

// Shapes returns every shape in deterministic IRI order, so iteration is
// stable across runs.
func (s *Schema) Shapes() []*SchemaShape {
	out := make([]*SchemaShape, 0, len(s.shapes))
	for _, sh := range s.shapes {
		out = append(out, sh)
	}
	sortShapesByIRI(out)
	return out
}

func sortShapesByIRI(shapes []*SchemaShape) {
	for i := 1; i < len(shapes); i++ {
		for j := i; j > 0 && shapes[j-1].ShapeIRI > shapes[j].ShapeIRI; j-- {
			shapes[j-1], shapes[j] = shapes[j], shapes[j-1]
		}
	}
}

// Validate walks the whole schema once and returns a jerrors.KindSchema
// error on the first structural problem found: a `shape` datatype
// referencing an IRI with no corresponding SchemaShape, or a predicate with
// an empty DataTypes list. It is the core's one eager-validation entry
// point; everything else in this package stays lazy.
//
// Validate also fills in any SchemaPredicate.Name left blank by the caller,
// deriving it from the predicate IRI's fragment.
func (s *Schema) Validate() error {
	for _, sh := range s.shapes {
		for i := range sh.Predicates {
			p := &sh.Predicates[i]
			if len(p.DataTypes) == 0 {
				return jerrors.Newf(jerrors.KindSchema,
					"predicate %q of shape %q declares no datatypes", p.PredicateIRI, sh.ShapeIRI).
					WithNode(string(sh.ShapeIRI), "")
			}
			if p.Name == "" {
				p.Name = defaultPropertyName(p.PredicateIRI)
			}
			for _, dt := range p.DataTypes {
				if dt.ValType != ValShape {
					continue
				}
				if _, ok := s.shapes[dt.ShapeIRI]; !ok {
					return jerrors.Newf(jerrors.KindSchema,
						"predicate %q of shape %q references missing shape %q",
						p.PredicateIRI, sh.ShapeIRI, dt.ShapeIRI).
						WithNode(string(sh.ShapeIRI), "")
				}
			}
		}
	}
	return nil
}

// defaultPropertyName derives a JSON property name from an IRI's fragment
// or final path segment, lower-camel-cased — the schema-package analogue of
// schemabuilder/reflect.go's makeGraphql for untagged Go struct fields.
func defaultPropertyName(iri rdf.IRI) string {
	s := string(iri)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '#' || s[i] == '/' {
			s = s[i+1:]
			break
		}
	}
	if s == "" {
		return string(iri)
	}
	return strcase.ToLowerCamel(s)
}
