// Package planner implements the Query Planner: it compiles
// a (schema, root shape, optional subject filter) into a single CONSTRUCT
// query whose projected triples are sufficient and necessary to validate
// any subject at that shape, transitively through nested shapes.
package planner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nextgraph-org/ng-orm-core/jerrors"
	"github.com/nextgraph-org/ng-orm-core/rdf"
	"github.com/nextgraph-org/ng-orm-core/schema"
)

type planner struct {
	sch        *schema.Schema
	varCounter int
	construct  []string
	where      []string
}

// Plan compiles a CONSTRUCT query for root under sch. When subjectFilter is
// non-empty, the root subject is restricted to that IRI set via a VALUES
// clause; otherwise any subject matching the shape's constraints is a
// candidate.
//
// Variable naming is assigned by a deterministic preorder walk of the
// schema structure (declared predicate order, first-shape-alternative-first
// for nested expansion), so identical schemas always produce identical
// query text.
func Plan(sch *schema.Schema, root rdf.IRI, subjectFilter []rdf.IRI) (string, error) {
	if err := sch.Validate(); err != nil {
		return "", err
	}
	rootShape, ok := sch.Shape(root)
	if !ok {
		return "", jerrors.Newf(jerrors.KindQuery, "planner: root shape %q not found in schema", root)
	}

	p := &planner{sch: sch}
	rootVar := p.nextVar()
	if err := p.expandShape(rootShape, rootVar, map[rdf.IRI]bool{}); err != nil {
		return "", err
	}
	return p.build(rootVar, subjectFilter), nil
}

func (p *planner) nextVar() string {
	v := fmt.Sprintf("?v%d", p.varCounter)
	p.varCounter++
	return v
}

// expandShape emits the CONSTRUCT/WHERE patterns for one shape bound to
// variable v. onPath is the set of shape IRIs already expanded along the
// current chain. Re-entering a shape already on the path is permitted once:
// its own predicate patterns are still emitted, bound to v (a fresh
// variable, not the one bound the first time the shape was expanded), since
// that is what projects the triples needed to observe the cycle closing —
// but none of its shape-typed predicates recurse further, which is what
// stops the expansion.
func (p *planner) expandShape(shape *schema.SchemaShape, v string, onPath map[rdf.IRI]bool) error {
	reentrant := onPath[shape.ShapeIRI]
	nextPath := make(map[rdf.IRI]bool, len(onPath)+1)
	for k := range onPath {
		nextPath[k] = true
	}
	nextPath[shape.ShapeIRI] = true

	for _, sp := range shape.Predicates {
		pvar := p.nextVar()
		pattern := fmt.Sprintf("%s <%s> %s .", v, sp.PredicateIRI, pvar)
		p.construct = append(p.construct, pattern)

		filters := filterClauses(pvar, sp)
		block := pattern
		if len(filters) > 0 {
			block = block + " FILTER(" + strings.Join(filters, " || ") + ")"
		}
		if sp.MinCardinality < 1 {
			block = "OPTIONAL { " + block + " }"
		}
		p.where = append(p.where, block)

		if reentrant {
			continue
		}

		for _, dt := range sp.DataTypes {
			if dt.ValType != schema.ValShape {
				continue
			}
			childShape, ok := p.sch.Shape(dt.ShapeIRI)
			if !ok {
				return jerrors.Newf(jerrors.KindQuery, "planner: shape %q references missing shape %q", shape.ShapeIRI, dt.ShapeIRI)
			}
			if err := p.expandShape(childShape, pvar, nextPath); err != nil {
				return err
			}
		}
	}
	return nil
}

// filterClauses renders the FILTER alternatives for one predicate's
// declared datatypes: a literal set becomes IN(...), each scalar type
// becomes a datatype-function check, and `shape` alternatives contribute no
// filter of their own (an IRI object is implicitly required by the
// recursive expansion reusing the same variable as a subject elsewhere).
func filterClauses(pvar string, sp schema.SchemaPredicate) []string {
	var filters []string
	for _, dt := range sp.DataTypes {
		switch dt.ValType {
		case schema.ValLiteral:
			vals := make([]string, 0, len(dt.LiteralValues))
			for _, lv := range dt.LiteralValues {
				vals = append(vals, literalSPARQL(lv))
			}
			filters = append(filters, fmt.Sprintf("%s IN (%s)", pvar, strings.Join(vals, ", ")))
		case schema.ValString:
			filters = append(filters, fmt.Sprintf("isLiteral(%s) && datatype(%s) = xsd:string", pvar, pvar))
		case schema.ValNumber:
			filters = append(filters, fmt.Sprintf("isLiteral(%s) && datatype(%s) = xsd:double", pvar, pvar))
		case schema.ValBoolean:
			filters = append(filters, fmt.Sprintf("isLiteral(%s) && datatype(%s) = xsd:boolean", pvar, pvar))
		}
	}
	return filters
}

func literalSPARQL(v rdf.Value) string {
	switch v.Kind {
	case rdf.KindString:
		return strconv.Quote(v.Str)
	case rdf.KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case rdf.KindBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case rdf.KindIRI:
		return "<" + string(v.IRI) + ">"
	default:
		return "\"\""
	}
}

func (p *planner) build(rootVar string, subjectFilter []rdf.IRI) string {
	var sb strings.Builder
	sb.WriteString("CONSTRUCT {\n")
	for _, c := range p.construct {
		sb.WriteString("  ")
		sb.WriteString(c)
		sb.WriteString("\n")
	}
	sb.WriteString("}\nWHERE {\n")
	if len(subjectFilter) > 0 {
		vals := make([]string, 0, len(subjectFilter))
		for _, iri := range subjectFilter {
			vals = append(vals, "<"+string(iri)+">")
		}
		sb.WriteString(fmt.Sprintf("  VALUES %s { %s }\n", rootVar, strings.Join(vals, " ")))
	}
	for _, w := range p.where {
		sb.WriteString("  ")
		sb.WriteString(w)
		sb.WriteString("\n")
	}
	sb.WriteString("}")
	return sb.String()
}
