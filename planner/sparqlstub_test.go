package planner

import (
	"strings"

	"github.com/nextgraph-org/ng-orm-core/rdf"
)

// Elsewhere in this module generated queries only ever run through
// store.Memory.Construct, which ignores the query text and returns every
// triple the store holds — sufficient for asserting on Reactor/Validator
// behavior, but useless for catching a planner bug in what gets projected.
// evalConstruct is a minimal SPARQL CONSTRUCT evaluator: a backtracking
// join over the WHERE clause's triple patterns (OPTIONAL wrapping and
// FILTER clauses are stripped, not evaluated — this core's generated
// queries only use FILTER for datatype discrimination the join itself
// doesn't need), followed by instantiating the CONSTRUCT template from
// each solution's bindings.
type wherePattern struct {
	subjectVar string
	predicate  rdf.IRI
	objectVar  string
}

func evalConstruct(query string, triples []rdf.Triple) []rdf.Triple {
	wherePatterns := parsePatterns(extractBetween(query, "WHERE {\n", "\n}"))
	constructPatterns := parsePatterns(extractBetween(query, "CONSTRUCT {\n", "\n}\nWHERE"))

	bySubject := make(map[rdf.IRI][]rdf.Triple)
	for _, t := range triples {
		bySubject[t.Subject] = append(bySubject[t.Subject], t)
	}

	var solutions []map[string]rdf.Value
	var solve func(i int, bound map[string]rdf.Value)
	solve = func(i int, bound map[string]rdf.Value) {
		if i == len(wherePatterns) {
			cp := make(map[string]rdf.Value, len(bound))
			for k, v := range bound {
				cp[k] = v
			}
			solutions = append(solutions, cp)
			return
		}
		pat := wherePatterns[i]
		var candidates []rdf.Triple
		if boundSubj, ok := bound[pat.subjectVar]; ok {
			if boundSubj.Kind != rdf.KindIRI {
				return
			}
			candidates = bySubject[boundSubj.IRI]
		} else {
			for _, ts := range bySubject {
				candidates = append(candidates, ts...)
			}
		}
		for _, t := range candidates {
			if t.Predicate != pat.predicate {
				continue
			}
			if existing, ok := bound[pat.objectVar]; ok && !existing.Equal(t.Object) {
				continue
			}
			next := make(map[string]rdf.Value, len(bound)+2)
			for k, v := range bound {
				next[k] = v
			}
			next[pat.subjectVar] = rdf.IRIValue(t.Subject)
			next[pat.objectVar] = t.Object
			solve(i+1, next)
		}
	}
	solve(0, map[string]rdf.Value{})

	seen := make(map[rdf.Triple]bool)
	var out []rdf.Triple
	for _, sol := range solutions {
		for _, cp := range constructPatterns {
			subj, ok := sol[cp.subjectVar]
			if !ok || subj.Kind != rdf.KindIRI {
				continue
			}
			obj, ok := sol[cp.objectVar]
			if !ok {
				continue
			}
			tr := rdf.Triple{Subject: subj.IRI, Predicate: cp.predicate, Object: obj}
			if seen[tr] {
				continue
			}
			seen[tr] = true
			out = append(out, tr)
		}
	}
	return out
}

func parsePatterns(body string) []wherePattern {
	var out []wherePattern
	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "VALUES") {
			continue
		}
		line = strings.TrimPrefix(line, "OPTIONAL { ")
		line = strings.TrimSuffix(line, " }")
		if idx := strings.Index(line, " FILTER("); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSuffix(line, " .")
		fields := strings.Fields(line)
		if len(fields) != 3 {
			continue
		}
		pred := strings.TrimPrefix(fields[1], "<")
		pred = strings.TrimSuffix(pred, ">")
		out = append(out, wherePattern{subjectVar: fields[0], predicate: rdf.IRI(pred), objectVar: fields[2]})
	}
	return out
}

func extractBetween(s, start, end string) string {
	i := strings.Index(s, start)
	if i < 0 {
		return ""
	}
	s = s[i+len(start):]
	j := strings.LastIndex(s, end)
	if j < 0 {
		return s
	}
	return s[:j]
}
