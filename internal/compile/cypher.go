package compile

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/docgraph/internal/query"
)

// Cypher compiles queries for the embedded Kuzu backend. Document collections
// map to node tables and edge collections to relationship tables. Kuzu
// reserves underscore-prefixed property names, so the system attributes are
// stored as doc_id, doc_key and doc_rev.
//
//	MATCH path0 = (start0 {doc_id: $var0})-[:ChildOf*1..2]->(doc0) RETURN DISTINCT doc0
type Cypher struct{}

// CypherProperty maps a document attribute path to its Kuzu property path.
func CypherProperty(field string) string {
	head, rest, dotted := strings.Cut(field, ".")
	switch head {
	case "_id", "_key", "_rev":
		head = "doc" + head
	}
	if dotted {
		return head + "." + rest
	}
	return head
}

// Compile-time interface check.
var _ Dialect = Cypher{}

func (Cypher) Name() string { return "cypher" }

// Compile validates q and renders it.
func (Cypher) Compile(q *query.Query) (*Compiled, error) {
	stages, err := validatedPipeline(q)
	if err != nil {
		return nil, err
	}
	ctx := newContext()
	var parts []string

	for i, st := range stages {
		doc := docAlias(i)
		switch st.Kind {
		case query.StageScan:
			parts = append(parts, fmt.Sprintf("MATCH (%s:%s)", doc, st.Collection))
		case query.StageTraversal:
			var from string
			if st.Nested {
				from = "(" + docAlias(i-1) + ")"
			} else {
				from = fmt.Sprintf("(start%d {doc_id: $%s})", i, ctx.bind(st.StartID))
			}
			rel := fmt.Sprintf("[:%s*%d..%d]", st.Collection, st.MinDepth, st.MaxDepth)
			if st.Direction == query.DirOutbound {
				rel = "-" + rel + "->"
			} else {
				rel = "<-" + rel + "-"
			}
			parts = append(parts, fmt.Sprintf("MATCH %s = %s%s(%s)", pathAlias(i), from, rel, doc))
		}

		var preds []string
		if st.Kind == query.StageTraversal && st.Exclusive {
			preds = append(preds, cypherExclusion(stages[i-1], doc))
		}
		for _, f := range st.Filters {
			preds = append(preds, cypherFilter(ctx, doc, f))
		}
		if len(preds) > 0 {
			parts = append(parts, "WHERE "+strings.Join(preds, " AND "))
		}
	}

	root := stages[0]
	last := docAlias(len(stages) - 1)
	if query.Distinct(stages) {
		parts = append(parts, "RETURN DISTINCT "+last)
	} else {
		parts = append(parts, "RETURN "+last)
	}
	if len(root.Sorts) > 0 {
		keys := make([]string, 0, len(root.Sorts))
		for _, s := range root.Sorts {
			keys = append(keys, fmt.Sprintf("%s.%s %s", last, CypherProperty(s.Field), s.Direction))
		}
		parts = append(parts, "ORDER BY "+strings.Join(keys, ", "))
	}
	if w := root.Window; w != nil {
		if w.Offset > 0 {
			parts = append(parts, fmt.Sprintf("SKIP %d", w.Offset))
		}
		parts = append(parts, fmt.Sprintf("LIMIT %d", w.Count))
	}

	return &Compiled{
		Dialect:  "cypher",
		Text:     strings.Join(parts, " "),
		BindVars: ctx.vars,
		Source:   q.Clone(),
	}, nil
}

func cypherExclusion(origin query.Stage, doc string) string {
	if origin.Kind == query.StageTraversal {
		return fmt.Sprintf("NOT list_contains(properties(nodes(%s), 'doc_id'), %s.doc_id)", pathAlias(origin.Index), doc)
	}
	return fmt.Sprintf("%s.doc_id <> %s.doc_id", doc, docAlias(origin.Index))
}

func cypherFilter(ctx *compileContext, doc string, f query.Filter) string {
	if len(f.Any) == 1 {
		return cypherCondition(ctx, doc, f.Any[0])
	}
	terms := make([]string, 0, len(f.Any))
	for _, c := range f.Any {
		terms = append(terms, cypherCondition(ctx, doc, c))
	}
	return "(" + strings.Join(terms, " OR ") + ")"
}

func cypherCondition(ctx *compileContext, doc string, c query.Condition) string {
	ref := doc + "." + CypherProperty(c.Field)
	switch c.Op {
	case query.OpNull:
		return ref + " IS NULL"
	case query.OpEq:
		return fmt.Sprintf("%s = $%s", ref, ctx.bind(c.Value))
	case query.OpNe:
		return fmt.Sprintf("%s <> $%s", ref, ctx.bind(c.Value))
	case query.OpNotIn:
		return fmt.Sprintf("NOT %s IN $%s", ref, ctx.bind(c.Value))
	case query.OpLike:
		return fmt.Sprintf("%s =~ $%s", ref, ctx.bind(LikeToRegexp(c.Value.(string))))
	default:
		return fmt.Sprintf("%s %s $%s", ref, c.Op, ctx.bind(c.Value))
	}
}
