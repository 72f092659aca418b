package compile

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/docgraph/internal/query"
)

// AQL compiles queries for ArangoDB.
//
// A scan of Character filtered on name compiles to
//
//	FOR doc0 IN Character FILTER doc0.name == @var0 RETURN doc0
//
// and a two-stage traversal to
//
//	FOR doc0, edge0, path0 IN 1..2 OUTBOUND @var0 ChildOf
//	FOR doc1, edge1, path1 IN 1..2 INBOUND doc0 ChildOf RETURN DISTINCT doc1
//
// A distinct query that is also sorted or limited deduplicates in a subquery
// first, so LIMIT counts distinct documents:
//
//	FOR row IN (FOR doc0, edge0, path0 IN 1..2 OUTBOUND @var0 ChildOf RETURN DISTINCT doc0) LIMIT 0, 2 RETURN row
type AQL struct{}

// Compile-time interface check.
var _ Dialect = AQL{}

// rowAlias names the outer loop over a deduplicated subquery.
const rowAlias = "row"

// aqlKeywords are reserved in AQL; collection and attribute names equal to
// one of them (in any case) must be quoted.
var aqlKeywords = map[string]bool{
	"AGGREGATE": true, "ALL": true, "ALL_SHORTEST_PATHS": true, "AND": true,
	"ANY": true, "ASC": true, "AT": true, "COLLECT": true, "CURRENT": true,
	"DESC": true, "DISTINCT": true, "FALSE": true, "FILTER": true, "FOR": true,
	"GRAPH": true, "IN": true, "INBOUND": true, "INSERT": true, "INTO": true,
	"K_PATHS": true, "K_SHORTEST_PATHS": true, "KEEP": true, "LEAST": true,
	"LET": true, "LIKE": true, "LIMIT": true, "NEW": true, "NONE": true,
	"NOT": true, "NULL": true, "OLD": true, "OPTIONS": true, "OR": true,
	"OUTBOUND": true, "PRUNE": true, "REMOVE": true, "REPLACE": true,
	"RETURN": true, "SEARCH": true, "SHORTEST_PATH": true, "SORT": true,
	"TRUE": true, "UPDATE": true, "UPSERT": true, "WINDOW": true, "WITH": true,
}

// aqlName quotes name with backticks when it is a keyword.
func aqlName(name string) string {
	if aqlKeywords[strings.ToUpper(name)] {
		return "`" + name + "`"
	}
	return name
}

// aqlField quotes every keyword segment of a dotted attribute path.
func aqlField(field string) string {
	segs := strings.Split(field, ".")
	for i, s := range segs {
		segs[i] = aqlName(s)
	}
	return strings.Join(segs, ".")
}

func (AQL) Name() string { return "aql" }

// Compile validates q and renders it.
func (AQL) Compile(q *query.Query) (*Compiled, error) {
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
			parts = append(parts, fmt.Sprintf("FOR %s IN %s", doc, aqlName(st.Collection)))
		case query.StageTraversal:
			var start string
			if st.Nested {
				start = docAlias(i - 1)
			} else {
				start = "@" + ctx.bind(st.StartID)
			}
			parts = append(parts, fmt.Sprintf("FOR %s, %s, %s IN %d..%d %s %s %s",
				doc, edgeAlias(i), pathAlias(i),
				st.MinDepth, st.MaxDepth, strings.ToUpper(string(st.Direction)),
				start, aqlName(st.Collection)))
			if st.Exclusive {
				parts = append(parts, aqlExclusion(stages[i-1], doc))
			}
		}
		for _, f := range st.Filters {
			parts = append(parts, "FILTER "+aqlFilter(ctx, doc, f))
		}
	}

	root := stages[0]
	last := docAlias(len(stages) - 1)
	distinct := query.Distinct(stages)
	windowed := len(root.Sorts) > 0 || root.Window != nil
	if distinct && windowed {
		// SORT and LIMIT must see deduplicated documents.
		inner := strings.Join(append(parts, "RETURN DISTINCT "+last), " ")
		parts = []string{fmt.Sprintf("FOR %s IN (%s)", rowAlias, inner)}
		last = rowAlias
	}
	if len(root.Sorts) > 0 {
		keys := make([]string, 0, len(root.Sorts))
		for _, s := range root.Sorts {
			keys = append(keys, fmt.Sprintf("%s.%s %s", last, aqlField(s.Field), s.Direction))
		}
		parts = append(parts, "SORT "+strings.Join(keys, ", "))
	}
	if w := root.Window; w != nil {
		parts = append(parts, fmt.Sprintf("LIMIT %d, %d", w.Offset, w.Count))
	}
	if distinct && !windowed {
		parts = append(parts, "RETURN DISTINCT "+last)
	} else {
		parts = append(parts, "RETURN "+last)
	}

	return &Compiled{
		Dialect:  "aql",
		Text:     strings.Join(parts, " "),
		BindVars: ctx.vars,
		Source:   q.Clone(),
	}, nil
}

// aqlExclusion drops vertices the origin stage already produced.
func aqlExclusion(origin query.Stage, doc string) string {
	if origin.Kind == query.StageTraversal {
		return fmt.Sprintf("FILTER %s._id NOT IN %s.vertices[*]._id", doc, pathAlias(origin.Index))
	}
	return fmt.Sprintf("FILTER %s._id != %s._id", doc, docAlias(origin.Index))
}

func aqlFilter(ctx *compileContext, doc string, f query.Filter) string {
	if len(f.Any) == 1 {
		return aqlCondition(ctx, doc, f.Any[0])
	}
	terms := make([]string, 0, len(f.Any))
	for _, c := range f.Any {
		terms = append(terms, aqlCondition(ctx, doc, c))
	}
	return "(" + strings.Join(terms, " || ") + ")"
}

func aqlCondition(ctx *compileContext, doc string, c query.Condition) string {
	ref := doc + "." + aqlField(c.Field)
	if c.Op == query.OpNull {
		return ref + " == null"
	}
	return fmt.Sprintf("%s %s @%s", ref, c.Op, ctx.bind(c.Value))
}
