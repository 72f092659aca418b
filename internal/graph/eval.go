package graph

import (
	"cmp"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/dusk-indust/docgraph/internal/compile"
	"github.com/dusk-indust/docgraph/internal/query"
)

// frame is the binding one stage contributes to a result row.
type frame struct {
	doc  map[string]any
	path []map[string]any // vertices walked to reach doc; nil for scans
}

type matcher func(doc map[string]any) bool

type evalStage struct {
	query.Stage
	filters []matcher
}

// evaluate runs q against the store with AQL semantics: stages nest like FOR
// loops, traversals are depth-first in edge insertion order and never reuse
// an edge on one path. Distinct rows are deduplicated by _id first, keeping
// the first occurrence, then SORT and LIMIT apply. It returns the rows and
// the row count before LIMIT. Callers hold m.mu for reading.
func (m *MemStore) evaluate(q *query.Query) ([]map[string]any, int, error) {
	if err := compile.Validate(q); err != nil {
		return nil, 0, err
	}
	pipeline := q.Pipeline()
	stages := make([]evalStage, len(pipeline))
	for i, st := range pipeline {
		stages[i].Stage = st
		for _, f := range st.Filters {
			mt, err := prepareFilter(f)
			if err != nil {
				return nil, 0, err
			}
			stages[i].filters = append(stages[i].filters, mt)
		}
	}

	var rows []map[string]any
	emit := func(doc map[string]any) { rows = append(rows, doc) }
	if err := m.walkStage(stages, 0, nil, emit); err != nil {
		return nil, 0, err
	}

	if query.Distinct(pipeline) {
		seen := make(map[string]bool, len(rows))
		uniq := rows[:0:0]
		for _, r := range rows {
			id, _ := r["_id"].(string)
			if seen[id] {
				continue
			}
			seen[id] = true
			uniq = append(uniq, r)
		}
		rows = uniq
	}

	root := stages[0]
	if len(root.Sorts) > 0 {
		slices.SortStableFunc(rows, func(a, b map[string]any) int {
			for _, s := range root.Sorts {
				c := compareValues(fieldValue(a, s.Field), fieldValue(b, s.Field))
				if s.Direction == query.Desc {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}

	fullCount := len(rows)
	if w := root.Window; w != nil {
		lo := min(w.Offset, len(rows))
		hi := min(lo+w.Count, len(rows))
		rows = rows[lo:hi]
	}

	return rows, fullCount, nil
}

func (m *MemStore) walkStage(stages []evalStage, i int, trail []frame, emit func(map[string]any)) error {
	st := stages[i]
	visit := func(f frame) error {
		if st.Exclusive && excluded(trail[i-1], f.doc) {
			return nil
		}
		for _, mt := range st.filters {
			if !mt(f.doc) {
				return nil
			}
		}
		if i == len(stages)-1 {
			emit(f.doc)
			return nil
		}
		return m.walkStage(stages, i+1, append(trail[:i:i], f), emit)
	}

	c, ok := m.collections[st.Collection]
	if !ok {
		return collectionNotFound("query", st.Collection)
	}

	switch st.Kind {
	case query.StageScan:
		var err error
		c.docs.Scan(func(d *memDoc) bool {
			err = visit(frame{doc: d.body})
			return err == nil
		})
		return err
	case query.StageTraversal:
		var start map[string]any
		if st.Nested {
			start = trail[i-1].doc
		} else if start = m.lookup(st.StartID); start == nil {
			// ArangoDB yields nothing for a missing start vertex.
			return nil
		}
		return m.traverse(c, st.Stage, start, visit)
	default:
		return fmt.Errorf("memstore: unknown stage kind %d", st.Kind)
	}
}

// traverse walks edges depth-first from start, visiting every vertex whose
// depth lies within the stage bounds. Vertices may repeat; edges may not
// repeat on a single path.
func (m *MemStore) traverse(edges *memCollection, st query.Stage, start map[string]any, visit func(frame) error) error {
	used := make(map[*memDoc]bool)
	var walk func(v map[string]any, path []map[string]any, depth int) error
	walk = func(v map[string]any, path []map[string]any, depth int) error {
		if depth >= st.MinDepth {
			if err := visit(frame{doc: v, path: path}); err != nil {
				return err
			}
		}
		if depth == st.MaxDepth {
			return nil
		}
		id, _ := v["_id"].(string)
		adj, far := edges.out[id], "_to"
		if st.Direction == query.DirInbound {
			adj, far = edges.in[id], "_from"
		}
		for _, e := range adj {
			if used[e] {
				continue
			}
			next := m.lookup(e.body[far].(string))
			if next == nil {
				continue
			}
			used[e] = true
			err := walk(next, append(path[:len(path):len(path)], next), depth+1)
			delete(used, e)
			if err != nil {
				return err
			}
		}
		return nil
	}
	return walk(start, []map[string]any{start}, 0)
}

// excluded reports whether doc was already produced by the origin stage:
// any vertex on its path for a traversal, the document itself for a scan.
func excluded(origin frame, doc map[string]any) bool {
	id, _ := doc["_id"].(string)
	if origin.path == nil {
		return origin.doc["_id"] == id
	}
	for _, v := range origin.path {
		if v["_id"] == id {
			return true
		}
	}
	return false
}

func prepareFilter(f query.Filter) (matcher, error) {
	ms := make([]matcher, 0, len(f.Any))
	for _, c := range f.Any {
		mt, err := prepareCondition(c)
		if err != nil {
			return nil, err
		}
		ms = append(ms, mt)
	}
	return func(doc map[string]any) bool {
		for _, mt := range ms {
			if mt(doc) {
				return true
			}
		}
		return false
	}, nil
}

func prepareCondition(c query.Condition) (matcher, error) {
	want, err := normalize(c.Value)
	if err != nil {
		return nil, fmt.Errorf("memstore: filter on %s: %w", c.Field, err)
	}
	get := func(doc map[string]any) any { return fieldValue(doc, c.Field) }

	switch c.Op {
	case query.OpNull:
		return func(doc map[string]any) bool { return get(doc) == nil }, nil
	case query.OpEq:
		return func(doc map[string]any) bool { return compareValues(get(doc), want) == 0 }, nil
	case query.OpNe:
		return func(doc map[string]any) bool { return compareValues(get(doc), want) != 0 }, nil
	case query.OpLt:
		return func(doc map[string]any) bool { return compareValues(get(doc), want) < 0 }, nil
	case query.OpLte:
		return func(doc map[string]any) bool { return compareValues(get(doc), want) <= 0 }, nil
	case query.OpGt:
		return func(doc map[string]any) bool { return compareValues(get(doc), want) > 0 }, nil
	case query.OpGte:
		return func(doc map[string]any) bool { return compareValues(get(doc), want) >= 0 }, nil
	case query.OpIn, query.OpNotIn:
		list, _ := want.([]any)
		in := func(doc map[string]any) bool {
			v := get(doc)
			return slices.ContainsFunc(list, func(x any) bool { return compareValues(v, x) == 0 })
		}
		if c.Op == query.OpNotIn {
			return func(doc map[string]any) bool { return !in(doc) }, nil
		}
		return in, nil
	case query.OpLike:
		pattern, _ := want.(string)
		re, err := regexp.Compile(compile.LikeToRegexp(pattern))
		if err != nil {
			return nil, fmt.Errorf("memstore: like pattern %q: %w", pattern, err)
		}
		return func(doc map[string]any) bool {
			s, ok := get(doc).(string)
			return ok && re.MatchString(s)
		}, nil
	default:
		return nil, fmt.Errorf("memstore: unsupported operator %q", c.Op)
	}
}

// normalize round-trips v through JSON so bind values compare like stored
// documents (numbers as float64, lists as []any).
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// fieldValue resolves a dotted attribute path; missing attributes are null.
func fieldValue(doc map[string]any, field string) any {
	var cur any = doc
	for part := range strings.SplitSeq(field, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[part]
	}
	return cur
}

// typeRank orders values across types: null < bool < number < string <
// array < object.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	case []any:
		return 4
	default:
		return 5
	}
}

// compareValues orders two JSON-decoded values.
func compareValues(a, b any) int {
	if ra, rb := typeRank(a), typeRank(b); ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch x := a.(type) {
	case nil:
		return 0
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case float64:
		return cmp.Compare(x, b.(float64))
	case string:
		return strings.Compare(x, b.(string))
	case []any:
		y := b.([]any)
		for i := range min(len(x), len(y)) {
			if c := compareValues(x[i], y[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(x), len(y))
	case map[string]any:
		y, _ := b.(map[string]any)
		keys := make([]string, 0, len(x)+len(y))
		for k := range x {
			keys = append(keys, k)
		}
		for k := range y {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range slices.Compact(keys) {
			if c := compareValues(x[k], y[k]); c != 0 {
				return c
			}
		}
		return 0
	default:
		return 0
	}
}
