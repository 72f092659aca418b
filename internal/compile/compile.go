// Package compile turns a query.Query into query text plus a bind variable
// set. Compilation is deterministic and side-effect free: the alias and bind
// counters live in a per-call context, so independent queries can be compiled
// concurrently.
package compile

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/dusk-indust/docgraph/internal/dberr"
	"github.com/dusk-indust/docgraph/internal/query"
)

// BindVars maps generated variable names (var0, var1, ...) to values.
type BindVars map[string]any

// Compiled is the derived, read-only artifact of a compilation.
type Compiled struct {
	Dialect  string
	Text     string
	BindVars BindVars
	// Source is a private copy of the compiled AST. In-process backends
	// evaluate it directly instead of parsing Text.
	Source *query.Query
}

// Dialect compiles a query for one query language.
type Dialect interface {
	Name() string
	Compile(q *query.Query) (*Compiled, error)
}

var (
	identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	fieldRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

// compileContext carries the counters threaded through one compilation.
type compileContext struct {
	vars BindVars
	next int
}

func newContext() *compileContext {
	return &compileContext{vars: BindVars{}}
}

// bind registers v under a fresh name and returns that name.
func (c *compileContext) bind(v any) string {
	name := fmt.Sprintf("var%d", c.next)
	c.next++
	c.vars[name] = v
	return name
}

func docAlias(i int) string  { return fmt.Sprintf("doc%d", i) }
func pathAlias(i int) string { return fmt.Sprintf("path%d", i) }
func edgeAlias(i int) string { return fmt.Sprintf("edge%d", i) }

// Validate checks q without compiling it. Every Dialect runs it first, so a
// malformed query never reaches the network.
func Validate(q *query.Query) error {
	_, err := validatedPipeline(q)
	return err
}

func validatedPipeline(q *query.Query) ([]query.Stage, error) {
	if q == nil {
		return nil, dberr.Malformed("nil query")
	}
	stages := q.Pipeline()
	for _, st := range stages {
		if err := validateStage(st); err != nil {
			return nil, err
		}
	}
	return stages, nil
}

func validateStage(st query.Stage) error {
	where := fmt.Sprintf("stage %d", st.Index)
	if st.Missing {
		return dberr.Malformed("%s: join without sub-query", where)
	}
	if st.Collection == "" {
		if st.Kind == query.StageTraversal {
			return dberr.Malformed("%s: empty edge collection", where)
		}
		return dberr.Malformed("%s: empty collection name", where)
	}
	if !identRe.MatchString(st.Collection) {
		return dberr.Malformed("%s: invalid collection name %q", where, st.Collection)
	}
	if st.Kind == query.StageTraversal {
		if st.Direction != query.DirOutbound && st.Direction != query.DirInbound {
			return dberr.Malformed("%s: unknown direction %q", where, st.Direction)
		}
		if st.MinDepth < 0 || st.MaxDepth < 0 {
			return dberr.Malformed("%s: negative depth bounds %d..%d", where, st.MinDepth, st.MaxDepth)
		}
		if st.MinDepth > st.MaxDepth {
			return dberr.Malformed("%s: min depth %d greater than max depth %d", where, st.MinDepth, st.MaxDepth)
		}
		if !st.Nested && !strings.Contains(st.StartID, "/") {
			return dberr.Malformed("%s: traversal start %q is not a document handle", where, st.StartID)
		}
	}
	if st.Nested {
		if st.HasOrigin {
			return dberr.Malformed("%s: join sub-query cannot have its own traversal origin", where)
		}
		if len(st.Sorts) > 0 || st.Window != nil {
			return dberr.Malformed("%s: sort and limit are only allowed on the outermost query", where)
		}
	}
	for _, f := range st.Filters {
		if len(f.Any) == 0 {
			return dberr.Malformed("%s: empty filter group", where)
		}
		for _, c := range f.Any {
			if err := validateCondition(c); err != nil {
				return dberr.Malformed("%s: %s", where, err.Reason)
			}
		}
	}
	for _, s := range st.Sorts {
		if !fieldRe.MatchString(s.Field) {
			return dberr.Malformed("%s: invalid sort field %q", where, s.Field)
		}
		if s.Direction != query.Asc && s.Direction != query.Desc {
			return dberr.Malformed("%s: unknown sort direction %q", where, s.Direction)
		}
	}
	if w := st.Window; w != nil {
		if w.Offset < 0 || w.Count < 0 {
			return dberr.Malformed("%s: negative limit %d, %d", where, w.Offset, w.Count)
		}
		if w.Count == 0 && w.Offset > 0 {
			return dberr.Malformed("%s: offset %d without limit", where, w.Offset)
		}
	}
	return nil
}

func validateCondition(c query.Condition) *dberr.MalformedQueryError {
	if !fieldRe.MatchString(c.Field) {
		return dberr.Malformed("invalid field name %q", c.Field)
	}
	if !c.Op.Valid() {
		return dberr.Malformed("unknown operator %q on %s", c.Op, c.Field)
	}
	switch c.Op {
	case query.OpIn, query.OpNotIn:
		if c.Value == nil {
			return dberr.Malformed("%s on %s needs a list value", c.Op, c.Field)
		}
		k := reflect.TypeOf(c.Value).Kind()
		if k != reflect.Slice && k != reflect.Array {
			return dberr.Malformed("%s on %s needs a list value, got %T", c.Op, c.Field, c.Value)
		}
	case query.OpLike:
		if _, ok := c.Value.(string); !ok {
			return dberr.Malformed("LIKE on %s needs a string pattern, got %T", c.Field, c.Value)
		}
	}
	return nil
}

// LikeToRegexp translates a LIKE pattern (% and _ wildcards, backslash
// escapes) into an anchored regular expression.
func LikeToRegexp(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			b.WriteString(".*")
		case r == '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if escaped {
		b.WriteString(`\\`)
	}
	b.WriteString("$")
	return b.String()
}
