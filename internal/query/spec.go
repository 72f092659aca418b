package query

import (
	"fmt"
	"strings"
)

// Spec is the declarative form of a Query, decoded from YAML query files and
// from MCP tool arguments.
//
//	collection: ChildOf
//	traversal: {direction: outbound, min: 1, max: 2, start: Character/tyrion}
//	joins:
//	  - direction: inbound
//	    min: 1
//	    max: 2
//	    query: {collection: ChildOf, distinct: true}
type Spec struct {
	Collection string         `json:"collection" yaml:"collection"`
	Traversal  *TraversalSpec `json:"traversal,omitempty" yaml:"traversal,omitempty"`
	Filters    []FilterSpec   `json:"filters,omitempty" yaml:"filters,omitempty"`
	Sort       []SortSpec     `json:"sort,omitempty" yaml:"sort,omitempty"`
	Limit      *LimitSpec     `json:"limit,omitempty" yaml:"limit,omitempty"`
	Distinct   bool           `json:"distinct,omitempty" yaml:"distinct,omitempty"`
	Joins      []JoinSpec     `json:"joins,omitempty" yaml:"joins,omitempty"`
}

// TraversalSpec roots a Spec at one document.
type TraversalSpec struct {
	Direction string `json:"direction" yaml:"direction"`
	Min       int    `json:"min" yaml:"min"`
	Max       int    `json:"max" yaml:"max"`
	Start     string `json:"start" yaml:"start"`
}

// ConditionSpec is one `field op value` predicate.
type ConditionSpec struct {
	Field string `json:"field" yaml:"field"`
	Op    string `json:"op,omitempty" yaml:"op,omitempty"` // defaults to ==
	Value any    `json:"value,omitempty" yaml:"value,omitempty"`
}

// FilterSpec is either a single condition or, when AnyOf is set, an
// OR-group.
type FilterSpec struct {
	ConditionSpec `yaml:",inline"`
	AnyOf         []ConditionSpec `json:"anyOf,omitempty" yaml:"anyOf,omitempty"`
}

// SortSpec is one sort key.
type SortSpec struct {
	Field string `json:"field" yaml:"field"`
	Desc  bool   `json:"desc,omitempty" yaml:"desc,omitempty"`
}

// LimitSpec is an offset/count window.
type LimitSpec struct {
	Offset int `json:"offset,omitempty" yaml:"offset,omitempty"`
	Count  int `json:"count" yaml:"count"`
}

// JoinSpec is one traversal join; Query.Collection names the edge collection.
type JoinSpec struct {
	Direction string `json:"direction" yaml:"direction"`
	Min       int    `json:"min" yaml:"min"`
	Max       int    `json:"max" yaml:"max"`
	Exclusive bool   `json:"exclusive,omitempty" yaml:"exclusive,omitempty"`
	Query     Spec   `json:"query" yaml:"query"`
}

// ParseDirection accepts "outbound"/"inbound" in any case.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirOutbound:
		return DirOutbound, nil
	case DirInbound:
		return DirInbound, nil
	}
	return "", fmt.Errorf("query: unknown direction %q", s)
}

// Build converts the spec into a Query. Only spelling errors (unknown
// direction or operator) are reported here; structural checks are left to
// the compiler.
func (s Spec) Build() (*Query, error) {
	q := New(s.Collection)
	if t := s.Traversal; t != nil {
		dir, err := ParseDirection(t.Direction)
		if err != nil {
			return nil, err
		}
		q = traversal(dir, t.Min, t.Max, s.Collection, t.Start)
	}
	for i, f := range s.Filters {
		if len(f.AnyOf) > 0 {
			conds := make([]Condition, 0, len(f.AnyOf))
			for _, c := range f.AnyOf {
				cond, err := c.build()
				if err != nil {
					return nil, fmt.Errorf("filter %d: %w", i, err)
				}
				conds = append(conds, cond)
			}
			q.FilterAny(conds...)
			continue
		}
		cond, err := f.ConditionSpec.build()
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		q.Filter(cond)
	}
	for _, srt := range s.Sort {
		dir := Asc
		if srt.Desc {
			dir = Desc
		}
		q.Sort(srt.Field, dir)
	}
	if s.Limit != nil {
		q.Paginate(s.Limit.Offset, s.Limit.Count)
	}
	if s.Distinct {
		q.Distinct()
	}
	for i, j := range s.Joins {
		dir, err := ParseDirection(j.Direction)
		if err != nil {
			return nil, fmt.Errorf("join %d: %w", i, err)
		}
		sub, err := j.Query.Build()
		if err != nil {
			return nil, fmt.Errorf("join %d: %w", i, err)
		}
		q.join(dir, j.Min, j.Max, j.Exclusive, sub)
	}
	return q, nil
}

func (c ConditionSpec) build() (Condition, error) {
	op := OpEq
	if c.Op != "" {
		var err error
		if op, err = ParseOperator(c.Op); err != nil {
			return Condition{}, err
		}
	}
	return Condition{Field: c.Field, Op: op, Value: c.Value}, nil
}
