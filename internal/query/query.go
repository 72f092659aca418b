// Package query provides the composable query AST: a base collection scan or
// a traversal rooted at one document, with filters, sort keys, a limit and a
// chain of traversal joins. Building never fails; validation happens when the
// query is compiled.
package query

// Direction controls which edge endpoint a traversal follows.
type Direction string

const (
	DirOutbound Direction = "outbound" // follow edges whose _from is the current vertex
	DirInbound  Direction = "inbound"  // follow edges whose _to is the current vertex
)

// SortDirection is ascending or descending.
type SortDirection string

const (
	Asc  SortDirection = "ASC"
	Desc SortDirection = "DESC"
)

// Sort is one sort key.
type Sort struct {
	Field     string
	Direction SortDirection
}

// Limit is an offset/count window over the final rows.
type Limit struct {
	Offset int
	Count  int
}

// Traversal roots a query at a single document. Collection on the owning
// Query is then the edge collection walked.
type Traversal struct {
	Direction Direction
	MinDepth  int
	MaxDepth  int
	StartID   string // document handle, "Collection/key"
}

// JoinClause makes the result vertex of the enclosing stage the origin of a
// nested traversal stage.
type JoinClause struct {
	Direction      Direction
	MinDepth       int
	MaxDepth       int
	EdgeCollection string
	// Exclusive drops vertices the origin stage already walked through
	// (its whole path for a traversal, its own document for a scan).
	Exclusive bool
	SubQuery  *Query
}

// Query is one stage of a (possibly multi-hop) query. The zero value is not
// useful; start from New, Outbound or Inbound.
type Query struct {
	Collection string
	Origin     *Traversal
	Filters    []Filter
	Sorts      []Sort
	Window     *Limit
	IsDistinct bool
	Joins      []JoinClause
}

// New returns a query scanning the named collection.
func New(collection string) *Query {
	return &Query{Collection: collection}
}

// Outbound returns a query walking edgeCollection from startID along
// outbound edges, between min and max hops.
func Outbound(min, max int, edgeCollection, startID string) *Query {
	return traversal(DirOutbound, min, max, edgeCollection, startID)
}

// Inbound returns a query walking edgeCollection from startID along inbound
// edges, between min and max hops.
func Inbound(min, max int, edgeCollection, startID string) *Query {
	return traversal(DirInbound, min, max, edgeCollection, startID)
}

func traversal(dir Direction, min, max int, edgeCollection, startID string) *Query {
	return &Query{
		Collection: edgeCollection,
		Origin: &Traversal{
			Direction: dir,
			MinDepth:  min,
			MaxDepth:  max,
			StartID:   startID,
		},
	}
}

// Filter appends a condition. Conditions added by separate calls are ANDed.
func (q *Query) Filter(c Condition) *Query {
	q.Filters = append(q.Filters, Filter{Any: []Condition{c}})
	return q
}

// FilterAny appends an OR-group: a document passes when any condition holds.
func (q *Query) FilterAny(conds ...Condition) *Query {
	q.Filters = append(q.Filters, Filter{Any: append([]Condition(nil), conds...)})
	return q
}

// Sort appends a sort key.
func (q *Query) Sort(field string, dir SortDirection) *Query {
	q.Sorts = append(q.Sorts, Sort{Field: field, Direction: dir})
	return q
}

// Limit caps the number of rows returned.
func (q *Query) Limit(count int) *Query {
	if q.Window == nil {
		q.Window = &Limit{}
	}
	q.Window.Count = count
	return q
}

// Offset skips the first n rows. Without Limit the count stays 0, which the
// compiler rejects; use Paginate to set both.
func (q *Query) Offset(n int) *Query {
	if q.Window == nil {
		q.Window = &Limit{}
	}
	q.Window.Offset = n
	return q
}

// Paginate sets offset and count at once.
func (q *Query) Paginate(offset, count int) *Query {
	q.Window = &Limit{Offset: offset, Count: count}
	return q
}

// Distinct deduplicates the returned documents by identity, keeping the
// first occurrence.
func (q *Query) Distinct() *Query {
	q.IsDistinct = true
	return q
}

// JoinOutbound walks sub.Collection outbound from this stage's vertex and
// continues with sub as the nested stage.
func (q *Query) JoinOutbound(min, max int, exclusive bool, sub *Query) *Query {
	return q.join(DirOutbound, min, max, exclusive, sub)
}

// JoinInbound walks sub.Collection inbound from this stage's vertex and
// continues with sub as the nested stage.
func (q *Query) JoinInbound(min, max int, exclusive bool, sub *Query) *Query {
	return q.join(DirInbound, min, max, exclusive, sub)
}

func (q *Query) join(dir Direction, min, max int, exclusive bool, sub *Query) *Query {
	jc := JoinClause{
		Direction: dir,
		MinDepth:  min,
		MaxDepth:  max,
		Exclusive: exclusive,
		SubQuery:  sub,
	}
	if sub != nil {
		jc.EdgeCollection = sub.Collection
	}
	q.Joins = append(q.Joins, jc)
	return q
}

// Clone returns a deep copy of q. Filter values are copied by reference.
func (q *Query) Clone() *Query {
	if q == nil {
		return nil
	}
	out := &Query{
		Collection: q.Collection,
		IsDistinct: q.IsDistinct,
	}
	if q.Origin != nil {
		o := *q.Origin
		out.Origin = &o
	}
	if q.Window != nil {
		w := *q.Window
		out.Window = &w
	}
	for _, f := range q.Filters {
		out.Filters = append(out.Filters, Filter{Any: append([]Condition(nil), f.Any...)})
	}
	out.Sorts = append([]Sort(nil), q.Sorts...)
	for _, j := range q.Joins {
		j.SubQuery = j.SubQuery.Clone()
		out.Joins = append(out.Joins, j)
	}
	return out
}
