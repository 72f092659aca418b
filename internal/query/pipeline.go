package query

// StageKind tells how a pipeline stage produces its vertices.
type StageKind int

const (
	StageScan      StageKind = iota // iterate a document collection
	StageTraversal                  // walk an edge collection
)

// Stage is one flattened step of a query. Stage i binds the i-th alias; a
// traversal stage with StartID == "" starts from the vertex of stage i-1.
type Stage struct {
	Index      int
	Kind       StageKind
	Collection string // document collection for scans, edge collection for traversals
	Direction  Direction
	MinDepth   int
	MaxDepth   int
	StartID    string
	Exclusive  bool
	Filters    []Filter

	// Fields that are only legal on the first stage. They are carried so the
	// compiler can reject them on nested stages instead of dropping them.
	Sorts    []Sort
	Window   *Limit
	Distinct bool

	// Nested reports a stage that came from a join. Root traversal fields
	// set on a join's sub-query are reported through HasOrigin.
	Nested    bool
	HasOrigin bool
	Missing   bool // join without a sub-query
}

// Pipeline flattens q into its chain of stages. Joins are chained in
// declaration order: each join starts at the vertex produced by everything
// declared before it, nested joins included.
func (q *Query) Pipeline() []Stage {
	if q == nil {
		return nil
	}
	root := Stage{
		Kind:       StageScan,
		Collection: q.Collection,
		Filters:    q.Filters,
		Sorts:      q.Sorts,
		Window:     q.Window,
		Distinct:   q.IsDistinct,
	}
	if q.Origin != nil {
		root.Kind = StageTraversal
		root.Direction = q.Origin.Direction
		root.MinDepth = q.Origin.MinDepth
		root.MaxDepth = q.Origin.MaxDepth
		root.StartID = q.Origin.StartID
	}
	stages := appendJoins([]Stage{root}, q.Joins)
	for i := range stages {
		stages[i].Index = i
	}
	return stages
}

func appendJoins(stages []Stage, joins []JoinClause) []Stage {
	for _, j := range joins {
		st := Stage{
			Kind:       StageTraversal,
			Collection: j.EdgeCollection,
			Direction:  j.Direction,
			MinDepth:   j.MinDepth,
			MaxDepth:   j.MaxDepth,
			Exclusive:  j.Exclusive,
			Nested:     true,
		}
		if j.SubQuery == nil {
			st.Missing = true
			stages = append(stages, st)
			continue
		}
		sub := j.SubQuery
		st.Filters = sub.Filters
		st.Sorts = sub.Sorts
		st.Window = sub.Window
		st.Distinct = sub.IsDistinct
		st.HasOrigin = sub.Origin != nil
		stages = appendJoins(append(stages, st), sub.Joins)
	}
	return stages
}

// Distinct reports whether any stage of the pipeline asked for
// deduplication. Deduplication always applies to the projected vertex.
func Distinct(stages []Stage) bool {
	for _, st := range stages {
		if st.Distinct {
			return true
		}
	}
	return false
}
