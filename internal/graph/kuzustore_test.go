//go:build cgo

package graph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/docgraph/internal/dberr"
	"github.com/dusk-indust/docgraph/internal/fixture"
	"github.com/dusk-indust/docgraph/internal/graph"
	"github.com/dusk-indust/docgraph/internal/query"
)

// newKuzuStore creates a fresh in-memory KuzuStore holding the fixture
// graph. It registers a cleanup function to close the store when the test
// finishes.
func newKuzuStore(t *testing.T) *graph.KuzuStore {
	t.Helper()
	s, err := graph.NewKuzuStore()
	require.NoError(t, err, "NewKuzuStore should not fail")
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	require.NoError(t, s.InitSchema(ctx, fixture.Schema()), "InitSchema should not fail")
	require.NoError(t, fixture.Seed(ctx, s))
	return s
}

// Kuzu does not promise a traversal order, so these tests compare sets.

func TestKuzuStore_InitSchemaIdempotent(t *testing.T) {
	s := newKuzuStore(t)
	// Second call should be idempotent (IF NOT EXISTS).
	require.NoError(t, s.InitSchema(context.Background(), fixture.Schema()))
}

func TestKuzuStore_InitSchemaRejectsBadNames(t *testing.T) {
	s, err := graph.NewKuzuStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	err = s.InitSchema(context.Background(), []graph.TableSchema{{Name: "bad name"}})
	assert.ErrorContains(t, err, "invalid table name")
}

func TestKuzuStore_Collection(t *testing.T) {
	s := newKuzuStore(t)
	ctx := context.Background()

	chars, err := s.Collection(ctx, fixture.Characters)
	require.NoError(t, err)
	assert.Equal(t, 12, chars.Count)

	edges, err := s.Collection(ctx, fixture.ChildOfs)
	require.NoError(t, err)
	assert.Equal(t, graph.CollectionEdge, edges.Type)
	assert.Equal(t, 14, edges.Count)

	_, err = s.Collection(ctx, "Missing")
	assert.ErrorIs(t, err, dberr.ErrServer)
}

func TestKuzuStore_Children(t *testing.T) {
	s := newKuzuStore(t)
	got := run(t, s, query.Inbound(1, 1, fixture.ChildOfs, fixture.ID("Ned")))
	assert.ElementsMatch(t, fixture.IDs("Robb", "Sansa", "Arya", "Bran", "John"), got)
}

func TestKuzuStore_AncestorsDistinct(t *testing.T) {
	s := newKuzuStore(t)
	got := run(t, s, query.Outbound(1, 2, fixture.ChildOfs, fixture.ID("Joffrey")).Distinct())
	assert.ElementsMatch(t, fixture.IDs("Cersei", "Tywin", "Jaime"), got)
}

func TestKuzuStore_RelativesJoin(t *testing.T) {
	s := newKuzuStore(t)

	q := query.Outbound(1, 2, fixture.ChildOfs, fixture.ID("Tyrion")).
		JoinInbound(1, 2, false, query.New(fixture.ChildOfs).Distinct())
	assert.ElementsMatch(t, fixture.IDs("Jaime", "Joffrey", "Cersei", "Tyrion"), run(t, s, q))

	exclusive := query.Outbound(1, 2, fixture.ChildOfs, fixture.ID("Tyrion")).
		JoinInbound(1, 2, true, query.New(fixture.ChildOfs).Distinct())
	assert.ElementsMatch(t, fixture.IDs("Jaime", "Joffrey", "Cersei"), run(t, s, exclusive))
}

func TestKuzuStore_ScanSortLimit(t *testing.T) {
	s := newKuzuStore(t)
	q := query.New(fixture.Characters).
		Filter(query.Field("surname").Eq("Stark")).
		Sort("name", query.Desc).
		Paginate(1, 2)
	assert.Equal(t, fixture.IDs("Robb", "Ned"), run(t, s, q))
}

func TestKuzuStore_FullCount(t *testing.T) {
	s := newKuzuStore(t)
	c, err := s.Dialect().Compile(query.New(fixture.Characters).Sort("_key", query.Asc).Limit(3))
	require.NoError(t, err)

	resp, err := s.Cursor(context.Background(), graph.CursorRequest{
		Query: c.Text, BindVars: c.BindVars, Source: c.Source,
		Options: &graph.CursorOptions{FullCount: true},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Result, 3)
	full, ok := resp.FullCount()
	require.True(t, ok)
	assert.Equal(t, 12, full)
}

func TestKuzuStore_BadQuery(t *testing.T) {
	s := newKuzuStore(t)
	_, err := s.Cursor(context.Background(), graph.CursorRequest{Query: "MATCH (n:Nope) RETURN n"})
	var se *dberr.ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, graph.ErrorNumQueryParse, se.ErrorNum)
}
