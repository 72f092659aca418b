package compile

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/docgraph/internal/dberr"
	"github.com/dusk-indust/docgraph/internal/query"
)

func TestAQL_CollectionScan(t *testing.T) {
	q := query.New("Character").
		Filter(query.Field("surname").Eq("Stark")).
		Filter(query.Field("age").Gte(12))

	c, err := AQL{}.Compile(q)
	require.NoError(t, err)

	assert.Equal(t, "aql", c.Dialect)
	assert.Equal(t,
		"FOR doc0 IN Character FILTER doc0.surname == @var0 FILTER doc0.age >= @var1 RETURN doc0",
		c.Text)
	assert.Equal(t, BindVars{"var0": "Stark", "var1": 12}, c.BindVars)
}

func TestAQL_InboundTraversal(t *testing.T) {
	for _, bounds := range [][2]int{{0, 0}, {1, 1}, {1, 2}, {2, 5}} {
		t.Run(fmt.Sprintf("%d..%d", bounds[0], bounds[1]), func(t *testing.T) {
			q := query.Inbound(bounds[0], bounds[1], "ChildOf", "Character/catelyn")
			c, err := AQL{}.Compile(q)
			require.NoError(t, err)

			want := fmt.Sprintf("FOR doc0, edge0, path0 IN %d..%d INBOUND @var0 ChildOf RETURN doc0", bounds[0], bounds[1])
			assert.Equal(t, want, c.Text)
			assert.Equal(t, BindVars{"var0": "Character/catelyn"}, c.BindVars)
		})
	}
}

func TestAQL_DistinctOutbound(t *testing.T) {
	c, err := AQL{}.Compile(query.Outbound(1, 2, "ChildOf", "Character/joffrey").Distinct())
	require.NoError(t, err)
	assert.Equal(t, "FOR doc0, edge0, path0 IN 1..2 OUTBOUND @var0 ChildOf RETURN DISTINCT doc0", c.Text)
}

func TestAQL_JoinInbound(t *testing.T) {
	q := query.Outbound(1, 2, "ChildOf", "Character/tyrion").
		JoinInbound(1, 2, false, query.New("ChildOf").Distinct())

	c, err := AQL{}.Compile(q)
	require.NoError(t, err)
	assert.Equal(t,
		"FOR doc0, edge0, path0 IN 1..2 OUTBOUND @var0 ChildOf "+
			"FOR doc1, edge1, path1 IN 1..2 INBOUND doc0 ChildOf RETURN DISTINCT doc1",
		c.Text)
}

func TestAQL_ExclusiveJoin(t *testing.T) {
	fromTraversal := query.Outbound(1, 2, "ChildOf", "Character/tyrion").
		JoinInbound(1, 2, true, query.New("ChildOf"))
	c, err := AQL{}.Compile(fromTraversal)
	require.NoError(t, err)
	assert.Contains(t, c.Text, "INBOUND doc0 ChildOf FILTER doc1._id NOT IN path0.vertices[*]._id RETURN doc1")

	fromScan := query.New("Character").JoinOutbound(1, 1, true, query.New("ChildOf"))
	c, err = AQL{}.Compile(fromScan)
	require.NoError(t, err)
	assert.Equal(t,
		"FOR doc0 IN Character FOR doc1, edge1, path1 IN 1..1 OUTBOUND doc0 ChildOf FILTER doc1._id != doc0._id RETURN doc1",
		c.Text)
}

func TestAQL_SortAndLimitOnOutermostStage(t *testing.T) {
	q := query.New("Character").
		Filter(query.Field("surname").Eq("Lannister")).
		JoinInbound(1, 1, false, query.New("ChildOf").Filter(query.Field("alive").Eq(true))).
		Sort("name", query.Asc).
		Sort("age", query.Desc).
		Paginate(2, 3)

	c, err := AQL{}.Compile(q)
	require.NoError(t, err)
	assert.Equal(t,
		"FOR doc0 IN Character FILTER doc0.surname == @var0 "+
			"FOR doc1, edge1, path1 IN 1..1 INBOUND doc0 ChildOf FILTER doc1.alive == @var1 "+
			"SORT doc1.name ASC, doc1.age DESC LIMIT 2, 3 RETURN doc1",
		c.Text)
	assert.Equal(t, BindVars{"var0": "Lannister", "var1": true}, c.BindVars)
}

func TestAQL_DistinctDedupesBeforeLimit(t *testing.T) {
	c, err := AQL{}.Compile(query.Outbound(1, 2, "ChildOf", "Character/joffrey").Distinct().Paginate(2, 2))
	require.NoError(t, err)
	assert.Equal(t,
		"FOR row IN (FOR doc0, edge0, path0 IN 1..2 OUTBOUND @var0 ChildOf RETURN DISTINCT doc0) "+
			"LIMIT 2, 2 RETURN row",
		c.Text)

	q := query.Outbound(1, 2, "ChildOf", "Character/tyrion").
		JoinInbound(1, 2, false, query.New("ChildOf").Distinct()).
		Filter(query.Field("surname").Eq("Lannister")).
		Sort("name", query.Desc).
		Limit(4)
	c, err = AQL{}.Compile(q)
	require.NoError(t, err)
	assert.Equal(t,
		"FOR row IN (FOR doc0, edge0, path0 IN 1..2 OUTBOUND @var0 ChildOf FILTER doc0.surname == @var1 "+
			"FOR doc1, edge1, path1 IN 1..2 INBOUND doc0 ChildOf RETURN DISTINCT doc1) "+
			"SORT row.name DESC LIMIT 0, 4 RETURN row",
		c.Text)
	assert.Equal(t, BindVars{"var0": "Character/tyrion", "var1": "Lannister"}, c.BindVars)
}

func TestAQL_QuotesKeywordNames(t *testing.T) {
	q := query.New("Sort").
		Filter(query.Field("filter").Eq(1)).
		Filter(query.Field("meta.With.size").Gt(2)).
		JoinOutbound(1, 1, false, query.New("graph")).
		Sort("return", query.Asc)
	c, err := AQL{}.Compile(q)
	require.NoError(t, err)
	assert.Equal(t,
		"FOR doc0 IN `Sort` FILTER doc0.`filter` == @var0 FILTER doc0.meta.`With`.size > @var1 "+
			"FOR doc1, edge1, path1 IN 1..1 OUTBOUND doc0 `graph` "+
			"SORT doc1.`return` ASC RETURN doc1",
		c.Text)
}

func TestAQL_Operators(t *testing.T) {
	q := query.New("Character").
		Filter(query.Field("name").Like("A%")).
		Filter(query.Field("house").In("Stark", "Tully")).
		Filter(query.Field("house").NotIn("Frey")).
		Filter(query.Field("title").IsNull()).
		Filter(query.Field("address.city").Ne("Winterfell")).
		FilterAny(query.Field("age").Lt(10), query.Field("age").Gt(60))

	c, err := AQL{}.Compile(q)
	require.NoError(t, err)
	assert.Equal(t,
		"FOR doc0 IN Character FILTER doc0.name LIKE @var0 FILTER doc0.house IN @var1 "+
			"FILTER doc0.house NOT IN @var2 FILTER doc0.title == null "+
			"FILTER doc0.address.city != @var3 FILTER (doc0.age < @var4 || doc0.age > @var5) RETURN doc0",
		c.Text)
	assert.Equal(t, []any{"Stark", "Tully"}, c.BindVars["var1"])
	assert.Len(t, c.BindVars, 6)
}

func TestBindVars_UniqueAcrossDepths(t *testing.T) {
	// The same filter shape at three depths must bind three distinct names.
	same := func() query.Condition { return query.Field("name").Eq("Tywin") }
	q := query.New("Character").Filter(same()).
		JoinOutbound(1, 1, false, query.New("ChildOf").Filter(same()).
			JoinOutbound(1, 1, false, query.New("ChildOf").Filter(same())))

	for _, d := range []Dialect{AQL{}, Cypher{}} {
		t.Run(d.Name(), func(t *testing.T) {
			c, err := d.Compile(q)
			require.NoError(t, err)
			assert.Equal(t, BindVars{"var0": "Tywin", "var1": "Tywin", "var2": "Tywin"}, c.BindVars)

			names := regexp.MustCompile(`[@$](var\d+)`).FindAllStringSubmatch(c.Text, -1)
			seen := map[string]bool{}
			for _, m := range names {
				assert.False(t, seen[m[1]], "bind %s used twice", m[1])
				seen[m[1]] = true
			}
			assert.Len(t, seen, 3)
		})
	}
}

func TestCompile_IsDeterministic(t *testing.T) {
	q := query.Outbound(1, 3, "ChildOf", "Character/a").
		Filter(query.Field("x").Eq(1)).
		JoinInbound(1, 1, true, query.New("ChildOf").Filter(query.Field("y").Eq(2)))

	first, err := AQL{}.Compile(q)
	require.NoError(t, err)
	for range 5 {
		again, err := AQL{}.Compile(q)
		require.NoError(t, err)
		assert.Equal(t, first.Text, again.Text)
		assert.Equal(t, first.BindVars, again.BindVars)
	}
}

func TestCompile_SourceIsPrivateCopy(t *testing.T) {
	q := query.New("Character").Filter(query.Field("name").Eq("Ned"))
	c, err := AQL{}.Compile(q)
	require.NoError(t, err)

	q.Filter(query.Field("surname").Eq("Stark"))
	assert.Len(t, c.Source.Filters, 1)
}

func TestCompile_Malformed(t *testing.T) {
	tests := []struct {
		name string
		q    *query.Query
		want string
	}{
		{"nil", nil, "nil query"},
		{"empty collection", query.New(""), "empty collection name"},
		{"bad collection", query.New("Char acter"), "invalid collection name"},
		{"min greater than max", query.Inbound(2, 1, "ChildOf", "Character/ned"), "min depth 2 greater than max depth 1"},
		{"negative depth", query.Outbound(-1, 1, "ChildOf", "Character/ned"), "negative depth"},
		{"empty edge collection", query.Outbound(1, 1, "", "Character/ned"), "empty edge collection"},
		{"start not a handle", query.Outbound(1, 1, "ChildOf", "ned"), "not a document handle"},
		{"join without sub-query", query.New("C").JoinOutbound(1, 1, false, nil), "join without sub-query"},
		{"join empty edge collection", query.New("C").JoinOutbound(1, 1, false, query.New("")), "empty edge collection"},
		{"join bad bounds", query.New("C").JoinInbound(3, 2, false, query.New("E")), "min depth 3 greater than max depth 2"},
		{"join with origin", query.New("C").JoinInbound(1, 1, false, query.Outbound(1, 1, "E", "C/x")), "own traversal origin"},
		{"nested sort", query.New("C").JoinInbound(1, 1, false, query.New("E").Sort("a", query.Asc)), "outermost"},
		{"nested limit", query.New("C").JoinInbound(1, 1, false, query.New("E").Limit(3)), "outermost"},
		{"injected field", query.New("C").Filter(query.Field("a == 1 || true").Eq(1)), "invalid field name"},
		{"unknown operator", query.New("C").Filter(query.Condition{Field: "a", Op: "~~"}), "unknown operator"},
		{"empty group", query.New("C").FilterAny(), "empty filter group"},
		{"in without list", query.New("C").Filter(query.Condition{Field: "a", Op: query.OpIn, Value: "x"}), "needs a list value"},
		{"like without string", query.New("C").Filter(query.Condition{Field: "a", Op: query.OpLike, Value: 3}), "string pattern"},
		{"bad sort field", query.New("C").Sort("a b", query.Asc), "invalid sort field"},
		{"negative limit", query.New("C").Paginate(0, -1), "negative limit"},
		{"offset without limit", query.New("C").Offset(4), "without limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, d := range []Dialect{AQL{}, Cypher{}} {
				c, err := d.Compile(tt.q)
				require.Error(t, err, d.Name())
				assert.Nil(t, c)
				assert.ErrorIs(t, err, dberr.ErrMalformedQuery)
				assert.ErrorContains(t, err, tt.want)
			}
		})
	}
}

func TestCypher_Traversals(t *testing.T) {
	q := query.Outbound(1, 2, "ChildOf", "Character/tyrion").
		JoinInbound(1, 2, true, query.New("ChildOf").Filter(query.Field("name").Like("J%")).Distinct())

	c, err := Cypher{}.Compile(q)
	require.NoError(t, err)
	assert.Equal(t, "cypher", c.Dialect)
	assert.Equal(t,
		"MATCH path0 = (start0 {doc_id: $var0})-[:ChildOf*1..2]->(doc0) "+
			"MATCH path1 = (doc0)<-[:ChildOf*1..2]-(doc1) "+
			"WHERE NOT list_contains(properties(nodes(path0), 'doc_id'), doc1.doc_id) AND doc1.name =~ $var1 "+
			"RETURN DISTINCT doc1",
		c.Text)
	assert.Equal(t, BindVars{"var0": "Character/tyrion", "var1": "^J.*$"}, c.BindVars)
}

func TestCypher_ScanWithSortAndLimit(t *testing.T) {
	q := query.New("Character").
		Filter(query.Field("surname").Ne("Stark")).
		FilterAny(query.Field("title").IsNull(), query.Field("house").NotIn("Frey")).
		Sort("name", query.Desc).
		Paginate(1, 2)

	c, err := Cypher{}.Compile(q)
	require.NoError(t, err)
	assert.Equal(t,
		"MATCH (doc0:Character) WHERE doc0.surname <> $var0 AND (doc0.title IS NULL OR NOT doc0.house IN $var1) "+
			"RETURN doc0 ORDER BY doc0.name DESC SKIP 1 LIMIT 2",
		c.Text)
}

func TestCypher_SystemAttributes(t *testing.T) {
	q := query.New("Character").Filter(query.Field("_key").Eq("ned")).Sort("_id", query.Asc)
	c, err := Cypher{}.Compile(q)
	require.NoError(t, err)
	assert.Equal(t, "MATCH (doc0:Character) WHERE doc0.doc_key = $var0 RETURN doc0 ORDER BY doc0.doc_id ASC", c.Text)

	assert.Equal(t, "address.city", CypherProperty("address.city"))
	assert.Equal(t, "doc_rev", CypherProperty("_rev"))
	assert.Equal(t, "_from", CypherProperty("_from"))
}

func TestLikeToRegexp(t *testing.T) {
	tests := map[string]string{
		"A%":      "^A.*$",
		"_rya":    "^.rya$",
		"100\\%":  "^100%$",
		"a.b":     `^a\.b$`,
		"%(x)%":   `^.*\(x\).*$`,
		"trail\\": `^trail\\$`,
	}
	for in, want := range tests {
		got := LikeToRegexp(in)
		assert.Equal(t, want, got, in)
		_, err := regexp.Compile(got)
		assert.NoError(t, err, in)
	}
}
