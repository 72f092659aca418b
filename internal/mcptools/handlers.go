package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/docgraph/internal/compile"
	"github.com/dusk-indust/docgraph/internal/exec"
	"github.com/dusk-indust/docgraph/internal/query"
)

// QueryService holds the dispatcher used by the MCP tool handlers.
type QueryService struct {
	d *exec.Dispatcher
}

// NewQueryService creates a QueryService running queries through d.
func NewQueryService(d *exec.Dispatcher) *QueryService {
	return &QueryService{d: d}
}

// CompileQuery compiles a query without running it.
func (s *QueryService) CompileQuery(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input CompileQueryInput,
) (*mcp.CallToolResult, CompileQueryOutput, error) {
	q, err := decodeQuery(input.Query)
	if err != nil {
		return nil, CompileQueryOutput{}, err
	}
	dialect := s.d.Database().Dialect()
	if input.Dialect != "" {
		if dialect, err = dialectByName(input.Dialect); err != nil {
			return nil, CompileQueryOutput{}, err
		}
	}
	c, err := dialect.Compile(q)
	if err != nil {
		return nil, CompileQueryOutput{}, err
	}
	out := CompileQueryOutput{Dialect: c.Dialect, Text: c.Text, BindVars: c.BindVars}
	if out.BindVars == nil {
		out.BindVars = map[string]any{}
	}
	return nil, out, nil
}

// RunQuery runs a query. Without a batch size every document is returned;
// with one only the first batch is, and the cursor is released.
func (s *QueryService) RunQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RunQueryInput,
) (*mcp.CallToolResult, RunQueryOutput, error) {
	q, err := decodeQuery(input.Query)
	if err != nil {
		return nil, RunQueryOutput{}, err
	}

	if input.BatchSize <= 0 {
		raws, err := s.d.Immediate(ctx, q)
		if err != nil {
			return nil, RunQueryOutput{}, err
		}
		docs, err := documents(raws)
		if err != nil {
			return nil, RunQueryOutput{}, err
		}
		n := len(docs)
		return nil, RunQueryOutput{Documents: docs, Count: &n}, nil
	}

	cur, err := s.d.Batched(ctx, q, input.BatchSize)
	if err != nil {
		return nil, RunQueryOutput{}, err
	}
	defer cur.Close()
	raws, err := cur.NextBatch(ctx)
	if err != nil {
		return nil, RunQueryOutput{}, err
	}
	docs, err := documents(raws)
	if err != nil {
		return nil, RunQueryOutput{}, err
	}
	out := RunQueryOutput{Documents: docs, HasMore: cur.HasMore()}
	if n, ok := cur.Count(); ok {
		out.Count = &n
	}
	if n, ok := cur.FullCount(); ok {
		out.FullCount = &n
	}
	return nil, out, nil
}

// QueryExists reports whether a query matches any document.
func (s *QueryService) QueryExists(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryExistsInput,
) (*mcp.CallToolResult, QueryExistsOutput, error) {
	q, err := decodeQuery(input.Query)
	if err != nil {
		return nil, QueryExistsOutput{}, err
	}
	ok, err := s.d.Exists(ctx, q)
	if err != nil {
		return nil, QueryExistsOutput{}, err
	}
	return nil, QueryExistsOutput{Exists: ok}, nil
}

// CountCollection returns the number of documents in a collection.
func (s *QueryService) CountCollection(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CountCollectionInput,
) (*mcp.CallToolResult, CountCollectionOutput, error) {
	if input.Collection == "" {
		return nil, CountCollectionOutput{}, fmt.Errorf("collection is required")
	}
	info, err := s.d.Database().Collection(ctx, input.Collection)
	if err != nil {
		return nil, CountCollectionOutput{}, err
	}
	return nil, CountCollectionOutput{Collection: info.Name, Count: info.Count}, nil
}

// decodeQuery converts a free-form tool argument into a Query.
func decodeQuery(raw map[string]any) (*query.Query, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("query is required")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	var spec query.Spec
	if err := json.Unmarshal(b, &spec); err != nil {
		return nil, fmt.Errorf("decode query: %w", err)
	}
	return spec.Build()
}

func dialectByName(name string) (compile.Dialect, error) {
	switch strings.ToLower(name) {
	case "aql":
		return compile.AQL{}, nil
	case "cypher":
		return compile.Cypher{}, nil
	}
	return nil, fmt.Errorf("unknown dialect %q (want aql or cypher)", name)
}

func documents(raws []json.RawMessage) ([]any, error) {
	docs := make([]any, len(raws))
	for i, raw := range raws {
		if err := json.Unmarshal(raw, &docs[i]); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
	}
	return docs, nil
}
