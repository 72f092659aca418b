// Package mcptools exposes query compilation and execution as MCP tools.
package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewQueryMCPServer creates an MCP server with the query tools registered.
func NewQueryMCPServer(svc *QueryService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "docgraph",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "compile_query",
		Description: "Compile a document/graph query to AQL or Cypher without running it. Returns the query text and its bind variables.",
	}, svc.CompileQuery)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_query",
		Description: "Run a query against the connected database. Returns every document, or only the first batch with count and fullCount when batchSize is set.",
	}, svc.RunQuery)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_exists",
		Description: "Report whether a query matches at least one document.",
	}, svc.QueryExists)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "count_collection",
		Description: "Return the number of documents stored in a collection.",
	}, svc.CountCollection)

	return server
}

// Handler returns an HTTP handler serving the query tools over the
// streamable HTTP transport.
func Handler(svc *QueryService) http.Handler {
	server := NewQueryMCPServer(svc)
	return mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)
}

// RunMCPServer serves the query tools on addr until ctx is cancelled.
// Extra handlers, such as a metrics endpoint, are mounted next to the MCP
// endpoint at their own paths.
func RunMCPServer(ctx context.Context, svc *QueryService, addr string, extra map[string]http.Handler) error {
	mux := http.NewServeMux()
	for path, h := range extra {
		mux.Handle(path, h)
	}
	mux.Handle("/", Handler(svc))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
