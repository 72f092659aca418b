package mcptools

// --- MCP Tool Input Types ---
// The MCP Go SDK derives each tool's JSON schema from these structs. Queries
// travel as free-form objects in the query file format and are decoded into
// query.Spec by the handlers.

// CompileQueryInput is the input for the compile_query MCP tool.
type CompileQueryInput struct {
	Query   map[string]any `json:"query" jsonschema:"query in the query file format: collection, traversal, filters, sort, limit, distinct, joins"`
	Dialect string         `json:"dialect,omitempty" jsonschema:"target dialect: aql or cypher (default: the connected backend's)"`
}

// CompileQueryOutput is the result of the compile_query MCP tool.
type CompileQueryOutput struct {
	Dialect  string         `json:"dialect"`
	Text     string         `json:"text"`
	BindVars map[string]any `json:"bindVars"`
}

// RunQueryInput is the input for the run_query MCP tool.
type RunQueryInput struct {
	Query     map[string]any `json:"query" jsonschema:"query in the query file format"`
	BatchSize int            `json:"batchSize,omitempty" jsonschema:"when set, return only the first batch of this size together with count and fullCount"`
}

// RunQueryOutput is the result of the run_query MCP tool.
type RunQueryOutput struct {
	Documents []any `json:"documents"`
	Count     *int  `json:"count,omitempty"`
	FullCount *int  `json:"fullCount,omitempty"`
	HasMore   bool  `json:"hasMore"`
}

// QueryExistsInput is the input for the query_exists MCP tool.
type QueryExistsInput struct {
	Query map[string]any `json:"query" jsonschema:"query in the query file format"`
}

// QueryExistsOutput is the result of the query_exists MCP tool.
type QueryExistsOutput struct {
	Exists bool `json:"exists"`
}

// CountCollectionInput is the input for the count_collection MCP tool.
type CountCollectionInput struct {
	Collection string `json:"collection" jsonschema:"collection name"`
}

// CountCollectionOutput is the result of the count_collection MCP tool.
type CountCollectionOutput struct {
	Collection string `json:"collection"`
	Count      int    `json:"count"`
}
