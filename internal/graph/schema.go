package graph

import (
	"encoding/json"

	"github.com/dusk-indust/docgraph/internal/query"
)

// --- Cursor wire format ---

// CursorRequest is the body of a cursor creation request.
type CursorRequest struct {
	Query     string         `json:"query"`
	BindVars  map[string]any `json:"bindVars,omitempty"`
	BatchSize int            `json:"batchSize,omitempty"`
	Count     bool           `json:"count,omitempty"`
	Options   *CursorOptions `json:"options,omitempty"`

	// Source is the AST Query was compiled from. It never goes on the wire;
	// in-process backends evaluate it instead of parsing Query.
	Source *query.Query `json:"-"`
}

// CursorOptions carries the optional cursor flags.
type CursorOptions struct {
	FullCount bool `json:"fullCount,omitempty"`
}

// CursorResponse is one batch of a cursor.
type CursorResponse struct {
	Result  []json.RawMessage `json:"result"`
	HasMore bool              `json:"hasMore"`
	ID      string            `json:"id,omitempty"`
	Count   *int              `json:"count,omitempty"`
	Extra   *CursorExtra      `json:"extra,omitempty"`
}

// CursorExtra holds execution statistics.
type CursorExtra struct {
	Stats CursorStats `json:"stats"`
}

// CursorStats reports how many documents matched before the final LIMIT.
type CursorStats struct {
	FullCount *int `json:"fullCount,omitempty"`
}

// FullCount returns the pre-limit match count if the server reported one.
func (r *CursorResponse) FullCount() (int, bool) {
	if r == nil || r.Extra == nil || r.Extra.Stats.FullCount == nil {
		return 0, false
	}
	return *r.Extra.Stats.FullCount, true
}

// ErrorResponse is the error envelope the server returns.
type ErrorResponse struct {
	Error        bool   `json:"error"`
	Code         int    `json:"code"`
	ErrorNum     int    `json:"errorNum"`
	ErrorMessage string `json:"errorMessage"`
}

// Error numbers shared by every backend.
const (
	ErrorNumBadParameter       = 10
	ErrorNumCollectionNotFound = 1203
	ErrorNumUniqueConstraint   = 1210
	ErrorNumDocumentInvalid    = 1227
	ErrorNumEdgeAttribute      = 1233
	ErrorNumQueryParse         = 1501
	ErrorNumCursorNotFound     = 1600
)

// DefaultBatchSize is used when a request leaves BatchSize unset.
const DefaultBatchSize = 1000

// --- Embedded schema ---

// TableSchema declares one Kuzu table. Document collections become node
// tables; edge collections become relationship tables between From and To.
type TableSchema struct {
	Name       string     `yaml:"name" json:"name"`
	Edge       bool       `yaml:"edge,omitempty" json:"edge,omitempty"`
	From       string     `yaml:"from,omitempty" json:"from,omitempty"`
	To         string     `yaml:"to,omitempty" json:"to,omitempty"`
	Properties []Property `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// Property is a typed column of a table.
type Property struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"` // Kuzu type name, e.g. STRING, INT64
}
