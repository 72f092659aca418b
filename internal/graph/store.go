package graph

import (
	"context"
	"io"

	"github.com/dusk-indust/docgraph/internal/compile"
)

// Database is the capability the execution layer runs queries against.
// Implementations: arango.Client (production), KuzuStore (embedded) and
// MemStore (testing). All cursor traffic goes through this interface.
type Database interface {
	io.Closer

	// Dialect returns the compiler producing text this backend understands.
	Dialect() compile.Dialect

	// Cursor creates a server-side cursor and returns its first batch.
	Cursor(ctx context.Context, req CursorRequest) (*CursorResponse, error)
	// ReadCursor fetches the next batch of an open cursor.
	ReadCursor(ctx context.Context, id string) (*CursorResponse, error)
	// DeleteCursor releases an open cursor before it is exhausted.
	DeleteCursor(ctx context.Context, id string) error

	// Collection resolves a collection by name.
	Collection(ctx context.Context, name string) (*CollectionInfo, error)
}

// Writer inserts documents. Only fixture seeding writes; entity lifecycle
// is handled outside this module.
type Writer interface {
	InsertDocument(ctx context.Context, collection string, doc any) (*DocumentMeta, error)
}

// CollectionType distinguishes document and edge collections.
type CollectionType int

// Values match the ArangoDB collection type codes.
const (
	CollectionDocument CollectionType = 2
	CollectionEdge     CollectionType = 3
)

// CollectionInfo describes a resolved collection.
type CollectionInfo struct {
	Name  string         `json:"name"`
	Type  CollectionType `json:"type"`
	Count int            `json:"count"`
}

// DocumentMeta holds the system attributes assigned on insert.
type DocumentMeta struct {
	Key string `json:"_key"`
	ID  string `json:"_id"`
	Rev string `json:"_rev"`
}
