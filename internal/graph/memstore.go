package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/btree"

	"github.com/dusk-indust/docgraph/internal/compile"
	"github.com/dusk-indust/docgraph/internal/dberr"
)

// Compile-time assertions: *MemStore satisfies Database and Writer.
var (
	_ Database = (*MemStore)(nil)
	_ Writer   = (*MemStore)(nil)
)

// MemStore implements Database in process. Documents live in per-collection
// btrees ordered by key; edges are additionally indexed by endpoint in
// insertion order so traversals visit them the way ArangoDB does.
// Thread-safe via sync.RWMutex.
type MemStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	rev         uint64
	cursors     *cursorRegistry
}

type memDoc struct {
	key  string
	body map[string]any
}

type memCollection struct {
	name string
	typ  CollectionType
	docs *btree.BTreeG[*memDoc]
	out  map[string][]*memDoc // edges by _from
	in   map[string][]*memDoc // edges by _to
}

// NewMemStore returns an empty MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		collections: make(map[string]*memCollection),
		cursors:     newCursorRegistry(),
	}
}

func newMemCollection(name string, typ CollectionType) *memCollection {
	return &memCollection{
		name: name,
		typ:  typ,
		docs: btree.NewBTreeG(func(a, b *memDoc) bool { return a.key < b.key }),
		out:  make(map[string][]*memDoc),
		in:   make(map[string][]*memDoc),
	}
}

// Dialect returns AQL: the store evaluates the compiled AST with ArangoDB
// semantics, so the text it logs is the text ArangoDB would run.
func (m *MemStore) Dialect() compile.Dialect { return compile.AQL{} }

// InsertDocument stores doc in collection, creating the collection on first
// use. The collection becomes an edge collection when its first document
// carries _from and _to. A missing _key is generated.
func (m *MemStore) InsertDocument(ctx context.Context, collection string, doc any) (*DocumentMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, &dberr.TransportError{Op: "insert document", Err: err}
	}
	body, err := toObject(doc)
	if err != nil {
		return nil, badDocument(collection, err.Error())
	}
	_, hasFrom := body["_from"].(string)
	_, hasTo := body["_to"].(string)

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		typ := CollectionDocument
		if hasFrom && hasTo {
			typ = CollectionEdge
		}
		c = newMemCollection(collection, typ)
		m.collections[collection] = c
	}
	if c.typ == CollectionEdge && !(hasFrom && hasTo) {
		return nil, &dberr.ServerError{
			Op:       "insert document",
			Code:     400,
			ErrorNum: ErrorNumEdgeAttribute,
			Message:  "edge attribute missing or invalid in " + collection,
		}
	}

	key, _ := body["_key"].(string)
	if key == "" {
		key = uuid.NewString()
	}
	if _, dup := c.docs.Get(&memDoc{key: key}); dup {
		return nil, &dberr.ServerError{
			Op:       "insert document",
			Code:     409,
			ErrorNum: ErrorNumUniqueConstraint,
			Message:  fmt.Sprintf("unique constraint violated: %s/%s", collection, key),
		}
	}

	m.rev++
	meta := &DocumentMeta{
		Key: key,
		ID:  collection + "/" + key,
		Rev: strconv.FormatUint(m.rev, 10),
	}
	body["_key"] = meta.Key
	body["_id"] = meta.ID
	body["_rev"] = meta.Rev

	d := &memDoc{key: key, body: body}
	c.docs.Set(d)
	if c.typ == CollectionEdge {
		from, to := body["_from"].(string), body["_to"].(string)
		c.out[from] = append(c.out[from], d)
		c.in[to] = append(c.in[to], d)
	}
	return meta, nil
}

// Cursor evaluates req.Source and returns the first batch. Query text is
// not parsed; a request without a source is rejected.
func (m *MemStore) Cursor(ctx context.Context, req CursorRequest) (*CursorResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, &dberr.TransportError{Op: "create cursor", Err: err}
	}
	if req.Source == nil {
		return nil, &dberr.ServerError{
			Op:       "create cursor",
			Code:     400,
			ErrorNum: ErrorNumQueryParse,
			Message:  "in-memory store evaluates compiled queries only",
		}
	}

	m.mu.RLock()
	docs, fullCount, err := m.evaluate(req.Source)
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	raws := make([]json.RawMessage, 0, len(docs))
	for _, d := range docs {
		b, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("memstore: encode result: %w", err)
		}
		raws = append(raws, b)
	}
	return m.cursors.start(req, raws, fullCount), nil
}

// ReadCursor returns the next batch of an open cursor.
func (m *MemStore) ReadCursor(ctx context.Context, id string) (*CursorResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, &dberr.TransportError{Op: "read cursor", Err: err}
	}
	return m.cursors.read(id)
}

// DeleteCursor releases an open cursor.
func (m *MemStore) DeleteCursor(_ context.Context, id string) error {
	return m.cursors.remove(id)
}

// OpenCursors reports how many cursors still hold unread batches.
func (m *MemStore) OpenCursors() int {
	return m.cursors.size()
}

// Collection resolves a collection and counts its documents.
func (m *MemStore) Collection(ctx context.Context, name string) (*CollectionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, &dberr.TransportError{Op: "collection", Err: err}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[name]
	if !ok {
		return nil, collectionNotFound("collection", name)
	}
	return &CollectionInfo{Name: name, Type: c.typ, Count: c.docs.Len()}, nil
}

// Close drops every open cursor.
func (m *MemStore) Close() error {
	m.cursors.reset()
	return nil
}

// lookup resolves a document handle ("collection/key"). Callers hold m.mu.
func (m *MemStore) lookup(id string) map[string]any {
	coll, key, ok := strings.Cut(id, "/")
	if !ok {
		return nil
	}
	c, ok := m.collections[coll]
	if !ok {
		return nil
	}
	d, ok := c.docs.Get(&memDoc{key: key})
	if !ok {
		return nil
	}
	return d.body
}

// toObject normalizes doc through JSON so stored values have the same
// types the filters compare against.
func toObject(doc any) (map[string]any, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var body map[string]any
	if err := json.Unmarshal(b, &body); err != nil || body == nil {
		return nil, fmt.Errorf("document is not an object")
	}
	return body, nil
}

func badDocument(collection, msg string) error {
	return &dberr.ServerError{
		Op:       "insert document",
		Code:     400,
		ErrorNum: ErrorNumDocumentInvalid,
		Message:  collection + ": " + msg,
	}
}
