//go:build cgo

package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	kuzu "github.com/kuzudb/go-kuzu"

	"github.com/dusk-indust/docgraph/internal/compile"
	"github.com/dusk-indust/docgraph/internal/dberr"
)

// KuzuStore implements Database using KuzuDB as an embedded graph backend.
// Queries are compiled to Cypher; document collections are node tables and
// edge collections are relationship tables declared up front with
// InitSchema. It requires CGO because the go-kuzu driver wraps KuzuDB's C
// library.
type KuzuStore struct {
	mu      sync.Mutex
	db      *kuzu.Database
	conn    *kuzu.Connection
	tables  map[string]TableSchema
	cursors *cursorRegistry
}

// Compile-time check that KuzuStore satisfies Database and Writer.
var (
	_ Database = (*KuzuStore)(nil)
	_ Writer   = (*KuzuStore)(nil)
)

var (
	kuzuIdentRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	kuzuTypeRe  = regexp.MustCompile(`^[A-Z][A-Z0-9_]*(\[\])?$`)
)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given directory path. KuzuDB creates the directory itself for new databases.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	// Ensure parent directory exists (KuzuDB creates the leaf directory).
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(path string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{
		db:      db,
		conn:    conn,
		tables:  make(map[string]TableSchema),
		cursors: newCursorRegistry(),
	}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	s.cursors.reset()
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// Dialect returns the Cypher compiler.
func (s *KuzuStore) Dialect() compile.Dialect { return compile.Cypher{} }

// ---------- Schema setup ----------

// InitSchema creates the given tables if they do not exist. Node tables
// are created before relationship tables.
func (s *KuzuStore) InitSchema(_ context.Context, tables []TableSchema) error {
	ordered := append([]TableSchema(nil), tables...)
	sort.SliceStable(ordered, func(i, j int) bool { return !ordered[i].Edge && ordered[j].Edge })

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range ordered {
		stmt, err := tableDDL(t)
		if err != nil {
			return err
		}
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema %s: %w", t.Name, err)
		}
		res.Close()
		s.tables[t.Name] = t
	}
	return nil
}

// tableDDL renders the CREATE statement for one table. Every table carries
// the document system attributes.
func tableDDL(t TableSchema) (string, error) {
	names := []string{t.Name}
	if t.Edge {
		names = append(names, t.From, t.To)
	}
	for _, n := range names {
		if !kuzuIdentRe.MatchString(n) {
			return "", fmt.Errorf("kuzu: invalid table name %q", n)
		}
	}
	cols := []string{"doc_id STRING", "doc_key STRING", "doc_rev STRING"}
	for _, p := range t.Properties {
		if !kuzuIdentRe.MatchString(p.Name) || !kuzuTypeRe.MatchString(p.Type) {
			return "", fmt.Errorf("kuzu: invalid property %q of type %q on %s", p.Name, p.Type, t.Name)
		}
		cols = append(cols, p.Name+" "+p.Type)
	}
	if t.Edge {
		return fmt.Sprintf("CREATE REL TABLE IF NOT EXISTS %s(FROM %s TO %s, %s)",
			t.Name, t.From, t.To, strings.Join(cols, ", ")), nil
	}
	return fmt.Sprintf("CREATE NODE TABLE IF NOT EXISTS %s(%s, PRIMARY KEY(doc_id))",
		t.Name, strings.Join(cols, ", ")), nil
}

// ---------- Write operations ----------

// InsertDocument inserts a node, or a relationship when collection is an
// edge table. Attributes not declared in the schema are dropped.
func (s *KuzuStore) InsertDocument(ctx context.Context, collection string, doc any) (*DocumentMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, &dberr.TransportError{Op: "insert document", Err: err}
	}
	body, err := toObject(doc)
	if err != nil {
		return nil, badDocument(collection, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[collection]
	if !ok {
		return nil, collectionNotFound("insert document", collection)
	}
	key, _ := body["_key"].(string)
	if key == "" {
		key = uuid.NewString()
	}
	meta := &DocumentMeta{Key: key, ID: collection + "/" + key, Rev: uuid.NewString()[:8]}

	params := map[string]any{"doc_id": meta.ID, "doc_key": meta.Key, "doc_rev": meta.Rev}
	assigns := []string{"doc_id: $doc_id", "doc_key: $doc_key", "doc_rev: $doc_rev"}
	for _, p := range t.Properties {
		v, ok := body[p.Name]
		if !ok || v == nil {
			continue
		}
		params["p_"+p.Name] = coerce(v, p.Type)
		assigns = append(assigns, fmt.Sprintf("%s: $p_%s", p.Name, p.Name))
	}
	props := "{" + strings.Join(assigns, ", ") + "}"

	var cypher string
	if t.Edge {
		from, _ := body["_from"].(string)
		to, _ := body["_to"].(string)
		if from == "" || to == "" {
			return nil, &dberr.ServerError{
				Op:       "insert document",
				Code:     400,
				ErrorNum: ErrorNumEdgeAttribute,
				Message:  "edge attribute missing or invalid in " + collection,
			}
		}
		params["from"], params["to"] = from, to
		cypher = fmt.Sprintf("MATCH (a:%s {doc_id: $from}), (b:%s {doc_id: $to}) CREATE (a)-[:%s %s]->(b)",
			t.From, t.To, t.Name, props)
	} else {
		cypher = fmt.Sprintf("CREATE (n:%s %s)", t.Name, props)
	}

	if _, err := s.query(cypher, params); err != nil {
		return nil, &dberr.ServerError{Op: "insert document", Code: 500, Message: err.Error()}
	}
	return meta, nil
}

// ---------- Cursor operations ----------

// Cursor runs req.Query with its bind variables and returns the first
// batch. When a full count is requested for a limited query, the query is
// run a second time without its LIMIT to count the matches.
func (s *KuzuStore) Cursor(ctx context.Context, req CursorRequest) (*CursorResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, &dberr.TransportError{Op: "create cursor", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.query(req.Query, req.BindVars)
	if err != nil {
		return nil, queryFailed(err)
	}
	docs := make([]json.RawMessage, 0, len(rows))
	for _, r := range rows {
		if len(r) == 0 {
			continue
		}
		b, err := json.Marshal(nodeDocument(r[0]))
		if err != nil {
			return nil, fmt.Errorf("kuzu: encode result: %w", err)
		}
		docs = append(docs, b)
	}

	fullCount := len(docs)
	if req.Options != nil && req.Options.FullCount && req.Source != nil && req.Source.Window != nil {
		unbounded := req.Source.Clone()
		unbounded.Window = nil
		c, err := compile.Cypher{}.Compile(unbounded)
		if err != nil {
			return nil, err
		}
		all, err := s.query(c.Text, c.BindVars)
		if err != nil {
			return nil, queryFailed(err)
		}
		fullCount = len(all)
	}
	return s.cursors.start(req, docs, fullCount), nil
}

// ReadCursor returns the next batch of an open cursor.
func (s *KuzuStore) ReadCursor(ctx context.Context, id string) (*CursorResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, &dberr.TransportError{Op: "read cursor", Err: err}
	}
	return s.cursors.read(id)
}

// DeleteCursor releases an open cursor.
func (s *KuzuStore) DeleteCursor(_ context.Context, id string) error {
	return s.cursors.remove(id)
}

// Collection resolves a declared table and counts its rows.
func (s *KuzuStore) Collection(ctx context.Context, name string) (*CollectionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, &dberr.TransportError{Op: "collection", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	if !ok {
		return nil, collectionNotFound("collection", name)
	}
	info := &CollectionInfo{Name: name, Type: CollectionDocument}
	// Table name comes from the declared schema, not user input.
	cypher := fmt.Sprintf("MATCH (n:%s) RETURN count(n)", name)
	if t.Edge {
		info.Type = CollectionEdge
		cypher = fmt.Sprintf("MATCH ()-[r:%s]->() RETURN count(r)", name)
	}
	rows, err := s.query(cypher, nil)
	if err != nil {
		return nil, queryFailed(err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		info.Count = toInt(rows[0][0])
	}
	return info, nil
}

// ---------- Internal helpers ----------

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order. Callers hold s.mu.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

func queryFailed(err error) error {
	return &dberr.ServerError{Op: "create cursor", Code: 400, ErrorNum: ErrorNumQueryParse, Message: err.Error()}
}

// nodeDocument turns a returned node back into a document, renaming the
// stored system attributes and dropping null properties.
func nodeDocument(v any) any {
	n, ok := v.(kuzu.Node)
	if !ok {
		return v
	}
	doc := make(map[string]any, len(n.Properties))
	for k, p := range n.Properties {
		if p == nil || strings.HasPrefix(k, "_") {
			continue
		}
		switch k {
		case "doc_id", "doc_key", "doc_rev":
			k = strings.TrimPrefix(k, "doc")
		}
		doc[k] = p
	}
	return doc
}

// ---------- Type coercion helpers ----------
// Documents arrive JSON-decoded (numbers as float64); KuzuDB binds
// parameters by Go type, so values are converted to the declared column type.

func coerce(v any, typ string) any {
	switch typ {
	case "INT64", "INT32", "INT16", "INT8", "SERIAL":
		if f, ok := v.(float64); ok {
			return int64(f)
		}
	case "DOUBLE", "FLOAT":
		if f, ok := v.(float64); ok {
			return f
		}
	case "STRING":
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return v
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
