package record

import (
	"context"

	"github.com/dusk-indust/docgraph/internal/dberr"
	"github.com/dusk-indust/docgraph/internal/exec"
	"github.com/dusk-indust/docgraph/internal/graph"
	"github.com/dusk-indust/docgraph/internal/query"
)

// Query starts a query over the collection of T.
func Query[T Record]() *query.Query {
	return query.New(collectionOf[T]())
}

// Get runs q in one round trip and decodes the result into T.
func Get[T Record](ctx context.Context, d *exec.Dispatcher, q *query.Query) (*Records[T], error) {
	docs, err := d.Immediate(ctx, q)
	if err != nil {
		return nil, err
	}
	return NewRecords[T](docs)
}

// GetJSON runs q in one round trip and returns the untyped result.
func GetJSON(ctx context.Context, d *exec.Dispatcher, q *query.Query) (*JSON, error) {
	docs, err := d.Immediate(ctx, q)
	if err != nil {
		return nil, err
	}
	return &JSON{docs: docs}, nil
}

// Find returns the document of T's collection with the given key.
func Find[T Record](ctx context.Context, d *exec.Dispatcher, key string) (DatabaseRecord[T], error) {
	var zero DatabaseRecord[T]
	coll := collectionOf[T]()
	if coll == "" {
		return zero, dberr.Malformed("find %q: record type has no collection", key)
	}
	recs, err := Get[T](ctx, d, Query[T]().Filter(query.Field("_key").Eq(key)))
	if err != nil {
		return zero, err
	}
	rec, err := recs.Uniq()
	if err != nil {
		return zero, &dberr.NotFoundError{Item: coll + "/" + key, Count: recs.Len()}
	}
	return rec, nil
}

// Exists reports whether q matches at least one document.
func Exists(ctx context.Context, d *exec.Dispatcher, q *query.Query) (bool, error) {
	return d.Exists(ctx, q)
}

// Count returns the number of documents in T's collection.
func Count[T Record](ctx context.Context, db graph.Database) (int, error) {
	coll := collectionOf[T]()
	if coll == "" {
		return 0, dberr.Malformed("count: record type has no collection")
	}
	info, err := db.Collection(ctx, coll)
	if err != nil {
		return 0, err
	}
	return info.Count, nil
}

// Cursor yields typed batches of a server-side cursor.
type Cursor[T Record] struct {
	cur *exec.Cursor
}

// GetInBatches opens a cursor over q delivering batchSize documents per
// batch.
func GetInBatches[T Record](ctx context.Context, d *exec.Dispatcher, q *query.Query, batchSize int) (*Cursor[T], error) {
	cur, err := d.Batched(ctx, q, batchSize)
	if err != nil {
		return nil, err
	}
	return &Cursor[T]{cur: cur}, nil
}

// NextBatch decodes the next batch. ok is false once the cursor is
// exhausted, at which point it has been released. A batch that fails to
// decode is returned as an error; the cursor stays usable.
func (c *Cursor[T]) NextBatch(ctx context.Context) (recs *Records[T], ok bool, err error) {
	if !c.cur.HasMore() {
		c.cur.Close()
		return nil, false, nil
	}
	raws, err := c.cur.NextBatch(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(raws) == 0 {
		c.cur.Close()
		return nil, false, nil
	}
	recs, err = NewRecords[T](raws)
	if err != nil {
		return nil, false, err
	}
	return recs, true, nil
}

// Each decodes documents one at a time and calls fn for each; the cursor
// is closed when Each returns.
func (c *Cursor[T]) Each(ctx context.Context, fn func(DatabaseRecord[T]) error) error {
	coll := collectionOf[T]()
	i := 0
	for raw, err := range c.cur.Docs(ctx) {
		if err != nil {
			return err
		}
		rec, err := decode[T](coll, raw)
		if err != nil {
			return &dberr.DeserializationError{Collection: displayName(coll), Index: i, Err: err}
		}
		if err := fn(rec); err != nil {
			return err
		}
		i++
	}
	return nil
}

// Close releases the underlying cursor.
func (c *Cursor[T]) Close() error { return c.cur.Close() }

func (c *Cursor[T]) Count() (int, bool)     { return c.cur.Count() }
func (c *Cursor[T]) FullCount() (int, bool) { return c.cur.FullCount() }
func (c *Cursor[T]) HasMore() bool          { return c.cur.HasMore() }

// Raw exposes the untyped cursor.
func (c *Cursor[T]) Raw() *exec.Cursor { return c.cur }
