package exec

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"time"

	"github.com/dusk-indust/docgraph/internal/dberr"
	"github.com/dusk-indust/docgraph/internal/graph"
	"github.com/dusk-indust/docgraph/internal/metrics"
)

// closeTimeout bounds the best-effort DELETE issued when a cursor is
// released early.
const closeTimeout = 5 * time.Second

// Cursor iterates the documents of a server-side cursor, fetching the next
// batch only when the buffered one is used up. It is the single owner of
// the server cursor and is not safe for concurrent use.
type Cursor struct {
	db      graph.Database
	logger  *slog.Logger
	id      string
	buf     []json.RawMessage
	hasMore bool
	closed  bool

	count     *int
	fullCount *int
	batches   int
}

func newCursor(db graph.Database, logger *slog.Logger, resp *graph.CursorResponse) *Cursor {
	c := &Cursor{
		db:      db,
		logger:  logger,
		id:      resp.ID,
		buf:     resp.Result,
		hasMore: resp.HasMore,
		count:   resp.Count,
		batches: 1,
	}
	if fc, ok := resp.FullCount(); ok {
		c.fullCount = &fc
	}
	if c.held() {
		metrics.OpenCursors.Inc()
	}
	return c
}

// held reports whether a server-side cursor still exists for c.
func (c *Cursor) held() bool { return c.hasMore && c.id != "" && !c.closed }

// Next returns the next document. ok is false once the results are
// exhausted. A fetch error is returned as is; documents yielded before it
// stay valid. If ctx is done the server cursor is released.
func (c *Cursor) Next(ctx context.Context) (doc json.RawMessage, ok bool, err error) {
	if err := c.fill(ctx); err != nil {
		return nil, false, err
	}
	if len(c.buf) == 0 {
		return nil, false, nil
	}
	doc, c.buf = c.buf[0], c.buf[1:]
	return doc, true, nil
}

// NextBatch returns the rest of the buffered batch, fetching a new one
// when the buffer is empty. It returns an empty batch once the results are
// exhausted.
func (c *Cursor) NextBatch(ctx context.Context) ([]json.RawMessage, error) {
	if err := c.fill(ctx); err != nil {
		return nil, err
	}
	batch := c.buf
	c.buf = nil
	return batch, nil
}

// fill fetches batches until the buffer holds a document or the server
// has nothing more.
func (c *Cursor) fill(ctx context.Context) error {
	for len(c.buf) == 0 && c.hasMore && !c.closed {
		if err := ctx.Err(); err != nil {
			c.release(context.WithoutCancel(ctx), "cancelled")
			return err
		}
		resp, err := c.db.ReadCursor(ctx, c.id)
		if err != nil {
			if ctx.Err() != nil {
				c.release(context.WithoutCancel(ctx), "cancelled")
			}
			return err
		}
		metrics.CursorBatches.Inc()
		c.batches++
		if len(resp.Result) == 0 && resp.HasMore {
			// Reading again would spin forever.
			c.release(context.WithoutCancel(ctx), "error")
			return &dberr.ServerError{Op: "read cursor", Code: 500, Message: "empty batch with hasMore set"}
		}
		c.buf = resp.Result
		if resp.Count != nil {
			c.count = resp.Count
		}
		if !resp.HasMore {
			// The server drops exhausted cursors on its own.
			c.hasMore = false
			metrics.OpenCursors.Dec()
			metrics.CursorCloses.WithLabelValues("exhausted").Inc()
		}
	}
	return nil
}

// Docs returns an iterator over the remaining documents. Breaking out of
// the loop, an error or exhaustion closes the cursor.
func (c *Cursor) Docs(ctx context.Context) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		defer c.Close()
		for {
			doc, ok, err := c.Next(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			if !ok || !yield(doc, nil) {
				return
			}
		}
	}
}

// Close drops the buffer and releases the server cursor if one is still
// held. Release failures are logged and otherwise ignored. Close is
// idempotent.
func (c *Cursor) Close() error {
	c.release(context.Background(), "closed")
	return nil
}

func (c *Cursor) release(ctx context.Context, reason string) {
	if c.closed {
		return
	}
	held := c.held()
	c.closed = true
	c.buf = nil
	if !held {
		return
	}
	c.hasMore = false
	metrics.OpenCursors.Dec()
	metrics.CursorCloses.WithLabelValues(reason).Inc()

	ctx, cancel := context.WithTimeout(ctx, closeTimeout)
	defer cancel()
	if err := c.db.DeleteCursor(ctx, c.id); err != nil {
		c.logger.Warn("release cursor", "id", c.id, "reason", reason, "error", err)
	}
}

// ID returns the server cursor id, empty when the result fit one batch.
func (c *Cursor) ID() string { return c.id }

// HasMore reports whether documents remain, buffered or on the server.
func (c *Cursor) HasMore() bool { return len(c.buf) > 0 || (c.hasMore && !c.closed) }

// Count returns the total number of results if the server reported it.
func (c *Cursor) Count() (int, bool) {
	if c.count == nil {
		return 0, false
	}
	return *c.count, true
}

// FullCount returns the number of matches before the query's LIMIT if the
// server reported it.
func (c *Cursor) FullCount() (int, bool) {
	if c.fullCount == nil {
		return 0, false
	}
	return *c.fullCount, true
}

// Batches returns how many batches have been received, the first included.
func (c *Cursor) Batches() int { return c.batches }
