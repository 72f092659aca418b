// Package exec runs compiled queries against a graph.Database, either in a
// single round trip or through a lazily paginated Cursor.
package exec

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/docgraph/internal/compile"
	"github.com/dusk-indust/docgraph/internal/dberr"
	"github.com/dusk-indust/docgraph/internal/graph"
	"github.com/dusk-indust/docgraph/internal/metrics"
	"github.com/dusk-indust/docgraph/internal/query"
)

// Execution modes, used as metric labels and in logs.
const (
	ModeImmediate = "immediate"
	ModeBatched   = "batched"
	ModeExists    = "exists"
)

// DefaultBatchSize is the page size of Batched when none is given.
const DefaultBatchSize = 100

// Dispatcher compiles queries with the database's dialect and executes
// them. It holds no per-query state and is safe for concurrent use.
type Dispatcher struct {
	db             graph.Database
	logger         *slog.Logger
	batchSize      int
	immediateBatch int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for query tracing.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithBatchSize sets the page size Batched uses when called with n <= 0.
func WithBatchSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

// WithImmediateBatchSize sets the batch size requested by Immediate. Zero
// leaves it to the server.
func WithImmediateBatchSize(n int) Option {
	return func(d *Dispatcher) {
		d.immediateBatch = max(n, 0)
	}
}

// New creates a Dispatcher over db.
func New(db graph.Database, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		db:        db,
		logger:    slog.Default(),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Database returns the database the dispatcher runs against.
func (d *Dispatcher) Database() graph.Database { return d.db }

// Compile compiles q with the database's dialect without executing it.
func (d *Dispatcher) Compile(q *query.Query) (*compile.Compiled, error) {
	return d.db.Dialect().Compile(q)
}

// Immediate executes q and returns every resulting document. If the server
// splits the result anyway, the remaining batches are fetched before
// returning and the cursor is released on failure.
func (d *Dispatcher) Immediate(ctx context.Context, q *query.Query) ([]json.RawMessage, error) {
	c, err := d.compile(ModeImmediate, q, d.immediateBatch)
	if err != nil {
		return nil, err
	}
	resp, err := d.open(ctx, ModeImmediate, c, graph.CursorRequest{BatchSize: d.immediateBatch})
	if err != nil {
		return nil, err
	}

	cur := newCursor(d.db, d.logger, resp)
	defer cur.Close()
	var docs []json.RawMessage
	for {
		batch, err := cur.NextBatch(ctx)
		if err != nil {
			return nil, err
		}
		docs = append(docs, batch...)
		if !cur.HasMore() {
			return docs, nil
		}
	}
}

// Batched opens a cursor over q returning batchSize documents per round
// trip; n <= 0 uses the configured default. The first batch is fetched
// before returning. The caller owns the cursor and must Close it unless it
// is drained.
func (d *Dispatcher) Batched(ctx context.Context, q *query.Query, batchSize int) (*Cursor, error) {
	if batchSize <= 0 {
		batchSize = d.batchSize
	}
	c, err := d.compile(ModeBatched, q, batchSize)
	if err != nil {
		return nil, err
	}
	resp, err := d.open(ctx, ModeBatched, c, graph.CursorRequest{
		BatchSize: batchSize,
		Count:     true,
		Options:   &graph.CursorOptions{FullCount: true},
	})
	if err != nil {
		return nil, err
	}
	return newCursor(d.db, d.logger, resp), nil
}

// Exists reports whether q matches at least one document. Only one
// document is transferred.
func (d *Dispatcher) Exists(ctx context.Context, q *query.Query) (bool, error) {
	c, err := d.compile(ModeExists, q, 1)
	if err != nil {
		return false, err
	}
	resp, err := d.open(ctx, ModeExists, c, graph.CursorRequest{BatchSize: 1, Count: true})
	if err != nil {
		return false, err
	}
	newCursor(d.db, d.logger, resp).Close()

	if resp.Count != nil {
		return *resp.Count > 0, nil
	}
	return len(resp.Result) > 0, nil
}

// Each runs q as a batched cursor and calls fn for every document. The
// cursor is released whether fn fails, ctx ends or the results run out.
func (d *Dispatcher) Each(ctx context.Context, q *query.Query, batchSize int, fn func(json.RawMessage) error) error {
	cur, err := d.Batched(ctx, q, batchSize)
	if err != nil {
		return err
	}
	for doc, err := range cur.Docs(ctx) {
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

// All runs independent queries concurrently with Immediate. Results keep
// the order of qs; the first failure cancels the others.
func (d *Dispatcher) All(ctx context.Context, qs ...*query.Query) ([][]json.RawMessage, error) {
	results := make([][]json.RawMessage, len(qs))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range qs {
		g.Go(func() error {
			docs, err := d.Immediate(gctx, q)
			if err != nil {
				return err
			}
			results[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (d *Dispatcher) compile(mode string, q *query.Query, batchSize int) (*compile.Compiled, error) {
	c, err := d.db.Dialect().Compile(q)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues(mode, d.db.Dialect().Name(), status(err)).Inc()
		return nil, err
	}
	d.logger.Debug("compiled query",
		"mode", mode, "dialect", c.Dialect, "batch_size", batchSize,
		"query", c.Text, "bind_vars", len(c.BindVars))
	return c, nil
}

// open sends the cursor creation request built from req and c.
func (d *Dispatcher) open(ctx context.Context, mode string, c *compile.Compiled, req graph.CursorRequest) (*graph.CursorResponse, error) {
	req.Query = c.Text
	req.BindVars = c.BindVars
	req.Source = c.Source

	start := time.Now()
	resp, err := d.db.Cursor(ctx, req)
	metrics.QueryDuration.WithLabelValues(mode, c.Dialect).Observe(time.Since(start).Seconds())
	metrics.QueriesTotal.WithLabelValues(mode, c.Dialect, status(err)).Inc()
	if err != nil {
		d.logger.Debug("query failed", "mode", mode, "error", err)
		return nil, err
	}
	return resp, nil
}

// status maps an error to its metric label.
func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, dberr.ErrMalformedQuery):
		return "malformed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, dberr.ErrTransport):
		return "transport"
	case errors.Is(err, dberr.ErrServer):
		return "server"
	default:
		return "error"
	}
}
