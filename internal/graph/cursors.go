package graph

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/dusk-indust/docgraph/internal/dberr"
)

// cursorRegistry holds the unread batches of in-process cursors. Results
// are materialized when the cursor is created and handed out batch by batch.
type cursorRegistry struct {
	mu   sync.Mutex
	open map[string]*pendingCursor
}

type pendingCursor struct {
	rest      []json.RawMessage
	batchSize int
	count     *int
	extra     *CursorExtra
}

func newCursorRegistry() *cursorRegistry {
	return &cursorRegistry{open: make(map[string]*pendingCursor)}
}

// start builds the first batch of docs and registers the remainder under a
// fresh id when it does not fit. fullCount is the pre-limit match count.
func (r *cursorRegistry) start(req CursorRequest, docs []json.RawMessage, fullCount int) *CursorResponse {
	size := req.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	p := &pendingCursor{rest: docs, batchSize: size}
	if req.Count {
		n := len(docs)
		p.count = &n
	}
	if req.Options != nil && req.Options.FullCount {
		fc := fullCount
		p.extra = &CursorExtra{Stats: CursorStats{FullCount: &fc}}
	}

	resp := p.next()
	if resp.HasMore {
		resp.ID = uuid.NewString()
		r.mu.Lock()
		r.open[resp.ID] = p
		r.mu.Unlock()
	}
	return resp
}

// read returns the next batch of cursor id and forgets the cursor once it
// is exhausted.
func (r *cursorRegistry) read(id string) (*CursorResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.open[id]
	if !ok {
		return nil, cursorNotFound("read cursor", id)
	}
	resp := p.next()
	resp.ID = id
	if !resp.HasMore {
		delete(r.open, id)
	}
	return resp, nil
}

func (r *cursorRegistry) remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.open[id]; !ok {
		return cursorNotFound("delete cursor", id)
	}
	delete(r.open, id)
	return nil
}

func (r *cursorRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.open)
}

func (r *cursorRegistry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.open)
}

func (p *pendingCursor) next() *CursorResponse {
	n := min(p.batchSize, len(p.rest))
	batch := p.rest[:n:n]
	p.rest = p.rest[n:]
	return &CursorResponse{
		Result:  batch,
		HasMore: len(p.rest) > 0,
		Count:   p.count,
		Extra:   p.extra,
	}
}

func cursorNotFound(op, id string) error {
	return &dberr.ServerError{
		Op:       op,
		Code:     404,
		ErrorNum: ErrorNumCursorNotFound,
		Message:  "cursor not found: " + id,
	}
}

func collectionNotFound(op, name string) error {
	return &dberr.ServerError{
		Op:       op,
		Code:     404,
		ErrorNum: ErrorNumCollectionNotFound,
		Message:  "collection or view not found: " + name,
	}
}
