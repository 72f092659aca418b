package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dusk-indust/docgraph/internal/dberr"
)

// Records is an immutable, typed query result.
type Records[T Record] struct {
	docs []DatabaseRecord[T]
}

// NewRecords decodes every document into T. Decoding is all-or-nothing:
// the first document that is not an object, lacks a _key, belongs to
// another collection or does not fit T fails the whole result with a
// DeserializationError.
func NewRecords[T Record](raws []json.RawMessage) (*Records[T], error) {
	coll := collectionOf[T]()
	docs := make([]DatabaseRecord[T], 0, len(raws))
	for i, raw := range raws {
		rec, err := decode[T](coll, raw)
		if err != nil {
			return nil, &dberr.DeserializationError{Collection: displayName(coll), Index: i, Err: err}
		}
		docs = append(docs, rec)
	}
	return &Records[T]{docs: docs}, nil
}

// GetRecords converts an untyped result, silently dropping documents that
// do not decode into T.
func GetRecords[T Record](j *JSON) *Records[T] {
	coll := collectionOf[T]()
	docs := make([]DatabaseRecord[T], 0, j.Len())
	for _, raw := range j.docs {
		if rec, err := decode[T](coll, raw); err == nil {
			docs = append(docs, rec)
		}
	}
	return &Records[T]{docs: docs}
}

// Uniq returns the single record, or a NotFoundError naming the collection
// when there are none or several.
func (r *Records[T]) Uniq() (DatabaseRecord[T], error) {
	if len(r.docs) != 1 {
		var zero DatabaseRecord[T]
		return zero, &dberr.NotFoundError{Item: displayName(collectionOf[T]()), Count: len(r.docs)}
	}
	return r.docs[0], nil
}

// First returns the first record; ok is false when empty.
func (r *Records[T]) First() (rec DatabaseRecord[T], ok bool) {
	if len(r.docs) == 0 {
		return rec, false
	}
	return r.docs[0], true
}

// Last returns the last record; ok is false when empty.
func (r *Records[T]) Last() (rec DatabaseRecord[T], ok bool) {
	if len(r.docs) == 0 {
		return rec, false
	}
	return r.docs[len(r.docs)-1], true
}

func (r *Records[T]) Len() int      { return len(r.docs) }
func (r *Records[T]) IsEmpty() bool { return len(r.docs) == 0 }

// All returns a copy of the records in result order.
func (r *Records[T]) All() []DatabaseRecord[T] {
	return append([]DatabaseRecord[T](nil), r.docs...)
}

// IDs returns the document handles in result order.
func (r *Records[T]) IDs() []string {
	out := make([]string, len(r.docs))
	for i, d := range r.docs {
		out[i] = d.ID
	}
	return out
}

// JSON is an immutable, untyped query result.
type JSON struct {
	docs []json.RawMessage
}

// NewJSON wraps raw documents.
func NewJSON(raws []json.RawMessage) *JSON {
	return &JSON{docs: append([]json.RawMessage(nil), raws...)}
}

// Docs returns a copy of the raw documents.
func (j *JSON) Docs() []json.RawMessage {
	return append([]json.RawMessage(nil), j.docs...)
}

// Uniq returns the single document or a NotFoundError.
func (j *JSON) Uniq() (json.RawMessage, error) {
	if len(j.docs) != 1 {
		return nil, &dberr.NotFoundError{Item: "document", Count: len(j.docs)}
	}
	return j.docs[0], nil
}

func (j *JSON) First() (json.RawMessage, bool) {
	if len(j.docs) == 0 {
		return nil, false
	}
	return j.docs[0], true
}

func (j *JSON) Last() (json.RawMessage, bool) {
	if len(j.docs) == 0 {
		return nil, false
	}
	return j.docs[len(j.docs)-1], true
}

func (j *JSON) Len() int      { return len(j.docs) }
func (j *JSON) IsEmpty() bool { return len(j.docs) == 0 }

// decode maps one raw document to a DatabaseRecord. coll is the expected
// collection; empty accepts any.
func decode[T Record](coll string, raw json.RawMessage) (DatabaseRecord[T], error) {
	var rec DatabaseRecord[T]
	var sys struct {
		Key *string `json:"_key"`
		ID  *string `json:"_id"`
		Rev *string `json:"_rev"`
	}
	if !isObject(raw) {
		return rec, errors.New("document is not an object")
	}
	if err := json.Unmarshal(raw, &sys); err != nil {
		return rec, fmt.Errorf("system attributes: %w", err)
	}
	if sys.Key == nil || *sys.Key == "" {
		return rec, errors.New("document has no _key")
	}
	rec.Key = *sys.Key
	if sys.ID != nil {
		rec.ID = *sys.ID
	}
	if sys.Rev != nil {
		rec.Rev = *sys.Rev
	}
	if coll != "" {
		if got, _, _ := strings.Cut(rec.ID, "/"); got != coll {
			return rec, fmt.Errorf("document %q belongs to collection %q", rec.ID, got)
		}
	}
	if err := json.Unmarshal(raw, &rec.Record); err != nil {
		return rec, err
	}
	return rec, nil
}

func isObject(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return strings.HasPrefix(s, "{")
}

func displayName(coll string) string {
	if coll == "" {
		return "document"
	}
	return coll
}
