// Package record maps raw query results to typed entities. A Record names
// the collection its documents live in; DatabaseRecord pairs one with the
// system attributes the database assigned.
package record

import (
	"encoding/json"
	"fmt"

	"github.com/dusk-indust/docgraph/internal/query"
)

// Record is implemented by every entity type stored in a collection. The
// method must work on the zero value; it is called on one to resolve the
// collection of a type.
type Record interface {
	CollectionName() string
}

// Undefined accepts any document regardless of its collection.
type Undefined map[string]any

// CollectionName returns "", which disables the collection check.
func (Undefined) CollectionName() string { return "" }

// collectionOf resolves the collection name of T.
func collectionOf[T Record]() string {
	var zero T
	return zero.CollectionName()
}

// DatabaseRecord is a stored entity together with its system attributes.
type DatabaseRecord[T Record] struct {
	Key    string
	ID     string
	Rev    string
	Record T
}

// OutboundQuery starts a traversal from r following edges whose _from is r.
func (r DatabaseRecord[T]) OutboundQuery(min, max int, edgeCollection string) *query.Query {
	return query.Outbound(min, max, edgeCollection, r.ID)
}

// InboundQuery starts a traversal from r following edges whose _to is r.
func (r DatabaseRecord[T]) InboundQuery(min, max int, edgeCollection string) *query.Query {
	return query.Inbound(min, max, edgeCollection, r.ID)
}

var _ json.Marshaler = DatabaseRecord[Undefined]{}

// MarshalJSON renders the entity fields with the system attributes merged in.
func (r DatabaseRecord[T]) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(r.Record)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("record %s: entity is not an object", r.ID)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	doc["_key"], doc["_id"], doc["_rev"] = r.Key, r.ID, r.Rev
	return json.Marshal(doc)
}
