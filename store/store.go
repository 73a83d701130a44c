package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

// InArityCap is the maximum number of ids an IDIn predicate can test in
// a single query. Mirrors the backing store's "value in set" limit, so
// callers that hold more ids than this must truncate or issue several
// queries themselves.
const InArityCap = 10

var (
	// ErrNotFound means the referenced document does not exist.
	ErrNotFound = errors.New("store: document not found")
	// ErrWriteConflict means a non-atomic field update raced with a
	// concurrent writer.
	ErrWriteConflict = errors.New("store: write conflict")
	// ErrUnavailable is a transient backend failure.
	ErrUnavailable = errors.New("store: backend unavailable")
)

// Doc is a schemaless document plus its opaque id. Data always carries
// the id under "_id" as well, so Decode can fill struct id fields.
type Doc struct {
	ID   string
	Data bson.M
}

type Op int

const (
	OpEq Op = iota
	OpArrayContains
	OpIDIn
)

type Predicate struct {
	Field  string
	Op     Op
	Value  interface{}
	Values []string // OpIDIn only
}

// Eq matches documents whose field equals v.
func Eq(field string, v interface{}) Predicate {
	return Predicate{Field: field, Op: OpEq, Value: v}
}

// ArrayContains matches documents whose array field contains v.
func ArrayContains(field string, v interface{}) Predicate {
	return Predicate{Field: field, Op: OpArrayContains, Value: v}
}

// IDIn matches documents whose id is one of ids. Implementations reject
// more than InArityCap ids.
func IDIn(ids []string) Predicate {
	return Predicate{Op: OpIDIn, Values: ids}
}

type Order struct {
	Field string
	Desc  bool
}

type Query struct {
	Predicates []Predicate
	Sort       *Order
}

// Subscription is a live query. Snapshots delivers the full current
// result set once on subscribe and again after every relevant mutation.
// The caller owns the subscription and must Close it when no longer
// interested; an unclosed subscription leaks a listener.
type Subscription interface {
	Snapshots() <-chan []Doc
	Close()
}

// Store is the document-store adapter every core component is built
// against. Array mutations are atomic, commutative and idempotent at
// the store level; everything else is last-write-wins.
type Store interface {
	Get(ctx context.Context, collection, id string) (Doc, error)
	Put(ctx context.Context, collection, id string, fields bson.M) error
	Update(ctx context.Context, collection, id string, fields bson.M) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) ([]Doc, error)
	Count(ctx context.Context, collection string, q Query) (int64, error)
	ArrayAdd(ctx context.Context, collection, id, field string, value interface{}) error
	ArrayRemove(ctx context.Context, collection, id, field string, value interface{}) error
	Subscribe(ctx context.Context, collection string, q Query) (Subscription, error)

	// ServerTimestamp returns a monotonic-enough token usable as a
	// createdAt value and as a sort key.
	ServerTimestamp() int64
}

// Decode unmarshals a document into a tagged struct.
func Decode(d Doc, out interface{}) error {
	raw, err := bson.Marshal(d.Data)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, out)
}

// Encode turns a tagged struct into document fields.
func Encode(v interface{}) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
