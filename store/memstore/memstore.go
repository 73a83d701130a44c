package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"virasocial/store"
)

// Memstore is an in-memory Store used by tests and local development.
// It keeps the same document shape (bson.M) and the same atomic
// array-add/array-remove semantics as the Mongo-backed store.
type Memstore struct {
	mu     sync.Mutex
	colls  map[string]map[string]bson.M
	subs   map[string][]*subscription
	lastTS int64
}

func New() *Memstore {
	return &Memstore{
		colls: make(map[string]map[string]bson.M),
		subs:  make(map[string][]*subscription),
	}
}

func (m *Memstore) coll(name string) map[string]bson.M {
	c, ok := m.colls[name]
	if !ok {
		c = make(map[string]bson.M)
		m.colls[name] = c
	}
	return c
}

func (m *Memstore) Get(ctx context.Context, collection, id string) (store.Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.coll(collection)[id]
	if !ok {
		return store.Doc{}, store.ErrNotFound
	}
	return store.Doc{ID: id, Data: cloneMap(data)}, nil
}

func (m *Memstore) Put(ctx context.Context, collection, id string, fields bson.M) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data := cloneMap(fields)
	data["_id"] = id
	m.coll(collection)[id] = data
	m.notifyLocked(collection)
	return nil
}

func (m *Memstore) Update(ctx context.Context, collection, id string, fields bson.M) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.coll(collection)[id]
	if !ok {
		return store.ErrNotFound
	}
	for k, v := range fields {
		if k == "_id" {
			continue
		}
		data[k] = cloneValue(v)
	}
	m.notifyLocked(collection)
	return nil
}

func (m *Memstore) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.coll(collection), id)
	m.notifyLocked(collection)
	return nil
}

func (m *Memstore) Query(ctx context.Context, collection string, q store.Query) ([]store.Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queryLocked(collection, q)
}

func (m *Memstore) Count(ctx context.Context, collection string, q store.Query) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs, err := m.queryLocked(collection, q)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

func (m *Memstore) ArrayAdd(ctx context.Context, collection, id, field string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.coll(collection)[id]
	if !ok {
		return store.ErrNotFound
	}
	arr := toSlice(data[field])
	for _, v := range arr {
		if valuesEqual(v, value) {
			return nil // already present, idempotent
		}
	}
	data[field] = append(arr, value)
	m.notifyLocked(collection)
	return nil
}

func (m *Memstore) ArrayRemove(ctx context.Context, collection, id, field string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.coll(collection)[id]
	if !ok {
		return store.ErrNotFound
	}
	arr := toSlice(data[field])
	out := arr[:0]
	removed := false
	for _, v := range arr {
		if valuesEqual(v, value) {
			removed = true
			continue
		}
		out = append(out, v)
	}
	if !removed {
		return nil
	}
	data[field] = out
	m.notifyLocked(collection)
	return nil
}

func (m *Memstore) Subscribe(ctx context.Context, collection string, q store.Query) (store.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &subscription{
		st:   m,
		coll: collection,
		q:    q,
		ch:   make(chan []store.Doc, 16),
	}
	m.subs[collection] = append(m.subs[collection], s)

	snap, err := m.queryLocked(collection, q)
	if err != nil {
		return nil, err
	}
	s.ch <- snap
	return s, nil
}

// ServerTimestamp is strictly monotonic so that documents created in
// quick succession still order deterministically.
func (m *Memstore) ServerTimestamp() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := time.Now().UnixMilli()
	if ts <= m.lastTS {
		ts = m.lastTS + 1
	}
	m.lastTS = ts
	return ts
}

func (m *Memstore) queryLocked(collection string, q store.Query) ([]store.Doc, error) {
	for _, p := range q.Predicates {
		if p.Op == store.OpIDIn && len(p.Values) > store.InArityCap {
			return nil, fmt.Errorf("store: in predicate with %d values exceeds arity cap %d", len(p.Values), store.InArityCap)
		}
	}

	var out []store.Doc
	for id, data := range m.coll(collection) {
		if matchesAll(id, data, q.Predicates) {
			out = append(out, store.Doc{ID: id, Data: cloneMap(data)})
		}
	}
	sortDocs(out, q.Sort)
	return out, nil
}

func (m *Memstore) notifyLocked(collection string) {
	for _, s := range m.subs[collection] {
		snap, err := m.queryLocked(collection, s.q)
		if err != nil {
			continue
		}
		select {
		case s.ch <- snap:
		default:
			// Buffer full: drop the stalest snapshot, keep the newest.
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- snap:
			default:
			}
		}
	}
}

func (m *Memstore) removeSub(s *subscription) {
	subs := m.subs[s.coll]
	for i, cur := range subs {
		if cur == s {
			m.subs[s.coll] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

type subscription struct {
	st   *Memstore
	coll string
	q    store.Query
	ch   chan []store.Doc
	once sync.Once
}

func (s *subscription) Snapshots() <-chan []store.Doc { return s.ch }

func (s *subscription) Close() {
	s.once.Do(func() {
		s.st.mu.Lock()
		s.st.removeSub(s)
		close(s.ch)
		s.st.mu.Unlock()
	})
}

func matchesAll(id string, data bson.M, preds []store.Predicate) bool {
	for _, p := range preds {
		if !matches(id, data, p) {
			return false
		}
	}
	return true
}

func matches(id string, data bson.M, p store.Predicate) bool {
	switch p.Op {
	case store.OpEq:
		return valuesEqual(data[p.Field], p.Value)
	case store.OpArrayContains:
		for _, v := range toSlice(data[p.Field]) {
			if valuesEqual(v, p.Value) {
				return true
			}
		}
		return false
	case store.OpIDIn:
		for _, want := range p.Values {
			if id == want {
				return true
			}
		}
		return false
	}
	return false
}

func sortDocs(docs []store.Doc, order *store.Order) {
	if order == nil {
		sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i].Data[order.Field], docs[j].Data[order.Field]
		if c := compareValues(a, b); c != 0 {
			if order.Desc {
				return c > 0
			}
			return c < 0
		}
		// Tie: stable store-assigned id order.
		return docs[i].ID < docs[j].ID
	})
}

func compareValues(a, b interface{}) int {
	na, aok := toInt64(a)
	nb, bok := toInt64(b)
	if aok && bok {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	}
	sa, _ := a.(string)
	sb, _ := b.(string)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

func valuesEqual(a, b interface{}) bool {
	if na, ok := toInt64(a); ok {
		if nb, ok2 := toInt64(b); ok2 {
			return na == nb
		}
		return false
	}
	return a == b
}

func toInt64(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return int64(t), true
	default:
		return 0, false
	}
}

func toSlice(v interface{}) []interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case bson.A:
		return []interface{}(t)
	case []interface{}:
		return t
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return nil
	}
}

func cloneMap(in bson.M) bson.M {
	out := make(bson.M, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		return cloneMap(t)
	case map[string]interface{}:
		return cloneMap(bson.M(t))
	case bson.A:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return v
	}
}
