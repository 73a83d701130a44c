package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"virasocial/store"
)

// Mongostore implements the document-store adapter on top of MongoDB.
// Array toggles map to $addToSet/$pull so concurrent like/save/follow
// writers never lose updates; everything else is last-write-wins.
type Mongostore struct {
	db *mongo.Database
}

func New(db *mongo.Database) *Mongostore {
	return &Mongostore{db: db}
}

func (s *Mongostore) Get(ctx context.Context, collection, id string) (store.Doc, error) {
	var data bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&data)
	if err == mongo.ErrNoDocuments {
		return store.Doc{}, store.ErrNotFound
	}
	if err != nil {
		return store.Doc{}, wrap(err)
	}
	return store.Doc{ID: id, Data: data}, nil
}

func (s *Mongostore) Put(ctx context.Context, collection, id string, fields bson.M) error {
	data := bson.M{}
	for k, v := range fields {
		data[k] = v
	}
	data["_id"] = id

	_, err := s.db.Collection(collection).ReplaceOne(
		ctx,
		bson.M{"_id": id},
		data,
		options.Replace().SetUpsert(true),
	)
	return wrap(err)
}

func (s *Mongostore) Update(ctx context.Context, collection, id string, fields bson.M) error {
	res, err := s.db.Collection(collection).UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": fields},
	)
	if err != nil {
		return wrap(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Mongostore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	return wrap(err)
}

func (s *Mongostore) Query(ctx context.Context, collection string, q store.Query) ([]store.Doc, error) {
	filter, err := buildFilter(q)
	if err != nil {
		return nil, err
	}

	opts := options.Find()
	if q.Sort != nil {
		dir := 1
		if q.Sort.Desc {
			dir = -1
		}
		// Secondary _id sort keeps ties stable across fetches.
		opts.SetSort(bson.D{{Key: q.Sort.Field, Value: dir}, {Key: "_id", Value: 1}})
	}

	cursor, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, wrap(err)
	}
	defer cursor.Close(ctx)

	var out []store.Doc
	for cursor.Next(ctx) {
		var data bson.M
		if err := cursor.Decode(&data); err != nil {
			return nil, wrap(err)
		}
		id, _ := data["_id"].(string)
		out = append(out, store.Doc{ID: id, Data: data})
	}
	return out, wrap(cursor.Err())
}

func (s *Mongostore) Count(ctx context.Context, collection string, q store.Query) (int64, error) {
	filter, err := buildFilter(q)
	if err != nil {
		return 0, err
	}
	n, err := s.db.Collection(collection).CountDocuments(ctx, filter)
	return n, wrap(err)
}

func (s *Mongostore) ArrayAdd(ctx context.Context, collection, id, field string, value interface{}) error {
	res, err := s.db.Collection(collection).UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$addToSet": bson.M{field: value}},
	)
	if err != nil {
		return wrap(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Mongostore) ArrayRemove(ctx context.Context, collection, id, field string, value interface{}) error {
	res, err := s.db.Collection(collection).UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$pull": bson.M{field: value}},
	)
	if err != nil {
		return wrap(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Subscribe opens a change stream on the collection and re-runs the
// query after every change, delivering full snapshots. Requires the
// deployment to be a replica set, which managed MongoDB always is.
func (s *Mongostore) Subscribe(ctx context.Context, collection string, q store.Query) (store.Subscription, error) {
	cs, err := s.db.Collection(collection).Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, wrap(err)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		ch:     make(chan []store.Doc, 16),
		cancel: cancel,
	}

	go func() {
		defer close(sub.ch)
		defer cs.Close(context.Background())

		push := func() bool {
			snap, err := s.Query(streamCtx, collection, q)
			if err != nil {
				if streamCtx.Err() == nil {
					log.Printf("[mongostore] subscription query failed: %v", err)
				}
				return false
			}
			select {
			case sub.ch <- snap:
				return true
			case <-streamCtx.Done():
				return false
			}
		}

		if !push() {
			return
		}
		for cs.Next(streamCtx) {
			if !push() {
				return
			}
		}
	}()

	return sub, nil
}

// ServerTimestamp approximates the store-assigned clock. Documents
// written through this adapter order correctly as long as writers'
// clocks are sane, which matches the reference backend's
// monotonic-enough contract.
func (s *Mongostore) ServerTimestamp() int64 {
	return time.Now().UnixMilli()
}

type subscription struct {
	ch     chan []store.Doc
	cancel context.CancelFunc
	once   sync.Once
}

func (s *subscription) Snapshots() <-chan []store.Doc { return s.ch }

func (s *subscription) Close() {
	s.once.Do(s.cancel)
}

func buildFilter(q store.Query) (bson.M, error) {
	filter := bson.M{}
	for _, p := range q.Predicates {
		switch p.Op {
		case store.OpEq:
			filter[p.Field] = p.Value
		case store.OpArrayContains:
			filter[p.Field] = p.Value // array fields match on membership
		case store.OpIDIn:
			if len(p.Values) > store.InArityCap {
				return nil, fmt.Errorf("store: in predicate with %d values exceeds arity cap %d", len(p.Values), store.InArityCap)
			}
			filter["_id"] = bson.M{"$in": p.Values}
		}
	}
	return filter, nil
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		return fmt.Errorf("%w: %v", store.ErrWriteConflict, err)
	}
	return err
}
