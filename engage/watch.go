package engage

import (
	"context"

	"virasocial/models"
	"virasocial/store"
)

// CommentStream is a live view of one post's comment thread. Every
// server-side change delivers a fresh full snapshot, oldest comment
// first. The caller owns the stream and must Close it when the thread
// is no longer on screen; an unclosed stream leaks a store listener.
type CommentStream struct {
	sub store.Subscription
	ch  chan []models.Comment
}

// WatchComments subscribes to the post's comment thread. Re-subscribing
// replays the current full set, so the stream is restartable.
func (e *Engine) WatchComments(ctx context.Context, postID string) (*CommentStream, error) {
	sub, err := e.store.Subscribe(ctx, "comments", store.Query{
		Predicates: []store.Predicate{store.Eq("postId", postID)},
		Sort:       &store.Order{Field: "createdAt", Desc: false},
	})
	if err != nil {
		return nil, err
	}

	cs := &CommentStream{
		sub: sub,
		ch:  make(chan []models.Comment, 16),
	}
	go cs.pump()
	return cs, nil
}

func (cs *CommentStream) pump() {
	defer close(cs.ch)
	for docs := range cs.sub.Snapshots() {
		snap := make([]models.Comment, 0, len(docs))
		for _, d := range docs {
			var c models.Comment
			if err := store.Decode(d, &c); err != nil {
				continue
			}
			snap = append(snap, c)
		}
		cs.ch <- snap
	}
}

// Snapshots delivers the full thread on subscribe and after each
// change. The channel closes after Close.
func (cs *CommentStream) Snapshots() <-chan []models.Comment { return cs.ch }

// Close cancels the underlying store subscription.
func (cs *CommentStream) Close() { cs.sub.Close() }
