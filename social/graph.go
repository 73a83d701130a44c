package social

import (
	"context"

	"virasocial/models"
	"virasocial/notify"
	"virasocial/store"
)

// Graph owns follow edges. An edge is membership of the target's id in
// the follower's `following` array; follower counts are always derived
// from that membership at read time, never stored as counters.
type Graph struct {
	store  store.Store
	fanout *notify.Fanout
}

func NewGraph(st store.Store, fanout *notify.Fanout) *Graph {
	return &Graph{store: st, fanout: fanout}
}

// Follow adds targetUserID to the acting user's following set.
// Set-union semantics: following someone twice is a no-op. A follow
// notification goes to the target unless the user follows themselves.
func (g *Graph) Follow(ctx context.Context, actingUserID, targetUserID string) error {
	if err := g.store.ArrayAdd(ctx, "users", actingUserID, "following", targetUserID); err != nil {
		return err
	}
	if actingUserID != targetUserID {
		g.fanout.Notify(ctx, models.Notification{
			RecipientID: targetUserID,
			SenderID:    actingUserID,
			Type:        models.NotificationFollow,
		})
	}
	return nil
}

// Unfollow removes targetUserID from the acting user's following set.
// No-op if absent, no notification.
func (g *Graph) Unfollow(ctx context.Context, actingUserID, targetUserID string) error {
	return g.store.ArrayRemove(ctx, "users", actingUserID, "following", targetUserID)
}

// IsFollowing reads a's following set and tests membership.
func (g *Graph) IsFollowing(ctx context.Context, a, b string) (bool, error) {
	doc, err := g.store.Get(ctx, "users", a)
	if err != nil {
		return false, err
	}
	var u models.User
	if err := store.Decode(doc, &u); err != nil {
		return false, err
	}
	return u.IsFollowing(b), nil
}

// FollowerCount counts users whose following array contains userID.
// This is a server-side cardinality query; no documents move.
func (g *Graph) FollowerCount(ctx context.Context, userID string) (int64, error) {
	return g.store.Count(ctx, "users", store.Query{
		Predicates: []store.Predicate{store.ArrayContains("following", userID)},
	})
}

// FollowingCount is the size of the user's own following array.
func (g *Graph) FollowingCount(ctx context.Context, userID string) (int64, error) {
	doc, err := g.store.Get(ctx, "users", userID)
	if err != nil {
		return 0, err
	}
	var u models.User
	if err := store.Decode(doc, &u); err != nil {
		return 0, err
	}
	return int64(len(u.Following)), nil
}

// Followers lists the users following userID.
func (g *Graph) Followers(ctx context.Context, userID string) ([]models.User, error) {
	docs, err := g.store.Query(ctx, "users", store.Query{
		Predicates: []store.Predicate{store.ArrayContains("following", userID)},
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(docs))
	for _, d := range docs {
		var u models.User
		if err := store.Decode(d, &u); err != nil {
			continue
		}
		u.PasswordHash = ""
		out = append(out, u)
	}
	return out, nil
}

// Following lists the users userID follows. Ids whose user document no
// longer exists are silently dropped.
func (g *Graph) Following(ctx context.Context, userID string) ([]models.User, error) {
	doc, err := g.store.Get(ctx, "users", userID)
	if err != nil {
		return nil, err
	}
	var me models.User
	if err := store.Decode(doc, &me); err != nil {
		return nil, err
	}

	out := make([]models.User, 0, len(me.Following))
	for _, id := range me.Following {
		d, err := g.store.Get(ctx, "users", id)
		if err != nil {
			continue
		}
		var u models.User
		if err := store.Decode(d, &u); err != nil || u.Username == "" {
			continue
		}
		u.PasswordHash = ""
		out = append(out, u)
	}
	return out, nil
}
