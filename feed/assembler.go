package feed

import (
	"context"
	"errors"
	"log"

	"virasocial/models"
	"virasocial/store"
)

// Type filter values accepted by ApplyTypeFilter.
const (
	FilterAll    = "all"
	FilterSocial = models.PostTypeSocial
	FilterJob    = models.PostTypeJob
)

// Assembler computes per-viewer feeds from posts, the follow graph and
// live author snapshots.
type Assembler struct {
	store store.Store
}

func NewAssembler(st store.Store) *Assembler {
	return &Assembler{store: st}
}

// BuildHomeFeed returns the posts visible to viewerID, newest first:
// posts authored by the viewer or by anyone the viewer follows, each
// with the author's current profile joined in.
//
// All posts are fetched and filtered here rather than pushing an
// "author in set" predicate to the store: the store's set-membership
// operator is capped at InArityCap values, so for anyone following
// more than that the full scan is the only generally correct strategy.
// O(totalPosts) accepted for correctness; pagination or a fan-out
// timeline is a future extension.
func (a *Assembler) BuildHomeFeed(ctx context.Context, viewerID string) ([]models.Post, error) {
	doc, err := a.store.Get(ctx, "users", viewerID)
	if err != nil {
		return nil, err
	}
	var viewer models.User
	if err := store.Decode(doc, &viewer); err != nil {
		return nil, err
	}

	visible := make(map[string]bool, len(viewer.Following)+1)
	for _, id := range viewer.Following {
		visible[id] = true
	}
	visible[viewerID] = true

	docs, err := a.store.Query(ctx, "posts", store.Query{
		Sort: &store.Order{Field: "createdAt", Desc: true},
	})
	if err != nil {
		return nil, err
	}

	authors := make(map[string]*models.User)
	out := make([]models.Post, 0, len(docs))
	for _, d := range docs {
		var p models.Post
		if err := store.Decode(d, &p); err != nil {
			log.Printf("[feed] skipping malformed post %s: %v", d.ID, err)
			continue
		}
		if p.UserID == "" || !visible[p.UserID] {
			continue
		}
		author, err := a.author(ctx, authors, p.UserID)
		if err != nil {
			return nil, err
		}
		if author == nil {
			continue // author document gone, hide the post
		}
		p.Author = author
		out = append(out, p)
	}
	return out, nil
}

// BuildProfileFeed returns ownerID's own posts, newest first. The
// single-key equality predicate is pushed down to the store.
func (a *Assembler) BuildProfileFeed(ctx context.Context, ownerID string) ([]models.Post, error) {
	docs, err := a.store.Query(ctx, "posts", store.Query{
		Predicates: []store.Predicate{store.Eq("userId", ownerID)},
		Sort:       &store.Order{Field: "createdAt", Desc: true},
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.Post, 0, len(docs))
	for _, d := range docs {
		var p models.Post
		if err := store.Decode(d, &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// BuildSavedFeed returns the viewer's bookmarked posts. The id-in-set
// query is capped at the store's arity limit, so only the first
// InArityCap saved ids are fetched; anything past the cap is silently
// left out, matching the reference behavior.
func (a *Assembler) BuildSavedFeed(ctx context.Context, viewerID string) ([]models.Post, error) {
	doc, err := a.store.Get(ctx, "users", viewerID)
	if err != nil {
		return nil, err
	}
	var viewer models.User
	if err := store.Decode(doc, &viewer); err != nil {
		return nil, err
	}
	if len(viewer.SavedPosts) == 0 {
		return []models.Post{}, nil
	}

	saved := viewer.SavedPosts
	if len(saved) > store.InArityCap {
		saved = saved[:store.InArityCap]
	}

	docs, err := a.store.Query(ctx, "posts", store.Query{
		Predicates: []store.Predicate{store.IDIn(saved)},
	})
	if err != nil {
		return nil, err
	}

	authors := make(map[string]*models.User)
	out := make([]models.Post, 0, len(docs))
	for _, d := range docs {
		var p models.Post
		if err := store.Decode(d, &p); err != nil {
			continue
		}
		author, err := a.author(ctx, authors, p.UserID)
		if err != nil {
			return nil, err
		}
		if author == nil {
			// Unlike the home feed, a saved post outlives its author.
			author = &models.User{Username: "anonymous"}
		}
		p.Author = author
		out = append(out, p)
	}
	return out, nil
}

// ApplyTypeFilter filters posts by type. Pure, no store interaction.
func ApplyTypeFilter(posts []models.Post, filter string) []models.Post {
	if filter == "" || filter == FilterAll {
		return posts
	}
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if p.Type == filter {
			out = append(out, p)
		}
	}
	return out
}

// author resolves a live author snapshot, memoized per build so a
// prolific author is fetched once. Returns nil (no error) when the
// user document is gone.
func (a *Assembler) author(ctx context.Context, cache map[string]*models.User, userID string) (*models.User, error) {
	if u, ok := cache[userID]; ok {
		return u, nil
	}
	doc, err := a.store.Get(ctx, "users", userID)
	if errors.Is(err, store.ErrNotFound) {
		cache[userID] = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := store.Decode(doc, &u); err != nil {
		return nil, err
	}
	u.PasswordHash = ""
	cache[userID] = &u
	return &u, nil
}
