package engage

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"virasocial/models"
	"virasocial/notify"
	"virasocial/store"
)

// ErrEmptyInput is returned when post or comment text trims to empty.
var ErrEmptyInput = errors.New("engage: text must not be empty")

// Engine implements likes, saves, comments and post authoring. Like and
// save are idempotent set-toggles over atomic array updates; they never
// read-modify-write the whole array, so concurrent toggles from other
// clients cannot be lost.
//
// Ownership of posts is the caller's to verify: EditPost and DeletePost
// trust that the caller already checked the requester owns the post.
type Engine struct {
	store  store.Store
	fanout *notify.Fanout
}

func NewEngine(st store.Store, fanout *notify.Fanout) *Engine {
	return &Engine{store: st, fanout: fanout}
}

// CreatePost stores a new post for authorID. postType defaults to
// social; anything other than "job" is stored as social.
func (e *Engine) CreatePost(ctx context.Context, authorID, text, postType string) (models.Post, error) {
	if strings.TrimSpace(text) == "" {
		return models.Post{}, ErrEmptyInput
	}
	if postType != models.PostTypeJob {
		postType = models.PostTypeSocial
	}

	p := models.Post{
		ID:        primitive.NewObjectID().Hex(),
		UserID:    authorID,
		Text:      text,
		Type:      postType,
		Likes:     []string{},
		CreatedAt: e.store.ServerTimestamp(),
	}
	fields, err := store.Encode(p)
	if err != nil {
		return models.Post{}, err
	}
	if err := e.store.Put(ctx, "posts", p.ID, fields); err != nil {
		return models.Post{}, err
	}
	return p, nil
}

// ToggleLike flips userID's membership in the post's likes set and
// returns the new state. On an absent-to-present transition a like
// notification goes to the post's author unless the liker is the
// author. Store failures on the toggle itself are resolved by
// re-fetching authoritative state rather than surfacing an error:
// toggles are self-healing.
func (e *Engine) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	post, err := e.getPost(ctx, postID)
	if err != nil {
		return false, err
	}

	if post.LikedBy(userID) {
		if err := e.store.ArrayRemove(ctx, "posts", postID, "likes", userID); err != nil {
			return e.reconcileLike(ctx, postID, userID, err)
		}
		return false, nil
	}

	if err := e.store.ArrayAdd(ctx, "posts", postID, "likes", userID); err != nil {
		return e.reconcileLike(ctx, postID, userID, err)
	}
	if post.UserID != userID {
		e.fanout.Notify(ctx, models.Notification{
			RecipientID: post.UserID,
			SenderID:    userID,
			Type:        models.NotificationLike,
			PostID:      postID,
		})
	}
	return true, nil
}

// reconcileLike re-fetches the post after a failed toggle. Transient
// failures and write conflicts degrade to "tell the caller what the
// state actually is"; anything else propagates.
func (e *Engine) reconcileLike(ctx context.Context, postID, userID string, cause error) (bool, error) {
	if !errors.Is(cause, store.ErrUnavailable) && !errors.Is(cause, store.ErrWriteConflict) {
		return false, cause
	}
	post, err := e.getPost(ctx, postID)
	if err != nil {
		return false, cause
	}
	return post.LikedBy(userID), nil
}

// ToggleSave flips postID's membership in the user's savedPosts set and
// returns the new state. No notification side effect.
func (e *Engine) ToggleSave(ctx context.Context, userID, postID string) (bool, error) {
	doc, err := e.store.Get(ctx, "users", userID)
	if err != nil {
		return false, err
	}
	var u models.User
	if err := store.Decode(doc, &u); err != nil {
		return false, err
	}

	if u.HasSaved(postID) {
		if err := e.store.ArrayRemove(ctx, "users", userID, "savedPosts", postID); err != nil {
			return e.reconcileSave(ctx, userID, postID, err)
		}
		return false, nil
	}
	if err := e.store.ArrayAdd(ctx, "users", userID, "savedPosts", postID); err != nil {
		return e.reconcileSave(ctx, userID, postID, err)
	}
	return true, nil
}

func (e *Engine) reconcileSave(ctx context.Context, userID, postID string, cause error) (bool, error) {
	if !errors.Is(cause, store.ErrUnavailable) && !errors.Is(cause, store.ErrWriteConflict) {
		return false, cause
	}
	doc, err := e.store.Get(ctx, "users", userID)
	if err != nil {
		return false, cause
	}
	var u models.User
	if err := store.Decode(doc, &u); err != nil {
		return false, cause
	}
	return u.HasSaved(postID), nil
}

// PostComment appends a comment to a post. The commenter's username and
// picture are captured as a snapshot at call time and never refreshed.
// The post's author gets a comment notification carrying the text,
// unless they commented on their own post.
func (e *Engine) PostComment(ctx context.Context, postID, authorID, text string) (models.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return models.Comment{}, ErrEmptyInput
	}

	post, err := e.getPost(ctx, postID)
	if err != nil {
		return models.Comment{}, err
	}

	username, profilePic := "anonymous", ""
	if doc, err := e.store.Get(ctx, "users", authorID); err == nil {
		var u models.User
		if err := store.Decode(doc, &u); err == nil && u.Username != "" {
			username, profilePic = u.Username, u.ProfilePic
		}
	}

	c := models.Comment{
		ID:         primitive.NewObjectID().Hex(),
		PostID:     postID,
		UserID:     authorID,
		Text:       text,
		Username:   username,
		ProfilePic: profilePic,
		CreatedAt:  e.store.ServerTimestamp(),
	}
	fields, err := store.Encode(c)
	if err != nil {
		return models.Comment{}, err
	}
	if err := e.store.Put(ctx, "comments", c.ID, fields); err != nil {
		return models.Comment{}, err
	}

	if post.UserID != authorID {
		e.fanout.Notify(ctx, models.Notification{
			RecipientID: post.UserID,
			SenderID:    authorID,
			Type:        models.NotificationComment,
			Content:     text,
			PostID:      postID,
		})
	}
	return c, nil
}

// Comments returns the post's comment thread, oldest first, as a
// one-shot read. WatchComments is the live variant.
func (e *Engine) Comments(ctx context.Context, postID string) ([]models.Comment, error) {
	docs, err := e.store.Query(ctx, "comments", store.Query{
		Predicates: []store.Predicate{store.Eq("postId", postID)},
		Sort:       &store.Order{Field: "createdAt", Desc: false},
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.Comment, 0, len(docs))
	for _, d := range docs {
		var c models.Comment
		if err := store.Decode(d, &c); err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// EditPost overwrites the post's text. Last-write-wins: concurrent
// edits by the owner from two devices can clobber each other.
func (e *Engine) EditPost(ctx context.Context, postID, newText string) error {
	if strings.TrimSpace(newText) == "" {
		return ErrEmptyInput
	}
	return e.store.Update(ctx, "posts", postID, bson.M{"text": newText})
}

// DeletePost removes the post document. Its comments are not cascaded
// and become orphaned, matching the reference behavior.
func (e *Engine) DeletePost(ctx context.Context, postID string) error {
	return e.store.Delete(ctx, "posts", postID)
}

func (e *Engine) getPost(ctx context.Context, postID string) (models.Post, error) {
	doc, err := e.store.Get(ctx, "posts", postID)
	if err != nil {
		return models.Post{}, err
	}
	var p models.Post
	if err := store.Decode(doc, &p); err != nil {
		return models.Post{}, err
	}
	return p, nil
}
