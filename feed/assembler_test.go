package feed

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virasocial/models"
	"virasocial/store"
	"virasocial/store/memstore"
)

func seedUser(t *testing.T, m *memstore.Memstore, u models.User) {
	t.Helper()
	fields, err := store.Encode(u)
	require.NoError(t, err)
	require.NoError(t, m.Put(context.Background(), "users", u.ID, fields))
}

func seedPost(t *testing.T, m *memstore.Memstore, p models.Post) {
	t.Helper()
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if p.Type == "" {
		p.Type = models.PostTypeSocial
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = m.ServerTimestamp()
	}
	fields, err := store.Encode(p)
	require.NoError(t, err)
	require.NoError(t, m.Put(context.Background(), "posts", p.ID, fields))
}

func TestHomeFeedVisibility(t *testing.T) {
	m := memstore.New()
	a := NewAssembler(m)
	ctx := context.Background()

	seedUser(t, m, models.User{ID: "viewer", Username: "viewer", Following: []string{"followed"}})
	seedUser(t, m, models.User{ID: "followed", Username: "followed"})
	seedUser(t, m, models.User{ID: "stranger", Username: "stranger"})

	seedPost(t, m, models.Post{ID: "p1", UserID: "viewer", Text: "mine"})
	seedPost(t, m, models.Post{ID: "p2", UserID: "followed", Text: "from followed"})
	seedPost(t, m, models.Post{ID: "p3", UserID: "stranger", Text: "hidden"})

	posts, err := a.BuildHomeFeed(ctx, "viewer")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	for _, p := range posts {
		assert.NotEqual(t, "stranger", p.UserID)
		require.NotNil(t, p.Author)
	}
}

func TestHomeFeedNewestFirst(t *testing.T) {
	m := memstore.New()
	a := NewAssembler(m)
	ctx := context.Background()

	seedUser(t, m, models.User{ID: "viewer", Username: "viewer"})
	seedPost(t, m, models.Post{ID: "old", UserID: "viewer", Text: "old"})
	seedPost(t, m, models.Post{ID: "new", UserID: "viewer", Text: "new"})

	posts, err := a.BuildHomeFeed(ctx, "viewer")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "new", posts[0].ID)
	assert.Equal(t, "old", posts[1].ID)
}

func TestHomeFeedJoinsLiveAuthor(t *testing.T) {
	m := memstore.New()
	a := NewAssembler(m)
	ctx := context.Background()

	seedUser(t, m, models.User{ID: "viewer", Username: "viewer", Following: []string{"author"}})
	seedUser(t, m, models.User{ID: "author", Username: "before"})
	seedPost(t, m, models.Post{ID: "p1", UserID: "author", Text: "hi"})

	require.NoError(t, m.Update(ctx, "users", "author", map[string]interface{}{"username": "after"}))

	posts, err := a.BuildHomeFeed(ctx, "viewer")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "after", posts[0].Author.Username)
	assert.Empty(t, posts[0].Author.PasswordHash)
}

func TestHomeFeedHidesPostsOfDeletedAuthors(t *testing.T) {
	m := memstore.New()
	a := NewAssembler(m)
	ctx := context.Background()

	seedUser(t, m, models.User{ID: "viewer", Username: "viewer", Following: []string{"ghost"}})
	seedUser(t, m, models.User{ID: "ghost", Username: "ghost"})
	seedPost(t, m, models.Post{ID: "p1", UserID: "ghost", Text: "orphan"})

	require.NoError(t, m.Delete(ctx, "users", "ghost"))

	posts, err := a.BuildHomeFeed(ctx, "viewer")
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestHomeFeedMissingViewer(t *testing.T) {
	m := memstore.New()
	a := NewAssembler(m)

	_, err := a.BuildHomeFeed(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProfileFeed(t *testing.T) {
	m := memstore.New()
	a := NewAssembler(m)
	ctx := context.Background()

	seedPost(t, m, models.Post{ID: "p1", UserID: "owner", Text: "one"})
	seedPost(t, m, models.Post{ID: "p2", UserID: "owner", Text: "two"})
	seedPost(t, m, models.Post{ID: "p3", UserID: "other", Text: "three"})

	posts, err := a.BuildProfileFeed(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "p2", posts[0].ID)
	assert.Equal(t, "p1", posts[1].ID)
}

func TestSavedFeed(t *testing.T) {
	m := memstore.New()
	a := NewAssembler(m)
	ctx := context.Background()

	seedUser(t, m, models.User{ID: "viewer", Username: "viewer", SavedPosts: []string{"p1", "gonepost"}})
	seedUser(t, m, models.User{ID: "author", Username: "author"})
	seedPost(t, m, models.Post{ID: "p1", UserID: "author", Text: "kept"})

	posts, err := a.BuildSavedFeed(ctx, "viewer")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "p1", posts[0].ID)
	assert.Equal(t, "author", posts[0].Author.Username)
}

func TestSavedFeedDeletedAuthorGetsPlaceholder(t *testing.T) {
	m := memstore.New()
	a := NewAssembler(m)
	ctx := context.Background()

	seedUser(t, m, models.User{ID: "viewer", Username: "viewer", SavedPosts: []string{"p1"}})
	seedPost(t, m, models.Post{ID: "p1", UserID: "gone", Text: "orphan"})

	posts, err := a.BuildSavedFeed(ctx, "viewer")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.NotNil(t, posts[0].Author)
	assert.Equal(t, "anonymous", posts[0].Author.Username)
}

func TestSavedFeedTruncatesAtArityCap(t *testing.T) {
	m := memstore.New()
	a := NewAssembler(m)
	ctx := context.Background()

	seedUser(t, m, models.User{ID: "author", Username: "author"})

	saved := make([]string, 0, store.InArityCap+3)
	for i := 0; i < store.InArityCap+3; i++ {
		id := fmt.Sprintf("p%02d", i)
		seedPost(t, m, models.Post{ID: id, UserID: "author", Text: id})
		saved = append(saved, id)
	}
	seedUser(t, m, models.User{ID: "viewer", Username: "viewer", SavedPosts: saved})

	posts, err := a.BuildSavedFeed(ctx, "viewer")
	require.NoError(t, err)
	assert.Len(t, posts, store.InArityCap)
}

func TestSavedFeedEmpty(t *testing.T) {
	m := memstore.New()
	a := NewAssembler(m)

	seedUser(t, m, models.User{ID: "viewer", Username: "viewer"})

	posts, err := a.BuildSavedFeed(context.Background(), "viewer")
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestApplyTypeFilter(t *testing.T) {
	posts := []models.Post{
		{ID: "a", Type: models.PostTypeSocial},
		{ID: "b", Type: models.PostTypeJob},
		{ID: "c", Type: models.PostTypeSocial},
	}

	assert.Len(t, ApplyTypeFilter(posts, FilterAll), 3)
	assert.Len(t, ApplyTypeFilter(posts, ""), 3)

	social := ApplyTypeFilter(posts, FilterSocial)
	require.Len(t, social, 2)
	assert.Equal(t, "a", social[0].ID)

	jobs := ApplyTypeFilter(posts, FilterJob)
	require.Len(t, jobs, 1)
	assert.Equal(t, "b", jobs[0].ID)
}

// annotatedGets adds context to every store error before returning it,
// mimicking a driver adapter that never hands back a bare sentinel.
type annotatedGets struct {
	store.Store
}

func (a *annotatedGets) Get(ctx context.Context, collection, id string) (store.Doc, error) {
	doc, err := a.Store.Get(ctx, collection, id)
	if err != nil {
		return doc, fmt.Errorf("annotated get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func TestHomeFeedHidesAuthorBehindWrappedNotFound(t *testing.T) {
	m := memstore.New()
	a := NewAssembler(&annotatedGets{Store: m})
	ctx := context.Background()

	seedUser(t, m, models.User{ID: "viewer", Username: "viewer", Following: []string{"ghost", "alive"}})
	seedUser(t, m, models.User{ID: "alive", Username: "alive"})

	seedPost(t, m, models.Post{ID: "p1", UserID: "ghost", Text: "orphaned"})
	seedPost(t, m, models.Post{ID: "p2", UserID: "alive", Text: "kept"})

	posts, err := a.BuildHomeFeed(ctx, "viewer")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "p2", posts[0].ID)
	require.NotNil(t, posts[0].Author)
	assert.Equal(t, "alive", posts[0].Author.Username)
}
