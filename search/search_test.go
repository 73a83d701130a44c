package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virasocial/models"
	"virasocial/store"
	"virasocial/store/memstore"
)

func seedUsers(t *testing.T, m *memstore.Memstore, users ...models.User) {
	t.Helper()
	for _, u := range users {
		fields, err := store.Encode(u)
		require.NoError(t, err)
		require.NoError(t, m.Put(context.Background(), "users", u.ID, fields))
	}
}

func TestSearchUsersSubstringMatch(t *testing.T) {
	m := memstore.New()
	idx := NewIndex(m)
	ctx := context.Background()

	seedUsers(t, m,
		models.User{ID: "u1", Username: "sema_dev"},
		models.User{ID: "u2", Username: "ahmet"},
		models.User{ID: "u3", Username: "Semiha"},
	)

	out, err := idx.SearchUsers(ctx, "sem", "")
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, u := range out {
		assert.NotEqual(t, "ahmet", u.Username)
	}

	// interior match, not just prefix
	out, err = idx.SearchUsers(ctx, "met", "")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "ahmet", out[0].Username)
}

func TestSearchUsersCaseInsensitive(t *testing.T) {
	m := memstore.New()
	idx := NewIndex(m)

	seedUsers(t, m, models.User{ID: "u1", Username: "SemaDev"})

	out, err := idx.SearchUsers(context.Background(), "semadev", "")
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestSearchUsersEmptyQuery(t *testing.T) {
	m := memstore.New()
	idx := NewIndex(m)

	seedUsers(t, m, models.User{ID: "u1", Username: "sema_dev"})

	out, err := idx.SearchUsers(context.Background(), "", "")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSearchUsersExcludesCaller(t *testing.T) {
	m := memstore.New()
	idx := NewIndex(m)

	seedUsers(t, m,
		models.User{ID: "me", Username: "sema_dev"},
		models.User{ID: "other", Username: "sema_fan"},
	)

	out, err := idx.SearchUsers(context.Background(), "sema", "me")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "other", out[0].ID)
}

func TestSearchUsersStripsPasswordHash(t *testing.T) {
	m := memstore.New()
	idx := NewIndex(m)

	seedUsers(t, m, models.User{ID: "u1", Username: "sema_dev", PasswordHash: "secret"})

	out, err := idx.SearchUsers(context.Background(), "sema", "")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Empty(t, out[0].PasswordHash)
}

func TestSearchUsersNoMatch(t *testing.T) {
	m := memstore.New()
	idx := NewIndex(m)

	seedUsers(t, m, models.User{ID: "u1", Username: "sema_dev"})

	out, err := idx.SearchUsers(context.Background(), "zzz", "")
	require.NoError(t, err)
	assert.Empty(t, out)
}
