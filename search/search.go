package search

import (
	"context"
	"strings"

	"virasocial/models"
	"virasocial/store"
)

// Index is a deliberately simple user search: the store has no
// full-text index, so this scans the whole user collection and does a
// case-insensitive substring match on usernames.
type Index struct {
	store store.Store
}

func NewIndex(st store.Store) *Index {
	return &Index{store: st}
}

// SearchUsers returns every user (except excludeUserID) whose username
// contains queryText, case-insensitively, in store-returned order. An
// empty query returns an empty result: "no search active" is not the
// same as "search everyone".
func (s *Index) SearchUsers(ctx context.Context, queryText, excludeUserID string) ([]models.User, error) {
	if queryText == "" {
		return []models.User{}, nil
	}

	docs, err := s.store.Query(ctx, "users", store.Query{})
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(queryText)
	out := make([]models.User, 0)
	for _, d := range docs {
		if d.ID == excludeUserID {
			continue
		}
		var u models.User
		if err := store.Decode(d, &u); err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), needle) {
			u.PasswordHash = ""
			out = append(out, u)
		}
	}
	return out, nil
}
