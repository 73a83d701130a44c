package models

// Post types.
const (
	PostTypeSocial = "social"
	PostTypeJob    = "job"
)

type Post struct {
	ID     string `bson:"_id,omitempty" json:"id"`
	UserID string `bson:"userId" json:"userId"`
	Text   string `bson:"text" json:"text"`
	Type   string `bson:"type" json:"type"` // social, job

	// Likes is the set of user ids that liked this post, mutated only
	// through atomic array add/remove.
	Likes []string `bson:"likes" json:"likes"`

	CreatedAt int64 `bson:"createdAt" json:"createdAt"`

	// Author is joined at read time so the display always reflects the
	// author's current profile. Never stored on the post document.
	Author *User `bson:"-" json:"author,omitempty"`
}

// LikedBy reports whether userID is in the likes set.
func (p *Post) LikedBy(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}
