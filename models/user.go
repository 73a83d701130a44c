package models

// User roles. Seekers browse job posts, employers publish them.
const (
	RoleSeeker   = "seeker"
	RoleEmployer = "employer"
)

type User struct {
	ID           string `bson:"_id,omitempty" json:"id"`
	Username     string `bson:"username" json:"username"`
	Email        string `bson:"email" json:"email"`
	PasswordHash string `bson:"passwordHash,omitempty" json:"-"`
	Role         string `bson:"role" json:"role"` // seeker, employer
	Bio          string `bson:"bio" json:"bio"`
	CVLink       string `bson:"cvLink" json:"cvLink"`
	ProfilePic   string `bson:"profilePic,omitempty" json:"profilePic,omitempty"`

	// Following holds the ids this user follows. Followers are never
	// stored; they are derived by querying users whose following array
	// contains this id.
	Following []string `bson:"following" json:"following"`

	// SavedPosts holds bookmarked post ids.
	SavedPosts []string `bson:"savedPosts" json:"savedPosts"`

	CreatedAt int64 `bson:"createdAt" json:"createdAt"`
}

// IsFollowing reports whether id is in this user's following set.
func (u *User) IsFollowing(id string) bool {
	for _, f := range u.Following {
		if f == id {
			return true
		}
	}
	return false
}

// HasSaved reports whether postID is bookmarked.
func (u *User) HasSaved(postID string) bool {
	for _, p := range u.SavedPosts {
		if p == postID {
			return true
		}
	}
	return false
}
