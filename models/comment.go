package models

// Comment carries a snapshot of its author's username and picture taken
// at write time. The snapshot is intentionally never refreshed: a later
// rename does not rewrite comment history.
type Comment struct {
	ID         string `bson:"_id,omitempty" json:"id"`
	PostID     string `bson:"postId" json:"postId"`
	UserID     string `bson:"userId" json:"userId"`
	Text       string `bson:"text" json:"text"`
	Username   string `bson:"username" json:"username"`
	ProfilePic string `bson:"profilePic,omitempty" json:"profilePic,omitempty"`
	CreatedAt  int64  `bson:"createdAt" json:"createdAt"`
}
