package models

// Notification types.
const (
	NotificationLike    = "like"
	NotificationComment = "comment"
	NotificationFollow  = "follow"
)

type Notification struct {
	ID          string `bson:"_id,omitempty" json:"id"`
	RecipientID string `bson:"recipientId" json:"recipientId"`
	SenderID    string `bson:"senderId" json:"senderId"`
	Type        string `bson:"type" json:"type"` // like, comment, follow
	Content     string `bson:"content,omitempty" json:"content,omitempty"`
	PostID      string `bson:"postId,omitempty" json:"postId,omitempty"`

	// Read is written as false on creation. No read path consults it
	// yet; it stays for a future unread badge.
	Read bool `bson:"read" json:"read"`

	CreatedAt int64 `bson:"createdAt" json:"createdAt"`

	// Sender is resolved at read time, so the display always shows the
	// sender's current identity. Unlike comments, never snapshotted.
	Sender *User `bson:"-" json:"sender,omitempty"`
}
