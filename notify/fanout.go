package notify

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"virasocial/models"
	"virasocial/store"
)

// Pusher is an optional second delivery leg (web push). Like the
// notification write itself it is best-effort only.
type Pusher interface {
	Push(ctx context.Context, userID, title, body string) error
}

// Fanout appends notification records as a side effect of likes,
// comments and follows.
type Fanout struct {
	store store.Store
	push  Pusher
}

func NewFanout(st store.Store, push Pusher) *Fanout {
	return &Fanout{store: st, push: push}
}

// Notify writes a notification for n.RecipientID. Fire-and-forget: a
// failed write is logged and swallowed so the like/comment/follow that
// triggered it still succeeds in the sender's eyes.
func (f *Fanout) Notify(ctx context.Context, n models.Notification) {
	n.ID = primitive.NewObjectID().Hex()
	n.CreatedAt = f.store.ServerTimestamp()
	n.Read = false
	n.Sender = nil

	fields, err := store.Encode(n)
	if err != nil {
		log.Printf("[notify] encode failed: %v", err)
		return
	}
	if err := f.store.Put(ctx, "notifications", n.ID, fields); err != nil {
		log.Printf("[notify] write failed for recipient %s: %v", n.RecipientID, err)
		return
	}

	if f.push != nil {
		title, body := pushText(n)
		if err := f.push.Push(ctx, n.RecipientID, title, body); err != nil {
			log.Printf("[notify] push delivery failed for %s: %v", n.RecipientID, err)
		}
	}
}

// List returns the recipient's notifications, newest first, each with
// the sender's current profile joined in. The per-item lookup is an
// accepted N+1: notification volume per user is small.
func (f *Fanout) List(ctx context.Context, recipientID string) ([]models.Notification, error) {
	docs, err := f.store.Query(ctx, "notifications", store.Query{
		Predicates: []store.Predicate{store.Eq("recipientId", recipientID)},
		Sort:       &store.Order{Field: "createdAt", Desc: true},
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.Notification, 0, len(docs))
	for _, d := range docs {
		var n models.Notification
		if err := store.Decode(d, &n); err != nil {
			log.Printf("[notify] skipping malformed notification %s: %v", d.ID, err)
			continue
		}
		n.Sender = f.resolveSender(ctx, n.SenderID)
		out = append(out, n)
	}
	return out, nil
}

// resolveSender fetches the sender's live profile. A missing sender
// (deleted account) degrades to a placeholder rather than failing the
// whole list.
func (f *Fanout) resolveSender(ctx context.Context, senderID string) *models.User {
	if senderID == "" {
		return &models.User{Username: "unknown"}
	}
	doc, err := f.store.Get(ctx, "users", senderID)
	if err != nil {
		return &models.User{ID: senderID, Username: "unknown"}
	}
	var u models.User
	if err := store.Decode(doc, &u); err != nil {
		return &models.User{ID: senderID, Username: "unknown"}
	}
	u.PasswordHash = ""
	return &u
}

func pushText(n models.Notification) (title, body string) {
	switch n.Type {
	case models.NotificationLike:
		return "New like", "Someone liked your post"
	case models.NotificationComment:
		return "New comment", n.Content
	case models.NotificationFollow:
		return "New follower", "You have a new follower"
	default:
		return "viraSocial", ""
	}
}
