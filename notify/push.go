package notify

import (
	"context"
	"encoding/json"

	webpush "github.com/SherClockHolmes/webpush-go"

	"virasocial/store"
)

// PushSubscription is a browser push registration stored per user.
type PushSubscription struct {
	ID     string               `bson:"_id,omitempty" json:"id"`
	UserID string               `bson:"userId" json:"userId"`
	Sub    webpush.Subscription `bson:"sub" json:"sub"`
}

// WebPush delivers notifications to registered browser endpoints using
// VAPID-signed web push.
type WebPush struct {
	store           store.Store
	subscriber      string
	vapidPublicKey  string
	vapidPrivateKey string
}

func NewWebPush(st store.Store, subscriber, vapidPublicKey, vapidPrivateKey string) *WebPush {
	return &WebPush{
		store:           st,
		subscriber:      subscriber,
		vapidPublicKey:  vapidPublicKey,
		vapidPrivateKey: vapidPrivateKey,
	}
}

// VAPIDPublicKey is handed to browsers so they can subscribe.
func (w *WebPush) VAPIDPublicKey() string {
	return w.vapidPublicKey
}

// SaveSubscription upserts the user's push registration. One
// registration per user; a new browser replaces the old one.
func (w *WebPush) SaveSubscription(ctx context.Context, userID string, sub webpush.Subscription) error {
	docs, err := w.store.Query(ctx, "subscriptions", store.Query{
		Predicates: []store.Predicate{store.Eq("userId", userID)},
	})
	if err != nil {
		return err
	}

	id := userID // one doc per user keeps the upsert trivial
	if len(docs) > 0 {
		id = docs[0].ID
	}
	fields, err := store.Encode(PushSubscription{ID: id, UserID: userID, Sub: sub})
	if err != nil {
		return err
	}
	return w.store.Put(ctx, "subscriptions", id, fields)
}

// Push sends title/body to every endpoint the user registered. Errors
// are returned to the caller, which treats them as best-effort.
func (w *WebPush) Push(ctx context.Context, userID, title, body string) error {
	docs, err := w.store.Query(ctx, "subscriptions", store.Query{
		Predicates: []store.Predicate{store.Eq("userId", userID)},
	})
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil // nothing registered, not an error
	}

	payload, err := json.Marshal(map[string]string{"title": title, "body": body})
	if err != nil {
		return err
	}

	for _, d := range docs {
		var ps PushSubscription
		if err := store.Decode(d, &ps); err != nil {
			continue
		}
		resp, err := webpush.SendNotification(payload, &ps.Sub, &webpush.Options{
			Subscriber:      w.subscriber,
			VAPIDPublicKey:  w.vapidPublicKey,
			VAPIDPrivateKey: w.vapidPrivateKey,
			TTL:             60,
		})
		if err != nil {
			return err
		}
		resp.Body.Close()
	}
	return nil
}

var _ Pusher = (*WebPush)(nil)
