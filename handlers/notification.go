package handlers

import (
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
)

// GetNotifications returns the caller's notifications, newest first,
// with sender profiles joined live.
func GetNotifications(c *gin.Context) {
	userID := c.GetString("userId")

	ctx, cancel := requestContext()
	defer cancel()

	notifications, err := fanout.List(ctx, userID)
	if err != nil {
		abortStoreError(c, err, "Failed to load notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications, "count": len(notifications)})
}

func GetVapidPublicKey(c *gin.Context) {
	key := webPush.VAPIDPublicKey()
	if key == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Push notifications not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": key})
}

// SubscribePush stores the browser's push subscription for the caller.
func SubscribePush(c *gin.Context) {
	userID := c.GetString("userId")

	var sub webpush.Subscription
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription data"})
		return
	}
	if sub.Endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Subscription endpoint required"})
		return
	}

	ctx, cancel := requestContext()
	defer cancel()

	if err := webPush.SaveSubscription(ctx, userID, sub); err != nil {
		abortStoreError(c, err, "Failed to save subscription")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Subscribed to push notifications"})
}
