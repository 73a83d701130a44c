package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"virasocial/store"
)

// FollowUser adds the target to the caller's following set. Following
// someone you already follow is a no-op, not an error.
func FollowUser(c *gin.Context) {
	userID := c.GetString("userId")
	targetID := c.Param("id")

	if targetID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot follow yourself"})
		return
	}

	ctx, cancel := requestContext()
	defer cancel()

	if err := graph.Follow(ctx, userID, targetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		abortStoreError(c, err, "Failed to follow user")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Followed successfully", "following": true})
}

func UnfollowUser(c *gin.Context) {
	userID := c.GetString("userId")
	targetID := c.Param("id")

	ctx, cancel := requestContext()
	defer cancel()

	if err := graph.Unfollow(ctx, userID, targetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		abortStoreError(c, err, "Failed to unfollow user")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Unfollowed successfully", "following": false})
}

// GetFollowStats returns the derived follower count and the stored
// following count for a user.
func GetFollowStats(c *gin.Context) {
	targetID := c.Param("id")

	ctx, cancel := requestContext()
	defer cancel()

	followers, err := graph.FollowerCount(ctx, targetID)
	if err != nil {
		log.Printf("[GetFollowStats] follower count failed for %s: %v", targetID, err)
		abortStoreError(c, err, "Failed to count followers")
		return
	}

	following, err := graph.FollowingCount(ctx, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		abortStoreError(c, err, "Failed to count following")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userId":    targetID,
		"followers": followers,
		"following": following,
	})
}

func GetFollowers(c *gin.Context) {
	targetID := c.Param("id")

	ctx, cancel := requestContext()
	defer cancel()

	users, err := graph.Followers(ctx, targetID)
	if err != nil {
		abortStoreError(c, err, "Failed to load followers")
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

func GetFollowing(c *gin.Context) {
	targetID := c.Param("id")

	ctx, cancel := requestContext()
	defer cancel()

	users, err := graph.Following(ctx, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		abortStoreError(c, err, "Failed to load following")
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

// SearchUsers matches the q parameter as a case-insensitive substring
// of usernames, excluding the caller.
func SearchUsers(c *gin.Context) {
	userID := c.GetString("userId")
	queryText := c.Query("q")

	ctx, cancel := requestContext()
	defer cancel()

	users, err := userIndex.SearchUsers(ctx, queryText, userID)
	if err != nil {
		abortStoreError(c, err, "Search failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}
