package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"virasocial/engage"
	"virasocial/store"
)

type CommentRequest struct {
	Text string `json:"text" binding:"required"`
}

// ToggleLike flips the caller's like on a post and reports the state
// after the write, so the app can correct an optimistic toggle that
// raced another device.
func ToggleLike(c *gin.Context) {
	userID := c.GetString("userId")
	postID := c.Param("id")

	ctx, cancel := requestContext()
	defer cancel()

	liked, err := engine.ToggleLike(ctx, postID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
			return
		}
		abortStoreError(c, err, "Failed to toggle like")
		return
	}

	c.JSON(http.StatusOK, gin.H{"liked": liked})
}

// ToggleSave flips the post's membership in the caller's saved set.
func ToggleSave(c *gin.Context) {
	userID := c.GetString("userId")
	postID := c.Param("id")

	ctx, cancel := requestContext()
	defer cancel()

	saved, err := engine.ToggleSave(ctx, userID, postID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		abortStoreError(c, err, "Failed to toggle save")
		return
	}

	c.JSON(http.StatusOK, gin.H{"saved": saved})
}

func PostComment(c *gin.Context) {
	userID := c.GetString("userId")
	postID := c.Param("id")

	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext()
	defer cancel()

	comment, err := engine.PostComment(ctx, postID, userID, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, engage.ErrEmptyInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Comment cannot be empty"})
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		default:
			abortStoreError(c, err, "Failed to post comment")
		}
		return
	}

	c.JSON(http.StatusCreated, comment)
}

// GetComments returns a post's comments oldest first, the one-shot
// counterpart of the websocket comment stream.
func GetComments(c *gin.Context) {
	postID := c.Param("id")

	ctx, cancel := requestContext()
	defer cancel()

	comments, err := engine.Comments(ctx, postID)
	if err != nil {
		abortStoreError(c, err, "Failed to load comments")
		return
	}

	c.JSON(http.StatusOK, gin.H{"comments": comments, "count": len(comments)})
}
