package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"virasocial/engage"
	"virasocial/feed"
	"virasocial/models"
	"virasocial/store"
)

type CreatePostRequest struct {
	Text string `json:"text" binding:"required"`
	Type string `json:"type"`
}

type EditPostRequest struct {
	Text string `json:"text" binding:"required"`
}

func CreatePost(c *gin.Context) {
	userID := c.GetString("userId")

	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext()
	defer cancel()

	post, err := engine.CreatePost(ctx, userID, req.Text, req.Type)
	if err != nil {
		if errors.Is(err, engage.ErrEmptyInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Post text cannot be empty"})
			return
		}
		abortStoreError(c, err, "Failed to create post")
		return
	}

	c.JSON(http.StatusCreated, post)
}

// GetFeed returns the caller's home feed: posts by followed users plus
// the caller's own, newest first. An optional type query parameter
// narrows to social or job posts.
func GetFeed(c *gin.Context) {
	userID := c.GetString("userId")

	ctx, cancel := requestContext()
	defer cancel()

	posts, err := feeds.BuildHomeFeed(ctx, userID)
	if err != nil {
		log.Printf("[GetFeed] build failed for %s: %v", userID, err)
		abortStoreError(c, err, "Failed to load feed")
		return
	}

	posts = applyFilterParam(c, posts)
	c.JSON(http.StatusOK, gin.H{"posts": posts, "count": len(posts)})
}

// GetUserPosts returns one user's posts, newest first.
func GetUserPosts(c *gin.Context) {
	ownerID := c.Param("id")

	ctx, cancel := requestContext()
	defer cancel()

	posts, err := feeds.BuildProfileFeed(ctx, ownerID)
	if err != nil {
		abortStoreError(c, err, "Failed to load posts")
		return
	}

	posts = applyFilterParam(c, posts)
	c.JSON(http.StatusOK, gin.H{"posts": posts, "count": len(posts)})
}

func GetMyPosts(c *gin.Context) {
	userID := c.GetString("userId")

	ctx, cancel := requestContext()
	defer cancel()

	posts, err := feeds.BuildProfileFeed(ctx, userID)
	if err != nil {
		abortStoreError(c, err, "Failed to load posts")
		return
	}

	posts = applyFilterParam(c, posts)
	c.JSON(http.StatusOK, gin.H{"posts": posts, "count": len(posts)})
}

// GetSavedFeed returns the posts the caller bookmarked.
func GetSavedFeed(c *gin.Context) {
	userID := c.GetString("userId")

	ctx, cancel := requestContext()
	defer cancel()

	posts, err := feeds.BuildSavedFeed(ctx, userID)
	if err != nil {
		abortStoreError(c, err, "Failed to load saved posts")
		return
	}

	posts = applyFilterParam(c, posts)
	c.JSON(http.StatusOK, gin.H{"posts": posts, "count": len(posts)})
}

func applyFilterParam(c *gin.Context, posts []models.Post) []models.Post {
	switch c.Query("type") {
	case models.PostTypeSocial:
		return feed.ApplyTypeFilter(posts, feed.FilterSocial)
	case models.PostTypeJob:
		return feed.ApplyTypeFilter(posts, feed.FilterJob)
	default:
		return posts
	}
}

func EditPost(c *gin.Context) {
	userID := c.GetString("userId")
	postID := c.Param("id")

	var req EditPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext()
	defer cancel()

	if !ownsPost(ctx, c, postID, userID) {
		return
	}

	if err := engine.EditPost(ctx, postID, req.Text); err != nil {
		if errors.Is(err, engage.ErrEmptyInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Post text cannot be empty"})
			return
		}
		abortStoreError(c, err, "Failed to edit post")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post updated successfully"})
}

func DeletePost(c *gin.Context) {
	userID := c.GetString("userId")
	postID := c.Param("id")

	ctx, cancel := requestContext()
	defer cancel()

	if !ownsPost(ctx, c, postID, userID) {
		return
	}

	if err := engine.DeletePost(ctx, postID); err != nil {
		abortStoreError(c, err, "Failed to delete post")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

// ownsPost loads the post and rejects the request unless userID is its
// author. Writes the error response itself and returns false on any
// failure.
func ownsPost(ctx context.Context, c *gin.Context, postID, userID string) bool {
	doc, err := docs.Get(ctx, "posts", postID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return false
	}
	if err != nil {
		abortStoreError(c, err, "Failed to fetch post")
		return false
	}

	var post models.Post
	if err := store.Decode(doc, &post); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode post"})
		return false
	}
	if post.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only modify your own posts"})
		return false
	}
	return true
}
