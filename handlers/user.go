package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"

	"virasocial/auth"
	"virasocial/models"
	"virasocial/store"
)

type ProfileUpdate struct {
	Username string `json:"username" form:"username"`
	Bio      string `json:"bio" form:"bio"`
	CVLink   string `json:"cvLink" form:"cvLink"`
	Role     string `json:"role" form:"role"`
}

// GetMyProfile returns the caller's own user document with derived
// follower counts attached.
func GetMyProfile(c *gin.Context) {
	userID := c.GetString("userId")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	ctx, cancel := requestContext()
	defer cancel()

	doc, err := docs.Get(ctx, "users", userID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}
	if err != nil {
		log.Printf("[GetMyProfile] store error: %v", err)
		abortStoreError(c, err, "Failed to fetch profile")
		return
	}

	var user models.User
	if err := store.Decode(doc, &user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode profile"})
		return
	}

	resp, err := profileResponse(ctx, user)
	if err != nil {
		log.Printf("[GetMyProfile] follower count failed: %v", err)
		abortStoreError(c, err, "Failed to fetch profile")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetUser returns any user's public profile. Missing users come back
// as a placeholder with 200 so stale references in the app degrade
// instead of erroring.
func GetUser(c *gin.Context) {
	targetID := c.Param("id")

	ctx, cancel := requestContext()
	defer cancel()

	doc, err := docs.Get(ctx, "users", targetID)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("[GetUser] user not found: %s, returning fallback", targetID)
		c.JSON(http.StatusOK, gin.H{
			"id":         targetID,
			"username":   "anonymous",
			"profilePic": fallbackAvatar,
			"bio":        "",
			"role":       models.RoleSeeker,
			"followers":  0,
			"following":  0,
		})
		return
	}
	if err != nil {
		log.Printf("[GetUser] store error: %v", err)
		abortStoreError(c, err, "Failed to fetch user")
		return
	}

	var user models.User
	if err := store.Decode(doc, &user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode user"})
		return
	}

	resp, err := profileResponse(ctx, user)
	if err != nil {
		log.Printf("[GetUser] follower count failed: %v", err)
		abortStoreError(c, err, "Failed to fetch user")
		return
	}
	delete(resp, "email")
	delete(resp, "savedPosts")
	resp["isFollowing"] = false
	if viewerID := c.GetString("userId"); viewerID != "" && viewerID != user.ID {
		following, err := graph.IsFollowing(ctx, viewerID, user.ID)
		if err == nil {
			resp["isFollowing"] = following
		}
	}
	c.JSON(http.StatusOK, resp)
}

func profileResponse(ctx context.Context, user models.User) (gin.H, error) {
	followers, err := graph.FollowerCount(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	profilePic := user.ProfilePic
	if profilePic == "" {
		profilePic = fallbackAvatar
	}

	return gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"role":       user.Role,
		"bio":        user.Bio,
		"cvLink":     user.CVLink,
		"profilePic": profilePic,
		"savedPosts": user.SavedPosts,
		"followers":  followers,
		"following":  int64(len(user.Following)),
		"createdAt":  user.CreatedAt,
	}, nil
}

// UpdateMyProfile handles username, bio, cvLink and role edits plus an
// optional multipart profile picture upload to Cloudinary.
func UpdateMyProfile(c *gin.Context) {
	userID := c.GetString("userId")

	ctx, cancel := requestContext()
	defer cancel()

	var data ProfileUpdate
	if c.ContentType() == "application/json" {
		if err := c.ShouldBindJSON(&data); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON data"})
			return
		}
	} else {
		if err := c.Request.ParseMultipartForm(10 << 20); err != nil && err != http.ErrNotMultipart {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse form data"})
			return
		}
		if err := c.ShouldBind(&data); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid form data"})
			return
		}
	}

	fields := bson.M{}
	if data.Username != "" {
		fields["username"] = data.Username
	}
	if data.Bio != "" {
		fields["bio"] = data.Bio
	}
	if data.CVLink != "" {
		fields["cvLink"] = data.CVLink
	}
	if data.Role != "" {
		if data.Role != models.RoleSeeker && data.Role != models.RoleEmployer {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Role must be seeker or employer"})
			return
		}
		fields["role"] = data.Role
	}

	picFile, _, err := c.Request.FormFile("profilePic")
	if err == nil {
		defer picFile.Close()

		cld, err := cloudinary.NewFromURL(os.Getenv("CLOUDINARY_URL"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Cloudinary configuration error"})
			return
		}

		uploadResult, err := cld.Upload.Upload(ctx, picFile, uploader.UploadParams{
			Folder:         "virasocial/avatars",
			PublicID:       userID,
			Transformation: "c_limit,w_400,h_400,q_auto",
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload profile picture"})
			return
		}
		fields["profilePic"] = uploadResult.SecureURL
	}

	if len(fields) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "No changes to update"})
		return
	}

	if err := docs.Update(ctx, "users", userID, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		abortStoreError(c, err, "Failed to update profile")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully"})
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

func ChangePassword(c *gin.Context) {
	userID := c.GetString("userId")

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext()
	defer cancel()

	err := authSvc.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrWeakCredential):
			c.JSON(http.StatusBadRequest, gin.H{"error": "New password must be at least 6 characters"})
		case errors.Is(err, auth.ErrWrongCredential):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Current password is incorrect"})
		case errors.Is(err, auth.ErrTooManyAttempts):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many failed attempts, try again later"})
		default:
			abortStoreError(c, err, "Failed to change password")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

type DeleteAccountRequest struct {
	Password string `json:"password"`
}

// DeleteAccount removes the account and its posts. Comments and
// notifications the user left behind stay; readers show them with
// their frozen snapshots or a placeholder sender.
func DeleteAccount(c *gin.Context) {
	userID := c.GetString("userId")

	var req DeleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext()
	defer cancel()

	err := authSvc.DeleteAccount(ctx, userID, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrRequiresReauth):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Password required to delete account"})
		case errors.Is(err, auth.ErrWrongCredential):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Password is incorrect"})
		case errors.Is(err, auth.ErrTooManyAttempts):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many failed attempts, try again later"})
		default:
			abortStoreError(c, err, "Failed to delete account")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account deleted successfully"})
}
