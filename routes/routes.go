package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"virasocial/handlers"
	"virasocial/middleware"
	ws "virasocial/websocket"
)

func SetupRouter(wsManager *ws.Manager) *gin.Engine {
	router := gin.Default()

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "viraSocial API is running",
			"time":    time.Now().Unix(),
			"ws":      "Comment streams available at /api/ws",
		})
	})

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:8080", "http://127.0.0.1:8080", "http://localhost:19006", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Public routes (no auth required)
	router.POST("/api/signup", handlers.Signup)
	router.POST("/api/login", handlers.Login)
	router.GET("/api/vapid-public-key", handlers.GetVapidPublicKey)

	// Protected routes group
	protected := router.Group("/api")
	protected.Use(middleware.JWTAuthMiddleware())

	// Profile and account
	protected.GET("/me", handlers.GetMyProfile)
	protected.PUT("/me", handlers.UpdateMyProfile)
	protected.PUT("/me/password", handlers.ChangePassword)
	protected.DELETE("/me", handlers.DeleteAccount)
	protected.GET("/user/:id", handlers.GetUser)

	// Social graph
	protected.POST("/user/:id/follow", handlers.FollowUser)
	protected.DELETE("/user/:id/follow", handlers.UnfollowUser)
	protected.GET("/user/:id/follow-stats", handlers.GetFollowStats)
	protected.GET("/user/:id/followers", handlers.GetFollowers)
	protected.GET("/user/:id/following", handlers.GetFollowing)

	// Search is throttled; the app queries on every keystroke
	protected.GET("/users/search", middleware.RateLimitMiddleware(), handlers.SearchUsers)

	// Posts and feeds
	protected.POST("/post", handlers.CreatePost)
	protected.PUT("/post/:id", handlers.EditPost)
	protected.DELETE("/post/:id", handlers.DeletePost)
	protected.GET("/feed", handlers.GetFeed)
	protected.GET("/feed/saved", handlers.GetSavedFeed)
	protected.GET("/user/:id/posts", handlers.GetUserPosts)
	protected.GET("/my/posts", handlers.GetMyPosts)

	// Engagement
	protected.POST("/post/:id/like", handlers.ToggleLike)
	protected.POST("/post/:id/save", handlers.ToggleSave)
	protected.POST("/post/:id/comment", handlers.PostComment)
	protected.GET("/post/:id/comments", handlers.GetComments)

	// Notifications
	protected.GET("/notifications", handlers.GetNotifications)
	protected.POST("/subscribe", handlers.SubscribePush)

	// Live comment streams
	protected.GET("/ws", ws.Handler(wsManager))

	router.NoRoute(func(c *gin.Context) {
		if len(c.Request.URL.Path) >= 4 && c.Request.URL.Path[:4] == "/api" {
			c.JSON(404, gin.H{
				"error":   "Endpoint not found",
				"path":    c.Request.URL.Path,
				"message": "Check the API documentation for available endpoints",
			})
			return
		}
		c.Next()
	})

	return router
}
