package routes

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"chatter/handlers"
	"chatter/logger"
	"chatter/middleware"
	"chatter/store"
	"chatter/websocket"
)

func corsOrigins() []string {
	if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
		origins := strings.Split(raw, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		return origins
	}
	return []string{"http://localhost:5173", "http://127.0.0.1:5173"}
}

// SetupRouter assembles the REST surface over the injected store and
// realtime manager.
func SetupRouter(st store.Store, manager *websocket.Manager) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinMiddleware())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authH := &handlers.AuthHandler{Store: st}
	userH := &handlers.UserHandler{Store: st}
	chatH := &handlers.ChatHandler{Store: st}
	msgH := &handlers.MessageHandler{
		Store:    st,
		Manager:  manager,
		Notifier: &handlers.PushNotifier{Store: st},
	}
	pushH := &handlers.PushHandler{Store: st}

	api := router.Group("/api")
	api.Use(middleware.RateLimitMiddleware(middleware.NewIPRateLimiter(60, time.Minute)))

	api.POST("/auth/register", authH.Register)
	api.POST("/auth/login", authH.Login)
	api.GET("/push/vapid-public-key", pushH.VapidPublicKey)

	protected := api.Group("")
	protected.Use(middleware.JWTAuthMiddleware())

	protected.GET("/users", userH.List)
	protected.GET("/users/me", userH.Me)
	protected.PUT("/users/me", userH.UpdateMe)
	protected.PUT("/users/me/status", userH.UpdateStatus)
	protected.GET("/users/:id", userH.GetByID)

	protected.GET("/chats", chatH.List)
	protected.POST("/chats", chatH.Create)
	protected.GET("/chats/:id", chatH.Get)
	protected.PUT("/chats/:id", chatH.Rename)
	protected.POST("/chats/:id/participants", chatH.AddParticipant)
	protected.DELETE("/chats/:id/participants/:userId", chatH.RemoveParticipant)

	protected.GET("/messages/chat/:chatId", msgH.List)
	protected.POST("/messages/chat/:chatId", msgH.Send)
	protected.PUT("/messages/chat/:chatId/read", msgH.MarkRead)
	protected.PUT("/messages/:id", msgH.Edit)
	protected.DELETE("/messages/:id", msgH.Delete)

	protected.POST("/push/subscribe", pushH.Subscribe)

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"message": "Endpoint not found",
			})
		}
	})

	return router
}
