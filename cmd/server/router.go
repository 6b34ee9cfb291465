package main

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/chat-relay/internal/handlers"
	"github.com/thereayou/chat-relay/internal/middleware"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	Users    *handlers.UserHandler
	Rooms    *handlers.RoomHandler
	Messages *handlers.HTTPMessageHandler
	WS       *handlers.WebSocketHandler
}

func NewRouter(h Handlers, authenticator middleware.Authenticator, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	APIEndpoints(r, h, middleware.AuthMiddleware(authenticator))
	return r
}

func APIEndpoints(r *gin.Engine, h Handlers, requireAuth gin.HandlerFunc) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/logout", requireAuth, h.Auth.Logout)
	}

	// Availability and suggestions serve the registration form.
	users := r.Group("/users")
	{
		users.GET("/me", requireAuth, h.Users.GetMe)
		users.PATCH("/me", requireAuth, h.Users.UpdateMe)
		users.GET("/handle/:handle", requireAuth, h.Users.GetByHandle)
		users.GET("/handle/:handle/available", h.Users.HandleAvailable)
		users.GET("/handle-suggestion", h.Users.SuggestHandle)
	}

	rooms := r.Group("/rooms", requireAuth)
	{
		rooms.GET("", h.Rooms.ListRooms)
		rooms.POST("", h.Rooms.CreateGroupRoom)
		rooms.POST("/direct", h.Rooms.CreateDirectRoom)
		rooms.POST("/:id/participants", h.Rooms.AddParticipant)
		rooms.POST("/:id/read", h.Rooms.MarkRead)
		rooms.POST("/:id/messages", h.Messages.SendMessage)
		rooms.GET("/:id/messages", h.Messages.GetRoomMessages)
	}

	// Authenticated inside the handler: browsers cannot set headers on a
	// websocket handshake.
	r.GET("/subscribe", h.WS.HandleWebSocket)
}
