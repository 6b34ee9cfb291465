package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"github.com/thereayou/chat-relay/internal/gateway"
	"github.com/thereayou/chat-relay/internal/realtime"
	"github.com/thereayou/chat-relay/pkg/auth"
)

type WebSocketHandler struct {
	hub      *realtime.Hub
	auth     gateway.Authenticator
	rooms    gateway.Rooms
	messages gateway.MessageLog
	limit    gateway.RateLimit
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewWebSocketHandler(hub *realtime.Hub, authenticator gateway.Authenticator, rooms gateway.Rooms,
	messages gateway.MessageLog, limit gateway.RateLimit, allowedOrigins []string, log *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		auth:     authenticator,
		rooms:    rooms,
		messages: messages,
		limit:    limit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log,
	}
}

// originChecker accepts requests without an Origin header, and any origin
// when the list contains "*".
func originChecker(allowed []string) func(*http.Request) bool {
	if lo.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return lo.ContainsBy(allowed, func(a string) bool {
			return strings.EqualFold(a, origin) || strings.EqualFold(a, u.Host)
		})
	}
}

// HandleWebSocket upgrades the request into a gateway session. A token in
// the query or the Authorization header is checked before the upgrade;
// without one the client must send an authenticate frame first.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	session := gateway.NewSession(h.hub, h.auth, h.rooms, h.log)

	token := c.Query("token")
	if token == "" {
		token, _ = auth.ExtractTokenFromHeader(c.Request)
	}
	if token != "" {
		if _, err := session.Authenticate(c.Request.Context(), token); err != nil {
			respondError(c, h.log, err)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		session.Disconnect()
		h.log.Debug("websocket upgrade failed", "error", err)
		return
	}

	client := gateway.NewClient(conn, session, h.messages, h.rooms, h.limit, h.log)
	go client.Serve()
}
