package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/chat-relay/internal/handlers/dto"
	"github.com/thereayou/chat-relay/internal/middleware"
	"github.com/thereayou/chat-relay/internal/services"
)

type AuthHandler struct {
	auth *services.AuthService
	log  *slog.Logger
}

func NewAuthHandler(auth *services.AuthService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, log: log}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.log, err)
		return
	}

	resp, err := h.auth.Register(c.Request.Context(), services.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		Handle:   req.Handle,
		Name:     req.Name,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, newAuthResponse(resp))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.log, err)
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, newAuthResponse(resp))
}

// Logout revokes the bearer token of the request until it expires.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString(middleware.TokenKey)
	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func newAuthResponse(resp *services.AuthResponse) dto.AuthResponse {
	return dto.AuthResponse{
		User:           dto.NewUserResponse(resp.User),
		Token:          resp.AccessToken,
		TokenExpiresAt: resp.ExpiresAt,
	}
}
