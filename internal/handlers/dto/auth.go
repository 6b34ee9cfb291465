package dto

import "time"

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Handle   string `json:"handle" binding:"required"`
	Name     string `json:"name" binding:"required,max=64"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	User           UserResponse `json:"user"`
	Token          string       `json:"token"`
	TokenExpiresAt time.Time    `json:"tokenExpiresAt"`
}
