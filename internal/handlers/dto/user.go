package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/chat-relay/internal/directory"
	"github.com/thereayou/chat-relay/internal/models"
)

type UserResponse struct {
	ID            uuid.UUID `json:"id"`
	Handle        string    `json:"handle"`
	DisplayHandle string    `json:"displayHandle"`
	Name          string    `json:"name"`
	LastSeenAt    time.Time `json:"lastSeenAt,omitzero"`
}

// MeResponse adds the fields only the owner may see.
type MeResponse struct {
	UserResponse
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type UpdateProfileRequest struct {
	Handle *string `json:"handle"`
	Name   *string `json:"name" binding:"omitempty,max=64"`
}

type HandleAvailabilityResponse struct {
	Handle    string `json:"handle"`
	Available bool   `json:"available"`
}

type HandleSuggestionResponse struct {
	Handle string `json:"handle"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Handle:        u.Handle,
		DisplayHandle: directory.FormatHandle(u.Handle),
		Name:          u.Name,
		LastSeenAt:    u.LastSeenAt,
	}
}

func NewMeResponse(u *models.User) MeResponse {
	return MeResponse{UserResponse: NewUserResponse(u), Email: u.Email, CreatedAt: u.CreatedAt}
}
