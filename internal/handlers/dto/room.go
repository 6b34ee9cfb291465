package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/thereayou/chat-relay/internal/models"
	"github.com/thereayou/chat-relay/internal/rooms"
)

// DirectRoomRequest names the other user either by id or by handle.
type DirectRoomRequest struct {
	OtherUserID *uuid.UUID `json:"otherUserId"`
	OtherHandle string     `json:"otherHandle"`
}

type GroupRoomRequest struct {
	ParticipantIDs []uuid.UUID `json:"participantIds" binding:"required,min=1"`
}

type AddParticipantRequest struct {
	UserID uuid.UUID `json:"userId"`
}

type MarkReadRequest struct {
	Seq int64 `json:"seq" binding:"min=0"`
}

type ReadResponse struct {
	RoomID      uuid.UUID `json:"roomId"`
	LastReadSeq int64     `json:"lastReadSeq"`
}

type RoomResponse struct {
	ID             uuid.UUID   `json:"id"`
	Type           string      `json:"type"`
	ParticipantIDs []uuid.UUID `json:"participantIds"`
	CreatedAt      time.Time   `json:"createdAt"`
}

type RoomSummaryResponse struct {
	RoomID       uuid.UUID        `json:"roomId"`
	Type         string           `json:"type"`
	Participants []UserResponse   `json:"participants"`
	LastMessage  *MessageResponse `json:"lastMessage,omitempty"`
	UnreadCount  int64            `json:"unreadCount"`
	LastActivity time.Time        `json:"lastActivity"`
}

func NewRoomResponse(r *models.Room) RoomResponse {
	return RoomResponse{
		ID:   r.ID,
		Type: r.Type,
		ParticipantIDs: lo.Map(r.Participants, func(p models.Participant, _ int) uuid.UUID {
			return p.UserID
		}),
		CreatedAt: r.CreatedAt,
	}
}

func NewRoomSummaryResponse(s rooms.RoomSummary) RoomSummaryResponse {
	resp := RoomSummaryResponse{
		RoomID: s.RoomID,
		Type:   s.Type,
		Participants: lo.Map(s.Others, func(u models.User, _ int) UserResponse {
			return NewUserResponse(&u)
		}),
		UnreadCount:  s.UnreadCount,
		LastActivity: s.LastActivity,
	}
	if s.LastMessage != nil {
		m := NewMessageResponse(s.LastMessage)
		resp.LastMessage = &m
	}
	return resp
}
