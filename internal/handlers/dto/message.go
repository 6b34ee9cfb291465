package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/thereayou/chat-relay/internal/messagelog"
	"github.com/thereayou/chat-relay/internal/models"
)

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type MessageResponse struct {
	ID        uuid.UUID `json:"messageId"`
	RoomID    uuid.UUID `json:"roomId"`
	SenderID  uuid.UUID `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Seq       int64     `json:"seq"`
}

type HistoryResponse struct {
	Messages   []MessageResponse `json:"messages"`
	NextCursor string            `json:"nextCursor"`
	HasMore    bool              `json:"hasMore"`
}

func NewMessageResponse(m *models.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		Seq:       m.Seq,
	}
}

func NewHistoryResponse(p messagelog.Page) HistoryResponse {
	return HistoryResponse{
		Messages: lo.Map(p.Messages, func(m models.Message, _ int) MessageResponse {
			return NewMessageResponse(&m)
		}),
		NextCursor: p.NextCursor,
		HasMore:    p.HasMore,
	}
}
