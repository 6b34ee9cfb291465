package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/chat-relay/internal/models"
)

type EventType string

const (
	EventMessage     EventType = "message"
	EventRoomUpdated EventType = "room.updated"
)

// Topic names a fan-out channel. Room topics carry messages, user topics
// carry room list updates.
type Topic string

func RoomTopic(roomID uuid.UUID) Topic { return Topic("room:" + roomID.String()) }

func UserTopic(userID uuid.UUID) Topic { return Topic("user:" + userID.String()) }

// Event is encoded once at publish time and shared by every subscriber.
type Event struct {
	Type   EventType
	RoomID uuid.UUID
	Data   json.RawMessage
}

type MessagePayload struct {
	MessageID uuid.UUID `json:"messageId"`
	RoomID    uuid.UUID `json:"roomId"`
	SenderID  uuid.UUID `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Seq       int64     `json:"seq"`
}

type RoomUpdatedPayload struct {
	RoomID      uuid.UUID       `json:"roomId"`
	LastMessage *MessagePayload `json:"lastMessage,omitempty"`
	UnreadCount int64           `json:"unreadCount"`
}

func NewMessagePayload(m *models.Message) *MessagePayload {
	if m == nil {
		return nil
	}
	return &MessagePayload{
		MessageID: m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		Seq:       m.Seq,
	}
}

func NewMessageEvent(m *models.Message) (Event, error) {
	data, err := json.Marshal(NewMessagePayload(m))
	if err != nil {
		return Event{}, err
	}
	return Event{Type: EventMessage, RoomID: m.RoomID, Data: data}, nil
}

func NewRoomUpdatedEvent(roomID uuid.UUID, last *models.Message, unread int64) (Event, error) {
	data, err := json.Marshal(RoomUpdatedPayload{
		RoomID:      roomID,
		LastMessage: NewMessagePayload(last),
		UnreadCount: unread,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{Type: EventRoomUpdated, RoomID: roomID, Data: data}, nil
}
