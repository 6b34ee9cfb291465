package gateway

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	FrameAuthenticate = "authenticate"
	FrameSubscribe    = "subscribe"
	FrameUnsubscribe  = "unsubscribe"
	FrameSend         = "message.send"
	FrameRead         = "read"
	FramePing         = "ping"

	FrameAuthenticated = "authenticated"
	FrameSubscribed    = "subscribed"
	FrameUnsubscribed  = "unsubscribed"
	FrameAck           = "message.ack"
	FramePong          = "pong"
	FrameError         = "error"
)

// Frame is the envelope of every websocket message in both directions. Ref
// is echoed back on the reply so clients can match requests.
type Frame struct {
	Type   string          `json:"type"`
	RoomID *uuid.UUID      `json:"roomId,omitempty"`
	Ref    string          `json:"ref,omitempty"`
	Token  string          `json:"token,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type SendPayload struct {
	Content string `json:"content"`
}

type ReadPayload struct {
	Seq int64 `json:"seq"`
}

type AuthenticatedPayload struct {
	UserID uuid.UUID `json:"userId"`
	Handle string    `json:"handle"`
}

type AckPayload struct {
	MessageID uuid.UUID `json:"messageId"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"createdAt"`
}

type ErrorPayload struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}
