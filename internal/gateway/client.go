package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/thereayou/chat-relay/internal/apperr"
	"github.com/thereayou/chat-relay/internal/realtime"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendQueueSize  = 64
)

type RateLimit struct {
	PerSecond float64
	Burst     int
}

// Client pumps frames between one websocket connection and its Session.
// Replies go through the client's own queue, hub events through the
// session's subscriber queue; both are drained by the single writer.
type Client struct {
	conn     *websocket.Conn
	session  *Session
	messages MessageLog
	rooms    Rooms
	limiter  *rate.Limiter
	log      *slog.Logger

	send      chan Frame
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, session *Session, messages MessageLog, rooms Rooms, limit RateLimit, log *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	limiter := rate.NewLimiter(rate.Inf, 0)
	if limit.PerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(limit.PerSecond), max(limit.Burst, 1))
	}
	return &Client{
		conn:     conn,
		session:  session,
		messages: messages,
		rooms:    rooms,
		limiter:  limiter,
		log:      log,
		send:     make(chan Frame, sendQueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Serve runs the writer in a new goroutine and the reader on the caller's.
// It returns once the connection is closed. A session authenticated during
// the upgrade is confirmed with an authenticated frame.
func (c *Client) Serve() {
	if user := c.session.User(); user != nil {
		c.reply(FrameAuthenticated, "", nil, AuthenticatedPayload{UserID: user.ID, Handle: user.Handle})
	}
	go c.WritePump()
	c.ReadPump()
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.session.Disconnect()
		_ = c.conn.Close()
	})
}

func (c *Client) ReadPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read", "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.replyError("", apperr.New(apperr.KindInvalidOperation, "malformed frame"))
			continue
		}
		if !c.limiter.Allow() {
			c.replyError(f.Ref, apperr.New(apperr.KindInvalidOperation, "rate limit exceeded"))
			continue
		}
		c.handle(f)
	}
}

func (c *Client) handle(f Frame) {
	switch f.Type {
	case FrameAuthenticate:
		user, err := c.session.Authenticate(c.ctx, f.Token)
		if err != nil {
			c.replyError(f.Ref, err)
			return
		}
		c.reply(FrameAuthenticated, f.Ref, nil, AuthenticatedPayload{UserID: user.ID, Handle: user.Handle})

	case FrameSubscribe, FrameUnsubscribe:
		if f.RoomID == nil {
			c.replyError(f.Ref, apperr.New(apperr.KindInvalidOperation, "roomId is required"))
			return
		}
		var err error
		reply := FrameSubscribed
		if f.Type == FrameSubscribe {
			err = c.session.Subscribe(c.ctx, *f.RoomID)
		} else {
			err = c.session.Unsubscribe(*f.RoomID)
			reply = FrameUnsubscribed
		}
		if err != nil {
			c.replyError(f.Ref, err)
			return
		}
		c.reply(reply, f.Ref, f.RoomID, nil)

	case FrameSend:
		c.handleSend(f)

	case FrameRead:
		c.handleRead(f)

	case FramePing:
		c.reply(FramePong, f.Ref, nil, nil)

	default:
		c.replyError(f.Ref, apperr.New(apperr.KindInvalidOperation, "unknown frame type"))
	}
}

func (c *Client) handleSend(f Frame) {
	user := c.session.User()
	if user == nil {
		c.replyError(f.Ref, apperr.New(apperr.KindAuthFailed, "authenticate first"))
		return
	}
	var payload SendPayload
	if f.RoomID == nil || json.Unmarshal(f.Data, &payload) != nil {
		c.replyError(f.Ref, apperr.New(apperr.KindInvalidOperation, "roomId and data.content are required"))
		return
	}
	msg, err := c.messages.Append(c.ctx, *f.RoomID, user.ID, payload.Content)
	if err != nil {
		c.replyError(f.Ref, err)
		return
	}
	c.reply(FrameAck, f.Ref, f.RoomID, AckPayload{MessageID: msg.ID, Seq: msg.Seq, CreatedAt: msg.CreatedAt})
}

// handleRead has no direct reply; the new unread count arrives as a
// room.updated event on the user's room list.
func (c *Client) handleRead(f Frame) {
	user := c.session.User()
	if user == nil {
		c.replyError(f.Ref, apperr.New(apperr.KindAuthFailed, "authenticate first"))
		return
	}
	var payload ReadPayload
	if f.RoomID == nil || json.Unmarshal(f.Data, &payload) != nil {
		c.replyError(f.Ref, apperr.New(apperr.KindInvalidOperation, "roomId and data.seq are required"))
		return
	}
	if _, err := c.rooms.MarkRead(c.ctx, *f.RoomID, user.ID, payload.Seq); err != nil {
		c.replyError(f.Ref, err)
	}
}

func (c *Client) reply(frameType, ref string, roomID *uuid.UUID, data any) {
	f := Frame{Type: frameType, Ref: ref, RoomID: roomID}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			c.log.Error("encode reply", "type", frameType, "error", err)
			return
		}
		f.Data = raw
	}
	select {
	case c.send <- f:
	case <-c.ctx.Done():
	default:
		c.log.Warn("reply queue full, closing connection")
		c.close()
	}
}

func (c *Client) replyError(ref string, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		c.log.Error("websocket request failed", "ref", ref, "error", err)
	}
	c.reply(FrameError, ref, nil, ErrorPayload{Kind: string(kind), Error: apperr.Message(err)})
}

// WritePump is the only writer of the connection. It picks up the session's
// subscriber once authentication has happened.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		var events <-chan realtime.Event
		var released <-chan struct{}
		sub := c.session.Subscriber()
		if sub != nil {
			events, released = sub.Events(), sub.Done()
		}

		select {
		case <-c.ctx.Done():
			c.writeClose(websocket.CloseNormalClosure, "")
			return

		case f := <-c.send:
			if err := c.write(f); err != nil {
				return
			}

		case evt := <-events:
			f := Frame{Type: string(evt.Type), RoomID: &evt.RoomID, Data: evt.Data}
			if err := c.write(f); err != nil {
				return
			}

		case <-released:
			reason := sub.Err()
			if errors.Is(reason, realtime.ErrSlowConsumer) {
				c.writeClose(websocket.ClosePolicyViolation, "slow consumer")
			} else {
				c.writeClose(websocket.CloseGoingAway, "server closing")
			}
			return

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(f Frame) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(f)
}

func (c *Client) writeClose(code int, text string) {
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
}
