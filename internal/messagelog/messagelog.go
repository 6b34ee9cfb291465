// Package messagelog is the append-only, per-room ordered message log.
//
// Append holds a per-room lock from the durable write until the event has
// been handed to every subscriber queue, so the order subscribers observe is
// the order of the log.
package messagelog

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/thereayou/chat-relay/internal/apperr"
	"github.com/thereayou/chat-relay/internal/models"
	"github.com/thereayou/chat-relay/internal/realtime"
	"github.com/thereayou/chat-relay/internal/store"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
	MaxContentLength = 4000
	defaultStripes   = 256
)

type Publisher interface {
	Publish(topic realtime.Topic, evt realtime.Event) int
}

// Membership is the subset of the room store the log needs to authorize
// history reads.
type Membership interface {
	IsParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
}

type Options struct {
	Timeout          time.Duration
	DefaultPageLimit int
	Stripes          int
}

type HistoryQuery struct {
	Cursor string
	Limit  int
	// Backward pages toward older messages. With an empty cursor it returns
	// the latest page.
	Backward bool
}

type Page struct {
	Messages   []models.Message
	NextCursor string
	HasMore    bool
}

type Log struct {
	messages store.MessageStore
	members  Membership
	events   Publisher
	log      *slog.Logger
	opts     Options
	locks    []sync.Mutex
}

func New(messages store.MessageStore, members Membership, events Publisher, log *slog.Logger, opts Options) *Log {
	if opts.Stripes <= 0 {
		opts.Stripes = defaultStripes
	}
	if opts.DefaultPageLimit <= 0 || opts.DefaultPageLimit > MaxPageLimit {
		opts.DefaultPageLimit = DefaultPageLimit
	}
	return &Log{
		messages: messages,
		members:  members,
		events:   events,
		log:      log,
		opts:     opts,
		locks:    make([]sync.Mutex, opts.Stripes),
	}
}

func (l *Log) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.opts.Timeout)
}

func (l *Log) lockFor(roomID uuid.UUID) *sync.Mutex {
	return &l.locks[xxhash.Sum64(roomID[:])%uint64(len(l.locks))]
}

// Append persists content as the next message of the room and broadcasts it.
// The server assigns the timestamp and sequence.
func (l *Log) Append(ctx context.Context, roomID, senderID uuid.UUID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.New(apperr.KindInvalidOperation, "message content is empty")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, apperr.New(apperr.KindInvalidOperation, "message content is too long")
	}

	mu := l.lockFor(roomID)
	mu.Lock()
	defer mu.Unlock()

	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	msg := &models.Message{
		ID:        uuid.New(),
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	participants, err := l.messages.AppendMessage(ctx, msg)
	if err != nil {
		return nil, apperr.FromContext(err)
	}
	l.publish(msg, participants)
	return msg, nil
}

func (l *Log) publish(msg *models.Message, participants []models.Participant) {
	evt, err := realtime.NewMessageEvent(msg)
	if err != nil {
		l.log.Error("encode message event", "message", msg.ID, "error", err)
		return
	}
	delivered := l.events.Publish(realtime.RoomTopic(msg.RoomID), evt)

	for _, p := range participants {
		update, err := realtime.NewRoomUpdatedEvent(msg.RoomID, msg, p.Unread(msg.Seq))
		if err != nil {
			l.log.Error("encode room event", "room", msg.RoomID, "error", err)
			continue
		}
		l.events.Publish(realtime.UserTopic(p.UserID), update)
	}
	l.log.Debug("message appended", "room", msg.RoomID, "seq", msg.Seq, "delivered", delivered)
}

// FetchHistory returns one page of the room's log in ascending order.
// Forward pages start strictly after the cursor, backward pages end strictly
// before it.
func (l *Log) FetchHistory(ctx context.Context, requester, roomID uuid.UUID, q HistoryQuery) (Page, error) {
	seq, err := DecodeCursor(q.Cursor)
	if err != nil {
		return Page{}, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = l.opts.DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	ok, err := l.members.IsParticipant(ctx, roomID, requester)
	if err != nil {
		return Page{}, apperr.FromContext(err)
	}
	if !ok {
		return Page{}, apperr.New(apperr.KindForbidden, "not a participant of this room")
	}

	if q.Backward {
		messages, err := l.messages.ListMessages(ctx, roomID, 0, seq, limit+1, true)
		if err != nil {
			return Page{}, apperr.FromContext(err)
		}
		page := Page{NextCursor: q.Cursor}
		if len(messages) > limit {
			messages = messages[1:]
			page.HasMore = true
		}
		if len(messages) > 0 {
			page.NextCursor = EncodeCursor(messages[0].Seq)
		}
		page.Messages = messages
		return page, nil
	}

	messages, err := l.messages.ListMessages(ctx, roomID, seq, 0, limit+1, false)
	if err != nil {
		return Page{}, apperr.FromContext(err)
	}
	page := Page{NextCursor: EncodeCursor(seq)}
	if len(messages) > limit {
		messages = messages[:limit]
		page.HasMore = true
	}
	if len(messages) > 0 {
		page.NextCursor = EncodeCursor(messages[len(messages)-1].Seq)
	}
	page.Messages = messages
	return page, nil
}
