// Package rooms manages room membership: direct rooms between two users,
// group rooms, read pointers and the per-user room list.
package rooms

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/thereayou/chat-relay/internal/apperr"
	"github.com/thereayou/chat-relay/internal/models"
	"github.com/thereayou/chat-relay/internal/realtime"
	"github.com/thereayou/chat-relay/internal/store"
)

// createAttempts bounds the find-or-create loop. One lost race is enough to
// see the winner's room on the next read.
const createAttempts = 3

type Publisher interface {
	Publish(topic realtime.Topic, evt realtime.Event) int
}

type RoomSummary struct {
	RoomID       uuid.UUID
	Type         string
	Others       []models.User
	LastMessage  *models.Message
	UnreadCount  int64
	LastActivity time.Time
}

type Service struct {
	rooms    store.RoomStore
	users    store.UserStore
	messages store.MessageStore
	events   Publisher
	log      *slog.Logger
	timeout  time.Duration
}

func NewService(rooms store.RoomStore, users store.UserStore, messages store.MessageStore, events Publisher, log *slog.Logger, timeout time.Duration) *Service {
	return &Service{rooms: rooms, users: users, messages: messages, events: events, log: log, timeout: timeout}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// FindOrCreateDirectRoom returns the single direct room shared by a and b,
// creating it on first use. Concurrent callers get the same room.
func (s *Service) FindOrCreateDirectRoom(ctx context.Context, a, b uuid.UUID) (*models.Room, error) {
	if a == b {
		return nil, apperr.New(apperr.KindInvalidOperation, "cannot open a direct room with yourself")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	for _, id := range []uuid.UUID{a, b} {
		if _, err := s.users.GetUser(ctx, id); err != nil {
			return nil, apperr.FromContext(err)
		}
	}

	key := models.DirectPairKey(a, b)
	var lastErr error
	for attempt := 0; attempt < createAttempts; attempt++ {
		room, err := s.rooms.FindDirectRoom(ctx, key)
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.FromContext(err)
		}

		room = &models.Room{ID: uuid.New(), Type: models.RoomTypeDirect, PairKey: &key, CreatedAt: time.Now().UTC()}
		err = s.rooms.CreateRoom(ctx, room, []uuid.UUID{a, b})
		if err == nil {
			s.log.Info("direct room created", "room", room.ID, "a", a, "b", b)
			s.announce(room.ID, a, b)
			return room, nil
		}
		if !errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.FromContext(err)
		}
		s.log.Debug("direct room creation lost a race, re-reading", "pair", key, "attempt", attempt+1)
		lastErr = err
	}
	return nil, lastErr
}

// CreateGroupRoom always creates a new room. The creator is a member even
// when absent from memberIDs.
func (s *Service) CreateGroupRoom(ctx context.Context, creator uuid.UUID, memberIDs []uuid.UUID) (*models.Room, error) {
	members := lo.Uniq(append([]uuid.UUID{creator}, memberIDs...))
	if len(members) < 2 {
		return nil, apperr.New(apperr.KindInvalidOperation, "a group room needs at least two participants")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	room := &models.Room{ID: uuid.New(), Type: models.RoomTypeGroup, CreatedAt: time.Now().UTC()}
	if err := s.rooms.CreateRoom(ctx, room, members); err != nil {
		return nil, apperr.FromContext(err)
	}
	s.log.Info("group room created", "room", room.ID, "members", len(members))
	s.announce(room.ID, members...)
	return room, nil
}

// AddParticipant adds userID to a group room on behalf of actor, who must
// already be a participant. Adding an existing member is a no-op.
func (s *Service) AddParticipant(ctx context.Context, actor, roomID, userID uuid.UUID) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return apperr.FromContext(err)
	}
	if room.Type == models.RoomTypeDirect {
		return apperr.New(apperr.KindInvalidOperation, "direct rooms have exactly two participants")
	}
	if !room.HasParticipant(actor) {
		return apperr.New(apperr.KindForbidden, "not a participant of this room")
	}
	if room.HasParticipant(userID) {
		return nil
	}
	if err := s.rooms.AddParticipant(ctx, roomID, userID); err != nil {
		return apperr.FromContext(err)
	}
	s.announce(roomID, userID)
	return nil
}

func (s *Service) IsParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ok, err := s.rooms.IsParticipant(ctx, roomID, userID)
	return ok, apperr.FromContext(err)
}

// MarkRead advances the user's read pointer and pushes the new unread count
// to the user's other connections.
func (s *Service) MarkRead(ctx context.Context, roomID, userID uuid.UUID, seq int64) (*models.Participant, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := s.rooms.MarkRead(ctx, roomID, userID, seq)
	if err != nil {
		return nil, apperr.FromContext(err)
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, apperr.FromContext(err)
	}
	evt, err := realtime.NewRoomUpdatedEvent(roomID, nil, p.Unread(room.LastSeq))
	if err != nil {
		return nil, err
	}
	s.events.Publish(realtime.UserTopic(userID), evt)
	return p, nil
}

// ListRoomsForUser returns the user's rooms, most recently active first.
func (s *Service) ListRoomsForUser(ctx context.Context, userID uuid.UUID) ([]RoomSummary, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rooms, err := s.rooms.ListUserRooms(ctx, userID)
	if err != nil {
		return nil, apperr.FromContext(err)
	}

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summary := RoomSummary{
			RoomID:       room.ID,
			Type:         room.Type,
			LastActivity: room.CreatedAt,
			Others: lo.FilterMap(room.Participants, func(p models.Participant, _ int) (models.User, bool) {
				return p.User, p.UserID != userID
			}),
		}
		if me, ok := room.Participant(userID); ok {
			summary.UnreadCount = me.Unread(room.LastSeq)
		}
		if room.LastSeq > 0 {
			last, err := s.messages.GetMessageBySeq(ctx, room.ID, room.LastSeq)
			if err != nil {
				return nil, apperr.FromContext(err)
			}
			summary.LastMessage = last
			summary.LastActivity = last.CreatedAt
		}
		summaries = append(summaries, summary)
	}

	slices.SortFunc(summaries, func(x, y RoomSummary) int {
		if c := y.LastActivity.Compare(x.LastActivity); c != 0 {
			return c
		}
		return cmp.Compare(x.RoomID.String(), y.RoomID.String())
	})
	return summaries, nil
}

// announce tells each user's room list about a room they can now see.
func (s *Service) announce(roomID uuid.UUID, users ...uuid.UUID) {
	evt, err := realtime.NewRoomUpdatedEvent(roomID, nil, 0)
	if err != nil {
		s.log.Error("encode room event", "room", roomID, "error", err)
		return
	}
	for _, u := range users {
		s.events.Publish(realtime.UserTopic(u), evt)
	}
}
