// Package gateway binds a client connection to an identity and to the hub
// topics it is allowed to see.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/thereayou/chat-relay/internal/apperr"
	"github.com/thereayou/chat-relay/internal/models"
	"github.com/thereayou/chat-relay/internal/realtime"
)

type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateSubscribed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateSubscribed:
		return "subscribed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var errSessionClosed = apperr.New(apperr.KindInvalidOperation, "session is closed")

// Session is the per-connection state machine:
// Unauthenticated -> Authenticated -> Subscribed -> Closed. Any state may
// move to Closed.
type Session struct {
	hub   *realtime.Hub
	auth  Authenticator
	rooms Rooms
	log   *slog.Logger

	mu    sync.Mutex
	state State
	user  *models.User
	sub   *realtime.Subscriber
	subs  map[uuid.UUID]struct{}
}

func NewSession(hub *realtime.Hub, auth Authenticator, rooms Rooms, log *slog.Logger) *Session {
	return &Session{
		hub:   hub,
		auth:  auth,
		rooms: rooms,
		log:   log,
		subs:  make(map[uuid.UUID]struct{}),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User is nil until the session is authenticated.
func (s *Session) User() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Session) Subscriber() *realtime.Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub
}

func (s *Session) Rooms() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]uuid.UUID, 0, len(s.subs))
	for id := range s.subs {
		rooms = append(rooms, id)
	}
	return rooms
}

// Authenticate binds the session to the token's user and subscribes it to
// the user's room list topic.
func (s *Session) Authenticate(ctx context.Context, token string) (*models.User, error) {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return nil, errSessionClosed
	case StateUnauthenticated:
	default:
		s.mu.Unlock()
		return nil, apperr.New(apperr.KindInvalidOperation, "session is already authenticated")
	}
	s.mu.Unlock()

	user, err := s.auth.Authenticate(ctx, token)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindTimeout {
			err = apperr.Wrap(apperr.KindAuthFailed, apperr.ErrAuthFailed.Msg, err)
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnauthenticated {
		return nil, errSessionClosed
	}
	sub := s.hub.NewSubscriber(user.ID)
	if err := s.hub.Subscribe(sub, realtime.UserTopic(user.ID)); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "subscribe room list", err)
	}
	s.user, s.sub, s.state = user, sub, StateAuthenticated
	s.log.Debug("session authenticated", "user", user.ID, "subscriber", sub.ID)
	return user, nil
}

// Subscribe starts delivering the room's messages to this session. The user
// must be a participant of the room.
func (s *Session) Subscribe(ctx context.Context, roomID uuid.UUID) error {
	user, err := s.authenticated()
	if err != nil {
		return err
	}
	ok, err := s.rooms.IsParticipant(ctx, roomID, user.ID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.KindForbidden, "not a participant of this room")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return errSessionClosed
	}
	if err := s.hub.Subscribe(s.sub, realtime.RoomTopic(roomID)); err != nil {
		if errors.Is(err, realtime.ErrSubscriberClosed) || errors.Is(err, realtime.ErrHubClosed) {
			return errSessionClosed
		}
		return err
	}
	s.subs[roomID] = struct{}{}
	s.state = StateSubscribed
	return nil
}

// Unsubscribe is a no-op for rooms the session never subscribed to.
func (s *Session) Unsubscribe(roomID uuid.UUID) error {
	if _, err := s.authenticated(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return errSessionClosed
	}
	if _, ok := s.subs[roomID]; !ok {
		return nil
	}
	s.hub.Unsubscribe(s.sub, realtime.RoomTopic(roomID))
	delete(s.subs, roomID)
	if len(s.subs) == 0 {
		s.state = StateAuthenticated
	}
	return nil
}

// Disconnect releases every hub entry of the session. It is safe to call more
// than once and from any goroutine.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed
	s.subs = make(map[uuid.UUID]struct{})
	if s.sub != nil {
		s.hub.Release(s.sub, nil)
	}
}

func (s *Session) authenticated() (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateClosed:
		return nil, errSessionClosed
	case StateUnauthenticated:
		return nil, apperr.New(apperr.KindAuthFailed, "authenticate first")
	}
	return s.user, nil
}
