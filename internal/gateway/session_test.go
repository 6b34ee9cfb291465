package gateway

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/chat-relay/internal/apperr"
	"github.com/thereayou/chat-relay/internal/mocks"
	"github.com/thereayou/chat-relay/internal/models"
	"github.com/thereayou/chat-relay/internal/realtime"
	"go.uber.org/mock/gomock"
)

type sessionFixture struct {
	hub   *realtime.Hub
	auth  *mocks.MockAuthenticator
	rooms *mocks.MockRooms
	user  *models.User
}

func newSessionFixture(t *testing.T) *sessionFixture {
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return &sessionFixture{
		hub:   realtime.NewHub(log, realtime.Options{Shards: 4, QueueSize: 8}),
		auth:  mocks.NewMockAuthenticator(ctrl),
		rooms: mocks.NewMockRooms(ctrl),
		user:  &models.User{ID: uuid.New(), Handle: "alice01"},
	}
}

func (f *sessionFixture) session() *Session {
	return NewSession(f.hub, f.auth, f.rooms, logs.GetLoggerFromLevel(slog.LevelDebug))
}

func (f *sessionFixture) authenticated(t *testing.T) *Session {
	t.Helper()
	s := f.session()
	f.auth.EXPECT().Authenticate(gomock.Any(), "good").Return(f.user, nil)
	_, err := s.Authenticate(context.Background(), "good")
	require.NoError(t, err)
	return s
}

func TestSession_Lifecycle(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newSessionFixture(t)
	roomID := uuid.New()

	s := f.session()
	req.Equal(StateUnauthenticated, s.State())

	// Given a valid token
	f.auth.EXPECT().Authenticate(gomock.Any(), "good").Return(f.user, nil)
	user, err := s.Authenticate(ctx, "good")
	req.NoError(err)
	req.Equal(f.user.ID, user.ID)
	req.Equal(StateAuthenticated, s.State())
	req.Equal(1, f.hub.SubscriberCount(realtime.UserTopic(f.user.ID)))

	// When subscribing to a room the user belongs to
	f.rooms.EXPECT().IsParticipant(gomock.Any(), roomID, f.user.ID).Return(true, nil)
	req.NoError(s.Subscribe(ctx, roomID))
	req.Equal(StateSubscribed, s.State())
	req.Equal(1, f.hub.SubscriberCount(realtime.RoomTopic(roomID)))
	req.Equal([]uuid.UUID{roomID}, s.Rooms())

	// Then unsubscribing the last room returns to authenticated
	req.NoError(s.Unsubscribe(roomID))
	req.Equal(StateAuthenticated, s.State())
	req.Zero(f.hub.SubscriberCount(realtime.RoomTopic(roomID)))

	s.Disconnect()
	s.Disconnect()
	req.Equal(StateClosed, s.State())
	req.Zero(f.hub.SubscriberCount(realtime.UserTopic(f.user.ID)))
}

func TestSession_AuthenticateFailure(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t)
	s := f.session()

	f.auth.EXPECT().Authenticate(gomock.Any(), "bad").Return(nil, apperr.New(apperr.KindAuthFailed, "invalid token"))
	_, err := s.Authenticate(context.Background(), "bad")
	req.ErrorIs(err, apperr.ErrAuthFailed)
	req.Equal(StateUnauthenticated, s.State())

	// And a failed lookup is still reported as an auth failure
	f.auth.EXPECT().Authenticate(gomock.Any(), "odd").Return(nil, apperr.ErrNotFound)
	_, err = s.Authenticate(context.Background(), "odd")
	req.ErrorIs(err, apperr.ErrAuthFailed)
}

func TestSession_SubscribeRequiresAuthAndMembership(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newSessionFixture(t)
	roomID := uuid.New()

	req.ErrorIs(f.session().Subscribe(ctx, roomID), apperr.ErrAuthFailed)
	req.ErrorIs(f.session().Unsubscribe(roomID), apperr.ErrAuthFailed)

	s := f.authenticated(t)
	f.rooms.EXPECT().IsParticipant(gomock.Any(), roomID, f.user.ID).Return(false, nil)
	req.ErrorIs(s.Subscribe(ctx, roomID), apperr.ErrForbidden)
	req.Equal(StateAuthenticated, s.State())
	req.Zero(f.hub.SubscriberCount(realtime.RoomTopic(roomID)))
}

func TestSession_ClosedRejectsEverything(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newSessionFixture(t)

	s := f.authenticated(t)
	s.Disconnect()

	req.ErrorIs(s.Subscribe(ctx, uuid.New()), apperr.ErrInvalidOperation)
	_, err := s.Authenticate(ctx, "good")
	req.ErrorIs(err, apperr.ErrInvalidOperation)
	req.ErrorIs(s.Unsubscribe(uuid.New()), apperr.ErrInvalidOperation)

	// And a session that never authenticated can still be closed
	fresh := f.session()
	fresh.Disconnect()
	req.Equal(StateClosed, fresh.State())
}

func TestSession_SubscriberReleasedByHub(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture(t)
	s := f.authenticated(t)
	roomID := uuid.New()

	f.hub.Release(s.Subscriber(), realtime.ErrSlowConsumer)

	f.rooms.EXPECT().IsParticipant(gomock.Any(), roomID, f.user.ID).Return(true, nil)
	req.ErrorIs(s.Subscribe(context.Background(), roomID), apperr.ErrInvalidOperation)
}
