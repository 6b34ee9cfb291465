package messagelog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/chat-relay/internal/apperr"
	"github.com/thereayou/chat-relay/internal/badgerstore"
	"github.com/thereayou/chat-relay/internal/mocks"
	"github.com/thereayou/chat-relay/internal/models"
	"github.com/thereayou/chat-relay/internal/realtime"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	store *badgerstore.Store
	hub   *realtime.Hub
	log   *Log
	alice *models.User
	bob   *models.User
	room  *models.Room
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	s, err := badgerstore.Open("", log)
	req.NoError(err)
	t.Cleanup(func() { _ = s.Close() })

	f := &fixture{
		store: s,
		hub:   realtime.NewHub(log, realtime.Options{Shards: 4, QueueSize: 256}),
		alice: &models.User{Handle: "alice01", Name: "Alice", Email: "alice@example.com"},
		bob:   &models.User{Handle: "bobby01", Name: "Bob", Email: "bob@example.com"},
	}
	req.NoError(s.CreateUser(ctx, f.alice))
	req.NoError(s.CreateUser(ctx, f.bob))
	key := models.DirectPairKey(f.alice.ID, f.bob.ID)
	f.room = &models.Room{Type: models.RoomTypeDirect, PairKey: &key}
	req.NoError(s.CreateRoom(ctx, f.room, []uuid.UUID{f.alice.ID, f.bob.ID}))
	f.log = New(s, s, f.hub, log, Options{Timeout: 5 * time.Second})
	return f
}

func (f *fixture) subscribe(t *testing.T, userID uuid.UUID, topic realtime.Topic) *realtime.Subscriber {
	t.Helper()
	sub := f.hub.NewSubscriber(userID)
	require.NoError(t, f.hub.Subscribe(sub, topic))
	return sub
}

func payloadOf(t *testing.T, evt realtime.Event) realtime.MessagePayload {
	t.Helper()
	var p realtime.MessagePayload
	require.NoError(t, json.Unmarshal(evt.Data, &p))
	return p
}

func TestAppend_OrderedAndBroadcast(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	sub := f.subscribe(t, f.bob.ID, realtime.RoomTopic(f.room.ID))

	// When A, B, C are appended
	var appended []*models.Message
	for _, content := range []string{"A", "B", "C"} {
		msg, err := f.log.Append(ctx, f.room.ID, f.alice.ID, content)
		req.NoError(err)
		appended = append(appended, msg)
	}

	// Then history returns them in order with increasing timestamps
	page, err := f.log.FetchHistory(ctx, f.bob.ID, f.room.ID, HistoryQuery{})
	req.NoError(err)
	req.Len(page.Messages, 3)
	for i, m := range page.Messages {
		req.Equal(appended[i].ID, m.ID)
		req.Equal(string(rune('A'+i)), m.Content)
		if i > 0 {
			req.True(m.CreatedAt.After(page.Messages[i-1].CreatedAt))
		}
	}
	req.False(page.HasMore)

	// And the subscriber already holds the events in the same order
	req.Len(sub.Events(), 3)
	for i := 0; i < 3; i++ {
		p := payloadOf(t, <-sub.Events())
		req.Equal(appended[i].ID, p.MessageID)
		req.EqualValues(i+1, p.Seq)
	}
}

func TestAppend_RejectsNonParticipantAndEmpty(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	eve := &models.User{Handle: "evelyn1", Name: "Eve", Email: "eve@example.com"}
	req.NoError(f.store.CreateUser(ctx, eve))
	sub := f.subscribe(t, f.bob.ID, realtime.RoomTopic(f.room.ID))

	_, err := f.log.Append(ctx, f.room.ID, eve.ID, "hello")
	req.ErrorIs(err, apperr.ErrForbidden)

	_, err = f.log.Append(ctx, f.room.ID, f.alice.ID, "   \n ")
	req.ErrorIs(err, apperr.ErrInvalidOperation)

	_, err = f.log.Append(ctx, f.room.ID, f.alice.ID, string(make([]rune, MaxContentLength+1)))
	req.ErrorIs(err, apperr.ErrInvalidOperation)

	// Then nothing was stored or broadcast
	page, err := f.log.FetchHistory(ctx, f.alice.ID, f.room.ID, HistoryQuery{})
	req.NoError(err)
	req.Empty(page.Messages)
	req.Empty(sub.Events())
}

func TestAppend_ConcurrentSendersObserveOneOrder(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	first := f.subscribe(t, f.alice.ID, realtime.RoomTopic(f.room.ID))
	second := f.subscribe(t, f.bob.ID, realtime.RoomTopic(f.room.ID))

	const perSender = 20
	var wg sync.WaitGroup
	errs := make(chan error, 2*perSender)
	for _, sender := range []uuid.UUID{f.alice.ID, f.bob.ID} {
		wg.Add(1)
		go func(sender uuid.UUID) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_, err := f.log.Append(ctx, f.room.ID, sender, fmt.Sprintf("%s-%d", sender, i))
				errs <- err
			}
		}(sender)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	// Then both subscribers saw the log order, one sequence apart
	for _, sub := range []*realtime.Subscriber{first, second} {
		req.Len(sub.Events(), 2*perSender)
		for want := int64(1); want <= 2*perSender; want++ {
			req.Equal(want, payloadOf(t, <-sub.Events()).Seq)
		}
	}
}

func TestAppend_PublishesUnreadToRoomLists(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	aliceList := f.subscribe(t, f.alice.ID, realtime.UserTopic(f.alice.ID))
	bobList := f.subscribe(t, f.bob.ID, realtime.UserTopic(f.bob.ID))

	_, err := f.log.Append(ctx, f.room.ID, f.alice.ID, "one")
	req.NoError(err)
	_, err = f.log.Append(ctx, f.room.ID, f.alice.ID, "two")
	req.NoError(err)

	unread := func(evt realtime.Event) realtime.RoomUpdatedPayload {
		var p realtime.RoomUpdatedPayload
		req.NoError(json.Unmarshal(evt.Data, &p))
		return p
	}
	<-bobList.Events()
	last := unread(<-bobList.Events())
	req.EqualValues(2, last.UnreadCount)
	req.Equal("two", last.LastMessage.Content)

	<-aliceList.Events()
	req.Zero(unread(<-aliceList.Events()).UnreadCount)
}

func TestFetchHistory_Paging(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	for i := 1; i <= 7; i++ {
		_, err := f.log.Append(ctx, f.room.ID, f.alice.ID, fmt.Sprint(i))
		req.NoError(err)
	}
	contents := func(p Page) []string {
		out := make([]string, 0, len(p.Messages))
		for _, m := range p.Messages {
			out = append(out, m.Content)
		}
		return out
	}

	// Forward from the start
	page, err := f.log.FetchHistory(ctx, f.bob.ID, f.room.ID, HistoryQuery{Limit: 3})
	req.NoError(err)
	req.Equal([]string{"1", "2", "3"}, contents(page))
	req.True(page.HasMore)

	page, err = f.log.FetchHistory(ctx, f.bob.ID, f.room.ID, HistoryQuery{Cursor: page.NextCursor, Limit: 3})
	req.NoError(err)
	req.Equal([]string{"4", "5", "6"}, contents(page))

	page, err = f.log.FetchHistory(ctx, f.bob.ID, f.room.ID, HistoryQuery{Cursor: page.NextCursor, Limit: 3})
	req.NoError(err)
	req.Equal([]string{"7"}, contents(page))
	req.False(page.HasMore)

	// Backward from the latest page
	page, err = f.log.FetchHistory(ctx, f.bob.ID, f.room.ID, HistoryQuery{Limit: 3, Backward: true})
	req.NoError(err)
	req.Equal([]string{"5", "6", "7"}, contents(page))
	req.True(page.HasMore)

	page, err = f.log.FetchHistory(ctx, f.bob.ID, f.room.ID, HistoryQuery{Cursor: page.NextCursor, Limit: 3, Backward: true})
	req.NoError(err)
	req.Equal([]string{"2", "3", "4"}, contents(page))

	page, err = f.log.FetchHistory(ctx, f.bob.ID, f.room.ID, HistoryQuery{Cursor: page.NextCursor, Limit: 3, Backward: true})
	req.NoError(err)
	req.Equal([]string{"1"}, contents(page))
	req.False(page.HasMore)
}

func TestFetchHistory_Errors(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.log.FetchHistory(ctx, uuid.New(), f.room.ID, HistoryQuery{})
	req.ErrorIs(err, apperr.ErrForbidden)

	_, err = f.log.FetchHistory(ctx, f.alice.ID, f.room.ID, HistoryQuery{Cursor: "not-a-cursor!"})
	req.ErrorIs(err, apperr.ErrInvalidOperation)
}

func TestFetchHistory_LimitIsCapped(t *testing.T) {
	ctrl := gomock.NewController(t)
	messages := mocks.NewMockMessageStore(ctrl)
	rooms := mocks.NewMockRoomStore(ctrl)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	l := New(messages, rooms, realtime.NewHub(log, realtime.Options{}), log, Options{})
	roomID, userID := uuid.New(), uuid.New()

	rooms.EXPECT().IsParticipant(gomock.Any(), roomID, userID).Return(true, nil)
	messages.EXPECT().ListMessages(gomock.Any(), roomID, int64(0), int64(0), MaxPageLimit+1, false).Return(nil, nil)

	page, err := l.FetchHistory(context.Background(), userID, roomID, HistoryQuery{Limit: 10_000})
	require.NoError(t, err)
	require.Empty(t, page.Messages)
}

func TestCursorRoundTrip(t *testing.T) {
	req := require.New(t)
	seq, err := DecodeCursor(EncodeCursor(42))
	req.NoError(err)
	req.EqualValues(42, seq)

	seq, err = DecodeCursor("")
	req.NoError(err)
	req.Zero(seq)

	_, err = DecodeCursor(EncodeCursor(-1))
	req.ErrorIs(err, apperr.ErrInvalidOperation)
}
