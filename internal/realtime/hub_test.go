package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/chat-relay/internal/models"
)

func newTestHub(queueSize int) *Hub {
	return NewHub(logs.GetLoggerFromLevel(slog.LevelDebug), Options{Shards: 4, QueueSize: queueSize})
}

func messageEvent(t *testing.T, roomID uuid.UUID, seq int64) Event {
	t.Helper()
	evt, err := NewMessageEvent(&models.Message{ID: uuid.New(), RoomID: roomID, Seq: seq, Content: "x"})
	require.NoError(t, err)
	return evt
}

func seqOf(t *testing.T, evt Event) int64 {
	t.Helper()
	var p MessagePayload
	require.NoError(t, json.Unmarshal(evt.Data, &p))
	return p.Seq
}

func TestHub_PublishPreservesOrder(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(16)
	roomID := uuid.New()
	topic := RoomTopic(roomID)

	first, second := hub.NewSubscriber(uuid.New()), hub.NewSubscriber(uuid.New())
	req.NoError(hub.Subscribe(first, topic))
	req.NoError(hub.Subscribe(second, topic))
	req.Equal(2, hub.SubscriberCount(topic))

	// When three events are published in order
	for seq := int64(1); seq <= 3; seq++ {
		req.Equal(2, hub.Publish(topic, messageEvent(t, roomID, seq)))
	}

	// Then both subscribers observe the same order
	for _, sub := range []*Subscriber{first, second} {
		for want := int64(1); want <= 3; want++ {
			select {
			case evt := <-sub.Events():
				req.Equal(EventMessage, evt.Type)
				req.Equal(want, seqOf(t, evt))
			case <-time.After(time.Second):
				req.Fail("event not delivered")
			}
		}
	}
}

func TestHub_SubscribeIsIdempotent(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(4)
	topic := RoomTopic(uuid.New())
	sub := hub.NewSubscriber(uuid.New())

	req.NoError(hub.Subscribe(sub, topic))
	req.NoError(hub.Subscribe(sub, topic))
	req.Equal(1, hub.SubscriberCount(topic))
	req.Equal(1, hub.Publish(topic, Event{Type: EventMessage}))
}

func TestHub_Unsubscribe(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(4)
	roomID := uuid.New()
	sub := hub.NewSubscriber(uuid.New())
	req.NoError(hub.Subscribe(sub, RoomTopic(roomID)))
	req.NoError(hub.Subscribe(sub, UserTopic(sub.UserID)))

	hub.Unsubscribe(sub, RoomTopic(roomID))

	req.Zero(hub.Publish(RoomTopic(roomID), messageEvent(t, roomID, 1)))
	req.Equal([]Topic{UserTopic(sub.UserID)}, sub.Topics())
	req.Empty(sub.Events())
}

func TestHub_ReleaseDropsEveryTopic(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(4)
	sub := hub.NewSubscriber(uuid.New())
	rooms := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range rooms {
		req.NoError(hub.Subscribe(sub, RoomTopic(id)))
	}

	hub.Release(sub, nil)
	hub.Release(sub, ErrSlowConsumer)

	for _, id := range rooms {
		req.Zero(hub.SubscriberCount(RoomTopic(id)))
	}
	req.NoError(sub.Err())
	req.Empty(sub.Topics())
	select {
	case <-sub.Done():
	default:
		req.Fail("done channel not closed")
	}
	req.ErrorIs(hub.Subscribe(sub, RoomTopic(rooms[0])), ErrSubscriberClosed)
}

func TestHub_OverflowReleasesSlowSubscriber(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(2)
	roomID := uuid.New()
	topic := RoomTopic(roomID)
	slow, fast := hub.NewSubscriber(uuid.New()), hub.NewSubscriber(uuid.New())
	req.NoError(hub.Subscribe(slow, topic))
	req.NoError(hub.Subscribe(fast, topic))

	// Given the fast subscriber drains its queue and the slow one does not
	for seq := int64(1); seq <= 3; seq++ {
		hub.Publish(topic, messageEvent(t, roomID, seq))
		<-fast.Events()
	}

	// Then the slow subscriber is released and the fast one still receives
	req.ErrorIs(slow.Err(), ErrSlowConsumer)
	<-slow.Done()
	req.Equal(1, hub.SubscriberCount(topic))
	req.Equal(1, hub.Publish(topic, messageEvent(t, roomID, 4)))
	req.EqualValues(4, seqOf(t, <-fast.Events()))
}

func TestHub_ConcurrentSubscribeAndRelease(t *testing.T) {
	hub := newTestHub(8)
	topic := RoomTopic(uuid.New())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		sub := hub.NewSubscriber(uuid.New())
		go func() {
			defer wg.Done()
			_ = hub.Subscribe(sub, topic)
		}()
		go func() {
			defer wg.Done()
			hub.Release(sub, nil)
		}()
	}
	wg.Wait()

	// Then no released subscriber is left behind in the registry
	require.Zero(t, hub.SubscriberCount(topic))
}

func TestHub_Shutdown(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(4)
	sub := hub.NewSubscriber(uuid.New())
	req.NoError(hub.Subscribe(sub, UserTopic(sub.UserID)))

	hub.Shutdown()

	req.ErrorIs(sub.Err(), ErrHubClosed)
	req.Zero(hub.Publish(UserTopic(sub.UserID), Event{}))
	req.ErrorIs(hub.Subscribe(hub.NewSubscriber(uuid.New()), UserTopic(uuid.New())), ErrHubClosed)
}
