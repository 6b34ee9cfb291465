package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Subscriber is one connection's view of the hub. The queue is bounded and
// never closed; Done is closed when the hub releases the subscriber.
type Subscriber struct {
	ID     uuid.UUID
	UserID uuid.UUID

	queue chan Event
	done  chan struct{}

	mu     sync.Mutex
	topics map[Topic]struct{}
	closed bool
	err    error
}

func newSubscriber(userID uuid.UUID, size int) *Subscriber {
	return &Subscriber{
		ID:     uuid.New(),
		UserID: userID,
		queue:  make(chan Event, size),
		done:   make(chan struct{}),
		topics: make(map[Topic]struct{}),
	}
}

func (s *Subscriber) Events() <-chan Event { return s.queue }

func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Err reports why the subscriber was released, nil while it is active or
// after a normal release.
func (s *Subscriber) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscriber) Topics() []Topic {
	s.mu.Lock()
	defer s.mu.Unlock()

	topics := make([]Topic, 0, len(s.topics))
	for t := range s.topics {
		topics = append(topics, t)
	}
	return topics
}

type deliveryResult int

const (
	delivered deliveryResult = iota
	dropped
	overflowed
)

func (s *Subscriber) deliver(evt Event) deliveryResult {
	select {
	case <-s.done:
		return dropped
	default:
	}
	select {
	case s.queue <- evt:
		return delivered
	default:
		return overflowed
	}
}
