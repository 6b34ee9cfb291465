// Package realtime routes published events to the subscribers of a topic.
//
// The registry is split into shards by topic hash, each with its own lock,
// so publishing to one room never waits on subscriptions to another. The
// hub does not order concurrent publishes to the same topic; callers that
// need a total order per topic serialize their Publish calls.
package realtime

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

const (
	DefaultShards    = 64
	DefaultQueueSize = 256
)

type Options struct {
	Shards    int
	QueueSize int
}

type shard struct {
	mu     sync.RWMutex
	topics map[Topic]map[*Subscriber]struct{}
}

type Hub struct {
	shards    []*shard
	queueSize int
	log       *slog.Logger
	closed    atomic.Bool
}

func NewHub(log *slog.Logger, opts Options) *Hub {
	if opts.Shards <= 0 {
		opts.Shards = DefaultShards
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	shards := make([]*shard, opts.Shards)
	for i := range shards {
		shards[i] = &shard{topics: make(map[Topic]map[*Subscriber]struct{})}
	}
	return &Hub{shards: shards, queueSize: opts.QueueSize, log: log}
}

func (h *Hub) shardFor(topic Topic) *shard {
	return h.shards[xxhash.Sum64String(string(topic))%uint64(len(h.shards))]
}

func (h *Hub) NewSubscriber(userID uuid.UUID) *Subscriber {
	return newSubscriber(userID, h.queueSize)
}

// Subscribe is idempotent. The subscriber lock is held while the shard entry
// is added so a concurrent Release cannot miss it.
func (h *Hub) Subscribe(sub *Subscriber, topic Topic) error {
	if h.closed.Load() {
		return ErrHubClosed
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return ErrSubscriberClosed
	}
	if _, ok := sub.topics[topic]; ok {
		return nil
	}
	sub.topics[topic] = struct{}{}

	s := h.shardFor(topic)
	s.mu.Lock()
	subs, ok := s.topics[topic]
	if !ok {
		subs = make(map[*Subscriber]struct{})
		s.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (h *Hub) Unsubscribe(sub *Subscriber, topic Topic) {
	sub.mu.Lock()
	_, ok := sub.topics[topic]
	delete(sub.topics, topic)
	sub.mu.Unlock()
	if ok {
		h.remove(sub, topic)
	}
}

func (h *Hub) remove(sub *Subscriber, topic Topic) {
	s := h.shardFor(topic)
	s.mu.Lock()
	defer s.mu.Unlock()

	if subs, ok := s.topics[topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(s.topics, topic)
		}
	}
}

// Release drops every topic of sub and closes its Done channel. reason is
// reported by Err; nil means a normal disconnect. Releasing twice is a no-op.
func (h *Hub) Release(sub *Subscriber, reason error) {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return
	}
	sub.closed = true
	sub.err = reason
	topics := sub.topics
	sub.topics = make(map[Topic]struct{})
	close(sub.done)
	sub.mu.Unlock()

	for topic := range topics {
		h.remove(sub, topic)
	}
	if reason != nil {
		h.log.Warn("subscriber released", "subscriber", sub.ID, "user", sub.UserID, "reason", reason)
	}
}

// Publish enqueues evt on every subscriber of topic and returns how many
// accepted it. A subscriber whose queue is full is released with
// ErrSlowConsumer once the shard lock is dropped.
func (h *Hub) Publish(topic Topic, evt Event) int {
	if h.closed.Load() {
		return 0
	}
	s := h.shardFor(topic)

	var slow []*Subscriber
	n := 0
	s.mu.RLock()
	for sub := range s.topics[topic] {
		switch sub.deliver(evt) {
		case delivered:
			n++
		case overflowed:
			slow = append(slow, sub)
		}
	}
	s.mu.RUnlock()

	for _, sub := range slow {
		h.Release(sub, ErrSlowConsumer)
	}
	return n
}

func (h *Hub) SubscriberCount(topic Topic) int {
	s := h.shardFor(topic)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.topics[topic])
}

// Shutdown releases every subscriber with ErrHubClosed and rejects new
// subscriptions.
func (h *Hub) Shutdown() {
	if h.closed.Swap(true) {
		return
	}
	seen := make(map[*Subscriber]struct{})
	for _, s := range h.shards {
		s.mu.RLock()
		for _, subs := range s.topics {
			for sub := range subs {
				seen[sub] = struct{}{}
			}
		}
		s.mu.RUnlock()
	}
	for sub := range seen {
		h.Release(sub, ErrHubClosed)
	}
	h.log.Info("hub shut down", "released", len(seen))
}
