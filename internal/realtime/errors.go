package realtime

import "errors"

var (
	ErrSlowConsumer     = errors.New("subscriber queue is full")
	ErrHubClosed        = errors.New("hub is shut down")
	ErrSubscriberClosed = errors.New("subscriber is released")
)
