// Package eventbus provides an in-memory publish/subscribe event bus.
// The offline index builder publishes an event after an index swap so the
// serving side can reopen its read handle without polling the filesystem.
//
// Design:
//   - Buffered Go channel per topic (buffer=100).
//   - Publish is non-blocking: drops the event silently if the buffer is full.
//   - Subscribe returns a read-only channel; the caller owns the consumption loop.
//   - No persistence: events are fire-and-forget.
package eventbus

import "sync"

// TopicIndexRebuilt is published after the builder atomically swapped a
// corpus index directory. Payload is the corpus name (string).
const TopicIndexRebuilt = "index.rebuilt"

// Event is a single published message.
type Event struct {
	Topic   string
	Payload any
}

// EventBus is the interface for publishing and subscribing to topics.
type EventBus interface {
	Publish(topic string, payload any)
	Subscribe(topic string) <-chan Event
}

const defaultBufferSize = 100

// Bus is the in-memory implementation of EventBus.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Event
}

// New returns a new in-memory Bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[string][]chan Event),
	}
}

// Subscribe registers a new subscriber for topic and returns a read-only channel.
// The caller must consume the channel to prevent dropped events on future
// Publish calls.
func (b *Bus) Subscribe(topic string) <-chan Event {
	ch := make(chan Event, defaultBufferSize)
	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers payload to every subscriber of topic without blocking.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	subs := b.subscribers[topic]
	b.mu.RUnlock()

	evt := Event{Topic: topic, Payload: payload}
	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
			// buffer full — drop event (fire-and-forget)
		}
	}
}
