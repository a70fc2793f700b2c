// Package events fans crawler events out to server-sent-event clients.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
)

const subscriberBufSize = 256

// Feed names.
const (
	FeedState   = "state"
	FeedProduct = "product"
	FeedExport  = "export"
	FeedFault   = "fault"
)

// Event represents a single event to be sent via SSE.
type Event struct {
	Feed    string
	Payload string
}

// Publisher accepts events. The controller only needs this side of a Broker.
type Publisher interface {
	Publish(evt Event)
}

// Broker fans out events to all subscribed SSE clients.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      atomic.Int64
}

// NewBroker creates a new SSE event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[int64]chan Event),
	}
}

// Subscribe registers a new client. The channel is buffered; slow consumers
// will have events dropped.
func (b *Broker) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers without blocking.
func (b *Broker) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// ClientCount returns the number of active subscribers.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// PublishJSON marshals v as the payload of a feed event. A nil publisher is
// a no-op.
func PublishJSON(p Publisher, feed string, v any) {
	if p == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.Debug("event payload marshal failed", "feed", feed, "error", err)
		return
	}
	p.Publish(Event{Feed: feed, Payload: string(data)})
}
