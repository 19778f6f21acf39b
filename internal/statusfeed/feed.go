package statusfeed

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"

	"github.com/hemalink/coordinator/pkg/messaging"
)

const subscriberBuffer = 16

// Source delivers raw status messages from the bus.
type Source interface {
	Subscribe(subject string, handler func(msg *nats.Msg)) error
	Unsubscribe(subject string) error
}

// Feed relays coordination status events to websocket subscribers.
// Subscribers are keyed by provider and request so an operator console
// only receives updates for the run it watches.
type Feed struct {
	source Source

	mu          sync.RWMutex
	subscribers map[string]map[uuid.UUID]*Subscriber
}

// Subscriber is one websocket consumer of a run's status stream. A
// slow subscriber drops updates rather than stalling the feed.
type Subscriber struct {
	ID      uuid.UUID
	Updates chan messaging.StatusEvent

	done     chan struct{}
	stopOnce sync.Once
}

func (s *Subscriber) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func NewFeed(source Source) *Feed {
	return &Feed{
		source:      source,
		subscribers: make(map[string]map[uuid.UUID]*Subscriber),
	}
}

// Start begins relaying from the status subject tree.
func (f *Feed) Start() error {
	return f.source.Subscribe(messaging.StatusWildcard(), f.handleStatus)
}

// Stop detaches from the bus and ends every subscriber stream.
func (f *Feed) Stop() {
	if err := f.source.Unsubscribe(messaging.StatusWildcard()); err != nil {
		log.Printf("statusfeed: unsubscribe: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for key, subs := range f.subscribers {
		for _, sub := range subs {
			sub.stop()
		}
		delete(f.subscribers, key)
	}
}

// Subscribe registers a consumer for one run's status stream.
func (f *Feed) Subscribe(providerID, requestID string) *Subscriber {
	sub := &Subscriber{
		ID:      uuid.New(),
		Updates: make(chan messaging.StatusEvent, subscriberBuffer),
		done:    make(chan struct{}),
	}

	key := streamKey(providerID, requestID)
	f.mu.Lock()
	if f.subscribers[key] == nil {
		f.subscribers[key] = make(map[uuid.UUID]*Subscriber)
	}
	f.subscribers[key][sub.ID] = sub
	f.mu.Unlock()

	return sub
}

// Unsubscribe removes a consumer and ends its stream.
func (f *Feed) Unsubscribe(subID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for key, subs := range f.subscribers {
		if sub, exists := subs[subID]; exists {
			sub.stop()
			delete(subs, subID)
		}
		if len(subs) == 0 {
			delete(f.subscribers, key)
		}
	}
}

// SubscriberCount reports active consumers for a run.
func (f *Feed) SubscriberCount(providerID, requestID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers[streamKey(providerID, requestID)])
}

func (f *Feed) handleStatus(msg *nats.Msg) {
	var event messaging.StatusEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Printf("statusfeed: decode status event: %v", err)
		return
	}
	f.dispatch(event)
}

func (f *Feed) dispatch(event messaging.StatusEvent) {
	f.mu.RLock()
	subs := f.subscribers[streamKey(event.ProviderID, event.RequestID)]
	targets := make([]*Subscriber, 0, len(subs))
	for _, sub := range subs {
		targets = append(targets, sub)
	}
	f.mu.RUnlock()

	for _, sub := range targets {
		select {
		case sub.Updates <- event:
		case <-sub.done:
		default:
			// Slow consumer, drop rather than block the feed.
		}
	}
}

func streamKey(providerID, requestID string) string {
	return providerID + "/" + requestID
}

// WebSocketHandler bridges a feed subscription onto a websocket
// connection.
type WebSocketHandler struct {
	feed     *Feed
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(feed *Feed) *WebSocketHandler {
	return &WebSocketHandler{
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Upgrader exposes the configured upgrader for the HTTP layer.
func (h *WebSocketHandler) Upgrader() *websocket.Upgrader {
	return &h.upgrader
}

// ServeWS streams one run's status events over an upgraded connection
// until the peer disconnects or the context ends.
func (h *WebSocketHandler) ServeWS(ctx context.Context, conn *websocket.Conn, providerID, requestID string) {
	sub := h.feed.Subscribe(providerID, requestID)
	defer func() {
		h.feed.Unsubscribe(sub.ID)
		conn.Close()
	}()

	// Drain reads so pings are answered and disconnects are noticed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.stop()
				return
			}
		}
	}()

	for {
		select {
		case event := <-sub.Updates:
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-sub.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
