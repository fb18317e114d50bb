package notification

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/example/chefmarket/internal/metrics"
)

const (
	// SubscriberBufferSize is the per-subscriber channel depth
	SubscriberBufferSize = 16

	// SendTimeout bounds how long Publish waits on a full subscriber
	// buffer before skipping it. Delivery to other subscribers and the
	// upstream consumer never block on one slow client.
	SendTimeout = 100 * time.Millisecond
)

// Notification types pushed to subscribers
const (
	TypeOrderStatus = "order_status"
	TypeProgress    = "progress"
	TypeGroupOrder  = "group_order"
)

// Notification is one push message. Payload carries the originating event
// verbatim so clients decode by Type.
type Notification struct {
	Type     string          `json:"type"`
	EntityID string          `json:"entity_id"`
	Payload  json.RawMessage `json:"payload"`
	At       time.Time       `json:"at"`
}

// Subscription is one client's feed. Topics are entity ids (an order, a
// group order) or actor ids.
type Subscription struct {
	hub    *Hub
	topics map[string]bool
	ch     chan Notification
	once   sync.Once
}

// Channel returns the receive side of the subscription
func (s *Subscription) Channel() <-chan Notification {
	return s.ch
}

// Close detaches the subscription and closes its channel
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
	})
}

// Hub fans notifications out to in-process subscribers. Per topic, each
// subscriber receives notifications in publish order; a subscriber that
// cannot drain its buffer within the send timeout misses messages rather
// than stalling everyone else.
type Hub struct {
	mu          sync.RWMutex
	subs        map[string]map[*Subscription]bool
	sendTimeout time.Duration
}

func NewHub() *Hub {
	return &Hub{
		subs:        make(map[string]map[*Subscription]bool),
		sendTimeout: SendTimeout,
	}
}

// Subscribe registers a feed for the given topics
func (h *Hub) Subscribe(topics ...string) *Subscription {
	sub := &Subscription{
		hub:    h,
		topics: make(map[string]bool, len(topics)),
		ch:     make(chan Notification, SubscriberBufferSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range topics {
		sub.topics[topic] = true
		if h.subs[topic] == nil {
			h.subs[topic] = make(map[*Subscription]bool)
		}
		h.subs[topic][sub] = true
	}
	return sub
}

// unsubscribe detaches a subscription and closes its channel. The write
// lock guarantees no Publish is mid-send on the channel being closed.
func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic := range sub.topics {
		delete(h.subs[topic], sub)
		if len(h.subs[topic]) == 0 {
			delete(h.subs, topic)
		}
	}
	close(sub.ch)
}

// Publish delivers a notification to every subscriber of the topic
func (h *Hub) Publish(topic string, n Notification) {
	if n.At.IsZero() {
		n.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[topic] {
		h.send(topic, sub, n)
	}
}

func (h *Hub) send(topic string, sub *Subscription, n Notification) {
	select {
	case sub.ch <- n:
		metrics.NotificationsDelivered.Inc()
		return
	default:
	}

	timer := time.NewTimer(h.sendTimeout)
	defer timer.Stop()

	select {
	case sub.ch <- n:
		metrics.NotificationsDelivered.Inc()
	case <-timer.C:
		metrics.NotificationsDropped.Inc()
		log.Printf("[Notifier] Dropped %s notification on topic %s: subscriber too slow", n.Type, topic)
	}
}

// SubscriberCount reports how many subscriptions a topic currently has
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}
