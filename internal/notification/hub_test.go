package notification

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func note(i int) Notification {
	payload, _ := json.Marshal(map[string]int{"seq": i})
	return Notification{Type: TypeOrderStatus, EntityID: "order-1", Payload: payload}
}

func seq(n Notification) int {
	var m map[string]int
	_ = json.Unmarshal(n.Payload, &m)
	return m["seq"]
}

func TestHub_DeliversToSubscriber(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("order-1")
	defer sub.Close()

	hub.Publish("order-1", note(1))

	select {
	case n := <-sub.Channel():
		assert.Equal(t, TypeOrderStatus, n.Type)
		assert.Equal(t, 1, seq(n))
		assert.False(t, n.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("notification never arrived")
	}
}

func TestHub_PerTopicOrdering(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("order-1")
	defer sub.Close()

	for i := 0; i < 10; i++ {
		hub.Publish("order-1", note(i))
	}

	for i := 0; i < 10; i++ {
		select {
		case n := <-sub.Channel():
			assert.Equal(t, i, seq(n), "notifications must arrive in publish order")
		case <-time.After(time.Second):
			t.Fatalf("notification %d never arrived", i)
		}
	}
}

func TestHub_MultipleSubscribers(t *testing.T) {
	hub := NewHub()
	sub1 := hub.Subscribe("order-1")
	defer sub1.Close()
	sub2 := hub.Subscribe("order-1")
	defer sub2.Close()

	hub.Publish("order-1", note(1))

	for _, sub := range []*Subscription{sub1, sub2} {
		select {
		case n := <-sub.Channel():
			assert.Equal(t, 1, seq(n))
		case <-time.After(time.Second):
			t.Fatal("notification never arrived")
		}
	}
}

func TestHub_TopicIsolation(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("order-1")
	defer sub.Close()

	hub.Publish("order-2", note(1))

	select {
	case <-sub.Channel():
		t.Fatal("received notification for a different topic")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_MultiTopicSubscription(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("order-1", "actor-9")
	defer sub.Close()

	hub.Publish("order-1", note(1))
	hub.Publish("actor-9", note(2))

	received := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		select {
		case n := <-sub.Channel():
			received = append(received, seq(n))
		case <-time.After(time.Second):
			t.Fatal("notification never arrived")
		}
	}
	assert.ElementsMatch(t, []int{1, 2}, received)
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	hub.sendTimeout = 10 * time.Millisecond

	slow := hub.Subscribe("order-1")
	defer slow.Close()

	// Fill the buffer without draining, then overflow it
	for i := 0; i < SubscriberBufferSize+5; i++ {
		hub.Publish("order-1", note(i))
	}

	// The buffered prefix arrives intact and in order; the overflow is gone
	for i := 0; i < SubscriberBufferSize; i++ {
		select {
		case n := <-slow.Channel():
			assert.Equal(t, i, seq(n))
		case <-time.After(time.Second):
			t.Fatalf("notification %d never arrived", i)
		}
	}

	select {
	case n, ok := <-slow.Channel():
		if ok {
			t.Fatalf("expected no more notifications, got seq %d", seq(n))
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_SlowSubscriberDoesNotStallOthers(t *testing.T) {
	hub := NewHub()
	hub.sendTimeout = 10 * time.Millisecond

	slow := hub.Subscribe("order-1")
	defer slow.Close()
	fast := hub.Subscribe("order-1")
	defer fast.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < SubscriberBufferSize+5; i++ {
			hub.Publish("order-1", note(i))
		}
		close(done)
	}()

	// Drain the fast subscriber; every message must land
	for i := 0; i < SubscriberBufferSize+5; i++ {
		select {
		case n := <-fast.Channel():
			assert.Equal(t, i, seq(n))
		case <-time.After(2 * time.Second):
			t.Fatalf("fast subscriber starved at %d", i)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}
}

func TestHub_CloseRemovesSubscription(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("order-1")

	require.Equal(t, 1, hub.SubscriberCount("order-1"))

	sub.Close()

	assert.Zero(t, hub.SubscriberCount("order-1"))

	_, ok := <-sub.Channel()
	assert.False(t, ok, "channel closes with the subscription")

	// Publishing after close is a no-op
	hub.Publish("order-1", note(1))
}

func TestHub_CloseIsIdempotent(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("order-1")

	sub.Close()
	sub.Close()
}
