package websocket

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(hub *Hub, buffer int) *Client {
	return &Client{
		hub:    hub,
		send:   make(chan []byte, buffer),
		topics: make(map[string]bool),
	}
}

func sendClosed(c *Client) bool {
	select {
	case _, ok := <-c.send:
		return !ok
	default:
		return false
	}
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub, 8)
	hub.register <- client
	hub.subscribe(client, ChannelTopic(1))

	hub.Publish(ChannelTopic(1), EventMessageCreated, map[string]uint{"id": 1})
	hub.Publish(ChannelTopic(2), EventMessageCreated, map[string]uint{"id": 2})

	require.Len(t, client.send, 1, "only the subscribed topic is delivered")
	raw := <-client.send
	assert.Contains(t, string(raw), EventMessageCreated)
	assert.Contains(t, string(raw), ChannelTopic(1))
}

func TestPublishEvictsSlowSubscriber(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	fast := newTestClient(hub, 8)
	slow := newTestClient(hub, 0)
	hub.register <- fast
	hub.register <- slow
	hub.subscribe(fast, ChannelTopic(1))
	hub.subscribe(slow, ChannelTopic(1))

	hub.Publish(ChannelTopic(1), EventMessageCreated, map[string]uint{"id": 1})

	assert.Eventually(t, func() bool { return sendClosed(slow) },
		time.Second, 5*time.Millisecond, "slow subscriber is dropped")

	// The fast subscriber keeps receiving
	hub.Publish(ChannelTopic(1), EventMessageCreated, map[string]uint{"id": 2})
	assert.Eventually(t, func() bool { return len(fast.send) == 2 },
		time.Second, 5*time.Millisecond)
}

func TestConcurrentPublishEvictsOnce(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := newTestClient(hub, 0)
	hub.register <- slow
	hub.subscribe(slow, ChannelTopic(1))

	// Concurrent handler-side publishes must not double-close the send
	// channel or corrupt the client set
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Publish(ChannelTopic(1), EventMessageCreated, map[string]uint{"id": 1})
		}()
	}
	wg.Wait()

	assert.Eventually(t, func() bool { return sendClosed(slow) },
		time.Second, 5*time.Millisecond)
}
