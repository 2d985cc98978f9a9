package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// Hub maintains the set of active clients and fans change events out to
// topic subscribers. Topics identify a channel or an anonymous room.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Topic subscriptions (topic -> clients)
	topics map[string]map[*Client]bool

	// Mutex for topics map
	topicsMux sync.RWMutex

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client
}

// NewHub creates a new hub instance
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		topics:     make(map[string]map[*Client]bool),
	}
}

// ChannelTopic is the subscription key for a channel's message stream.
func ChannelTopic(channelID uint) string {
	return fmt.Sprintf("channel:%d", channelID)
}

// AnonRoomTopic is the subscription key for an anonymous room.
func AnonRoomTopic(roomID string) string {
	return "anon:" + roomID
}

// Run starts the hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)

				// Drop the client's subscriptions
				h.topicsMux.Lock()
				for topic, clients := range h.topics {
					if _, ok := clients[client]; ok {
						delete(h.topics[topic], client)
						// Clean up empty topics
						if len(h.topics[topic]) == 0 {
							delete(h.topics, topic)
						}
					}
				}
				h.topicsMux.Unlock()
			}
		}
	}
}

// subscribe adds a client to a topic
func (h *Hub) subscribe(client *Client, topic string) {
	h.topicsMux.Lock()
	defer h.topicsMux.Unlock()

	if _, ok := h.topics[topic]; !ok {
		h.topics[topic] = make(map[*Client]bool)
	}
	h.topics[topic][client] = true
}

// unsubscribe removes a client from a topic
func (h *Hub) unsubscribe(client *Client, topic string) {
	h.topicsMux.Lock()
	defer h.topicsMux.Unlock()

	if _, ok := h.topics[topic]; ok {
		delete(h.topics[topic], client)
		// Clean up empty topics
		if len(h.topics[topic]) == 0 {
			delete(h.topics, topic)
		}
	}
}

// publish sends an encoded event to every subscriber of a topic. Slow
// subscribers are evicted through the unregister channel so that only the
// hub goroutine ever closes a send channel or touches the client set.
func (h *Hub) publish(topic string, message []byte) {
	h.topicsMux.RLock()
	var slow []*Client
	if clients, ok := h.topics[topic]; ok {
		for client := range clients {
			select {
			case client.send <- message:
			default:
				slow = append(slow, client)
			}
		}
	}
	h.topicsMux.RUnlock()

	for _, client := range slow {
		h.unregister <- client
	}
}

// Publish delivers a change event to every subscriber of a topic.
func (h *Hub) Publish(topic, eventType string, payload interface{}) {
	event := Event{
		Type:    eventType,
		Topic:   topic,
		Payload: payload,
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		log.Printf("error marshaling event: %v", err)
		return
	}

	h.publish(topic, eventBytes)
}
