package client

import (
	"encoding/json"
	"log"
	"sync"

	gorilla "github.com/gorilla/websocket"
	"github.com/momspace/momspace_backend/models"
	"github.com/momspace/momspace_backend/websocket"
)

// WebsocketFeed implements Feed over the /ws endpoint. One connection
// multiplexes any number of topic subscriptions.
type WebsocketFeed struct {
	url string

	mu     sync.Mutex
	conn   *gorilla.Conn
	subs   map[string]map[chan FeedEvent]bool
	closed bool
}

// NewWebsocketFeed prepares a feed for the given websocket URL, e.g.
// "ws://localhost:8080/ws?token=...". Call Connect before subscribing.
func NewWebsocketFeed(url string) *WebsocketFeed {
	return &WebsocketFeed{
		url:  url,
		subs: make(map[string]map[chan FeedEvent]bool),
	}
}

// Connect dials the feed and starts dispatching events.
func (f *WebsocketFeed) Connect() error {
	conn, _, err := gorilla.DefaultDialer.Dial(f.url, nil)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	go f.readLoop(conn)
	return nil
}

func (f *WebsocketFeed) readLoop(conn *gorilla.Conn) {
	defer f.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame struct {
			Type    string          `json:"type"`
			Topic   string          `json:"topic"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Printf("feed: error unmarshaling event: %v", err)
			continue
		}

		var message models.Message
		if err := json.Unmarshal(frame.Payload, &message); err != nil {
			log.Printf("feed: error unmarshaling payload: %v", err)
			continue
		}

		event := FeedEvent{Type: frame.Type, Topic: frame.Topic, Message: message}

		f.mu.Lock()
		for ch := range f.subs[frame.Topic] {
			// A slow subscriber drops events rather than stalling the feed
			select {
			case ch <- event:
			default:
			}
		}
		f.mu.Unlock()
	}
}

// Subscribe registers interest in a topic and asks the server to start
// pushing its events.
func (f *WebsocketFeed) Subscribe(topic string) (<-chan FeedEvent, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || f.conn == nil {
		return nil, nil, gorilla.ErrCloseSent
	}

	ch := make(chan FeedEvent, 64)
	if f.subs[topic] == nil {
		f.subs[topic] = make(map[chan FeedEvent]bool)
		frame := websocket.Frame{Type: websocket.FrameSubscribe, Topic: topic}
		if err := f.conn.WriteJSON(frame); err != nil {
			return nil, nil, err
		}
	}
	f.subs[topic][ch] = true

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()

		if subs, ok := f.subs[topic]; ok && subs[ch] {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(f.subs, topic)
				if f.conn != nil && !f.closed {
					frame := websocket.Frame{Type: websocket.FrameUnsubscribe, Topic: topic}
					if err := f.conn.WriteJSON(frame); err != nil {
						log.Printf("feed: error unsubscribing from %s: %v", topic, err)
					}
				}
			}
		}
	}
	return ch, cancel, nil
}

// Close tears the connection down and closes all subscriber channels.
func (f *WebsocketFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true

	if f.conn != nil {
		f.conn.Close()
	}
	for topic, subs := range f.subs {
		for ch := range subs {
			close(ch)
		}
		delete(f.subs, topic)
	}
}
