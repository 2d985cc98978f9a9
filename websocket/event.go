package websocket

// Change-feed event types pushed to subscribers.
const (
	EventMessageCreated = "message_created"
	EventMessageUpdated = "message_updated"
)

// Client-to-server frame types.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
)

// Event is a change notification delivered over the feed.
type Event struct {
	Type    string      `json:"type"`
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload"`
}

// Frame is a message sent by a connected client.
type Frame struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
}
