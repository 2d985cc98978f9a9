package client

import (
	"context"
	"sync"
	"time"

	"github.com/momspace/momspace_backend/models"
)

// fakeGateway counts calls and delegates to optional per-method hooks.
type fakeGateway struct {
	mu sync.Mutex

	searchFn      func(query string, limit int) ([]SpaceResult, error)
	joinFn        func(spaceID uint) (*JoinResult, error)
	messagesFn    func(channelID, beforeID uint) (*MessagePage, error)
	sendChannelFn func(channelID uint, msg OutgoingMessage) (*models.Message, error)
	currentRoomFn func() (*models.AnonymousRoom, error)
	roomBacklogFn func(roomID string) ([]models.Message, error)
	sendAnonFn    func(roomID, content, displayName string) (*models.Message, error)

	searchCalls      int
	joinCalls        int
	leaveCalls       int
	sendChannelCalls int
	markSeenCalls    int
	sendAnonCalls    int
	reportCalls      int
}

func (g *fakeGateway) SearchSpaces(ctx context.Context, query string, limit int) ([]SpaceResult, error) {
	g.mu.Lock()
	g.searchCalls++
	g.mu.Unlock()
	if g.searchFn != nil {
		return g.searchFn(query, limit)
	}
	return nil, nil
}

func (g *fakeGateway) JoinSpace(ctx context.Context, spaceID uint) (*JoinResult, error) {
	g.mu.Lock()
	g.joinCalls++
	g.mu.Unlock()
	if g.joinFn != nil {
		return g.joinFn(spaceID)
	}
	return &JoinResult{}, nil
}

func (g *fakeGateway) LeaveSpace(ctx context.Context, spaceID uint) (bool, error) {
	g.mu.Lock()
	g.leaveCalls++
	g.mu.Unlock()
	return true, nil
}

func (g *fakeGateway) CreateSpace(ctx context.Context, req CreateSpaceRequest) (*models.Space, error) {
	return &models.Space{Name: req.Name}, nil
}

func (g *fakeGateway) ChannelMessages(ctx context.Context, channelID uint, beforeID uint) (*MessagePage, error) {
	if g.messagesFn != nil {
		return g.messagesFn(channelID, beforeID)
	}
	return &MessagePage{}, nil
}

func (g *fakeGateway) SendChannelMessage(ctx context.Context, channelID uint, msg OutgoingMessage) (*models.Message, error) {
	g.mu.Lock()
	g.sendChannelCalls++
	g.mu.Unlock()
	if g.sendChannelFn != nil {
		return g.sendChannelFn(channelID, msg)
	}
	return &models.Message{ID: 1, Content: msg.Content}, nil
}

func (g *fakeGateway) MarkSeen(ctx context.Context, channelID uint) error {
	g.mu.Lock()
	g.markSeenCalls++
	g.mu.Unlock()
	return nil
}

func (g *fakeGateway) CurrentAnonRoom(ctx context.Context) (*models.AnonymousRoom, error) {
	if g.currentRoomFn != nil {
		return g.currentRoomFn()
	}
	return nil, nil
}

func (g *fakeGateway) AnonRoomMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	if g.roomBacklogFn != nil {
		return g.roomBacklogFn(roomID)
	}
	return nil, nil
}

func (g *fakeGateway) SendAnonMessage(ctx context.Context, roomID, content, displayName string) (*models.Message, error) {
	g.mu.Lock()
	g.sendAnonCalls++
	g.mu.Unlock()
	if g.sendAnonFn != nil {
		return g.sendAnonFn(roomID, content, displayName)
	}
	return &models.Message{ID: 1, Content: content}, nil
}

func (g *fakeGateway) ReportMessage(ctx context.Context, targetID, reason string) (bool, error) {
	g.mu.Lock()
	g.reportCalls++
	g.mu.Unlock()
	return true, nil
}

func (g *fakeGateway) calls(which string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch which {
	case "join":
		return g.joinCalls
	case "sendChannel":
		return g.sendChannelCalls
	case "sendAnon":
		return g.sendAnonCalls
	case "markSeen":
		return g.markSeenCalls
	}
	return 0
}

// fakeFeed hands out one channel per subscription and records topics.
type fakeFeed struct {
	mu        sync.Mutex
	channels  map[string]chan FeedEvent
	cancelled []string
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{channels: make(map[string]chan FeedEvent)}
}

func (f *fakeFeed) Subscribe(topic string) (<-chan FeedEvent, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan FeedEvent, 16)
	f.channels[topic] = ch
	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.cancelled = append(f.cancelled, topic)
	}
	return ch, cancel, nil
}

func (f *fakeFeed) push(topic string, ev FeedEvent) {
	f.mu.Lock()
	ch := f.channels[topic]
	f.mu.Unlock()
	ch <- ev
}

// fakeClock is a settable clock for rotation tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
