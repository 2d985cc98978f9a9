package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/momspace/momspace_backend/models"
	"github.com/momspace/momspace_backend/utils"
	"github.com/momspace/momspace_backend/websocket"
)

// DefaultExpiryCheckInterval is the production cadence for expiry polls.
const DefaultExpiryCheckInterval = time.Minute

// ErrNoActiveRoom rejects sends issued while no room is held.
var ErrNoActiveRoom = errors.New("no active room")

// Clock abstracts time so rotation is testable without waiting an hour.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// RoomState is the lifecycle position of an anonymous room session.
type RoomState int

const (
	StateNoRoom RoomState = iota
	StateHasRoom
	StateExpired
)

// AnonRoomSession drives the rotating anonymous room: it allocates the
// current room, polls for expiry against an injected clock and rotates by
// re-entering once the room has lapsed. Messages carry a fresh per-send
// pseudonym, so two sends from the same device cannot be correlated.
type AnonRoomSession struct {
	gw    Gateway
	feed  Feed
	clock Clock

	mu         sync.Mutex
	state      RoomState
	room       *models.AnonymousRoom
	messages   []models.Message
	lastErr    string
	retryAfter int
	cancelFeed func()
	done       chan struct{}
	closeOnce  sync.Once
}

// NewAnonRoomSession creates a session. A nil clock uses real time.
func NewAnonRoomSession(gw Gateway, feed Feed, clock Clock) *AnonRoomSession {
	if clock == nil {
		clock = systemClock{}
	}
	return &AnonRoomSession{
		gw:    gw,
		feed:  feed,
		clock: clock,
		done:  make(chan struct{}),
	}
}

// Enter allocates the current room and loads its backlog. On failure the
// session stays in NO_ROOM with the error surfaced; retry is manual.
func (s *AnonRoomSession) Enter(ctx context.Context) error {
	room, err := s.gw.CurrentAnonRoom(ctx)
	if err != nil {
		s.mu.Lock()
		s.state = StateNoRoom
		s.room = nil
		s.lastErr = err.Error()
		s.mu.Unlock()
		return err
	}

	messages, err := s.gw.AnonRoomMessages(ctx, room.ID)

	s.mu.Lock()
	s.state = StateHasRoom
	s.room = room
	s.messages = messages
	s.retryAfter = 0
	if err != nil {
		s.lastErr = err.Error()
	} else {
		s.lastErr = ""
	}
	oldCancel := s.cancelFeed
	s.cancelFeed = nil
	s.mu.Unlock()

	// Move the feed subscription over to the new room
	if oldCancel != nil {
		oldCancel()
	}
	events, cancel, subErr := s.feed.Subscribe(websocket.AnonRoomTopic(room.ID))
	if subErr != nil {
		s.mu.Lock()
		s.lastErr = subErr.Error()
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	s.cancelFeed = cancel
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-s.done:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				s.applyEvent(room.ID, ev)
			}
		}
	}()
	return nil
}

// CheckExpiry compares the clock against the room's expiry and rotates by
// re-entering when it has passed. Returns true when a rotation happened.
func (s *AnonRoomSession) CheckExpiry(ctx context.Context) bool {
	s.mu.Lock()
	expired := s.state == StateHasRoom && s.room != nil && s.room.Expired(s.clock.Now())
	if expired {
		s.state = StateExpired
	}
	s.mu.Unlock()

	if !expired {
		return false
	}

	// Rotation is client-observed: the server allocates the next slot
	s.Enter(ctx)
	return true
}

// Run polls for expiry at the given interval until the context is
// cancelled or the session is closed.
func (s *AnonRoomSession) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultExpiryCheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.CheckExpiry(ctx)
		}
	}
}

// Send validates content and posts it under a fresh pseudonym. Sends
// without an active room are rejected locally. A server cool-down is
// surfaced through RetryAfterSeconds instead of the generic error.
func (s *AnonRoomSession) Send(ctx context.Context, content string) error {
	if v := utils.ValidateAnonContent(content); !v.IsValid {
		return ErrInvalidMessage
	}

	s.mu.Lock()
	if s.state == StateHasRoom && s.room != nil && s.room.Expired(s.clock.Now()) {
		s.state = StateExpired
	}
	if s.state != StateHasRoom || s.room == nil {
		s.mu.Unlock()
		return ErrNoActiveRoom
	}
	roomID := s.room.ID
	displayName := fmt.Sprintf("anon_%d", s.clock.Now().UnixMilli())
	s.mu.Unlock()

	_, err := s.gw.SendAnonMessage(ctx, roomID, content, displayName)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		var rateErr *RateLimitError
		if errors.As(err, &rateErr) {
			s.retryAfter = rateErr.RetryAfterSeconds
			return err
		}
		s.lastErr = err.Error()
		return err
	}

	s.retryAfter = 0
	s.lastErr = ""
	return nil
}

// applyEvent merges a feed event for the active room: inserts append
// deduplicated by id, updates replace the matching row.
func (s *AnonRoomSession) applyEvent(roomID string, ev FeedEvent) {
	if ev.Message.AnonRoomID == nil || *ev.Message.AnonRoomID != roomID {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.room == nil || s.room.ID != roomID {
		return
	}

	switch ev.Type {
	case websocket.EventMessageCreated:
		for _, m := range s.messages {
			if m.ID == ev.Message.ID {
				return
			}
		}
		s.messages = append(s.messages, ev.Message)
	case websocket.EventMessageUpdated:
		for i := range s.messages {
			if s.messages[i].ID == ev.Message.ID {
				s.messages[i] = ev.Message
				return
			}
		}
	}
}

// Close cancels the feed subscription and stops the poll loop.
func (s *AnonRoomSession) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		cancel := s.cancelFeed
		s.cancelFeed = nil
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	})
}

// State returns the session's lifecycle position.
func (s *AnonRoomSession) State() RoomState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Room returns the active room, or nil.
func (s *AnonRoomSession) Room() *models.AnonymousRoom {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// Messages returns a snapshot of the room's message list.
func (s *AnonRoomSession) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// RetryAfterSeconds returns the active cool-down, zero when none.
func (s *AnonRoomSession) RetryAfterSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryAfter
}

// Err returns the last generic error surfaced by this session.
func (s *AnonRoomSession) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
