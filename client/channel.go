package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/momspace/momspace_backend/models"
	"github.com/momspace/momspace_backend/utils"
	"github.com/momspace/momspace_backend/websocket"
)

// ErrInvalidMessage is the generic rejection for sends with neither
// content nor attachments. It never reaches the network.
var ErrInvalidMessage = errors.New("invalid message")

// ChannelSession holds the in-memory message list for one channel. The
// list mixes confirmed rows with optimistic local echoes; the realtime
// feed reconciles it against the gateway.
type ChannelSession struct {
	gw        Gateway
	feed      Feed
	channelID uint

	mu         sync.Mutex
	entries    []Entry
	hasMore    bool
	unread     int
	lastErr    string
	cancelFeed func()
	done       chan struct{}
	closeOnce  sync.Once
}

func NewChannelSession(gw Gateway, feed Feed, channelID uint) *ChannelSession {
	return &ChannelSession{
		gw:        gw,
		feed:      feed,
		channelID: channelID,
		done:      make(chan struct{}),
	}
}

// Start subscribes to the channel's change feed and begins applying
// events. Call Close to tear the subscription down.
func (s *ChannelSession) Start() error {
	events, cancel, err := s.feed.Subscribe(websocket.ChannelTopic(s.channelID))
	if err != nil {
		return err
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
				s.applyEvent(ev)
			}
		}
	}()
	return nil
}

// Close cancels the feed subscription and stops event processing.
func (s *ChannelSession) Close() {
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

// LoadOlder fetches the page before the oldest confirmed entry. The first
// call loads the newest page.
func (s *ChannelSession) LoadOlder(ctx context.Context) error {
	s.mu.Lock()
	var before uint
	for _, e := range s.entries {
		if e.Confirmed() {
			before = e.Message.ID
			break
		}
	}
	s.mu.Unlock()

	page, err := s.gw.ChannelMessages(ctx, s.channelID, before)
	if err != nil {
		s.setError(err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[uint]bool, len(s.entries))
	for _, e := range s.entries {
		if e.Confirmed() {
			existing[e.Message.ID] = true
		}
	}

	prefix := make([]Entry, 0, len(page.Messages))
	for _, m := range page.Messages {
		if existing[m.ID] {
			continue
		}
		prefix = append(prefix, Entry{State: EntryConfirmed, Message: m})
	}

	s.entries = append(prefix, s.entries...)
	s.hasMore = page.HasMore
	s.lastErr = ""
	return nil
}

// Send validates the input, inserts an optimistic entry and issues the
// write. Validation failures return ErrInvalidMessage without touching
// the network. A failed write marks the entry Failed in place; a
// successful write removes it and lets the feed deliver the
// authoritative row.
func (s *ChannelSession) Send(ctx context.Context, content, msgType string, attachments []string) error {
	if v := utils.ValidateMessageContent(content, len(attachments)); !v.IsValid {
		return ErrInvalidMessage
	}

	if msgType == "" {
		msgType = models.MessageTypeText
	}

	tempID := uuid.NewString()
	echo := Entry{
		State:  EntryPending,
		TempID: tempID,
		Message: models.Message{
			ChannelID:   &s.channelID,
			Content:     content,
			Type:        msgType,
			Attachments: utils.EncodeAttachments(attachments),
			CreatedAt:   time.Now(),
		},
	}

	s.mu.Lock()
	s.entries = append(s.entries, echo)
	s.mu.Unlock()

	_, err := s.gw.SendChannelMessage(ctx, s.channelID, OutgoingMessage{
		Content:     content,
		Type:        msgType,
		Attachments: attachments,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		// Keep the echo visible with its error attached
		for i := range s.entries {
			if s.entries[i].TempID == tempID {
				s.entries[i].State = EntryFailed
				s.entries[i].Err = err.Error()
				break
			}
		}
		s.lastErr = err.Error()
		return nil
	}

	// The authoritative row arrives over the feed; drop the echo. The row
	// may land before this removal, which the id dedup absorbs.
	s.removeByTempIDLocked(tempID)
	return nil
}

// Retry re-sends a failed entry, flipping it back to Pending for the
// duration of the write.
func (s *ChannelSession) Retry(ctx context.Context, tempID string) error {
	s.mu.Lock()
	var found *Entry
	for i := range s.entries {
		if s.entries[i].TempID == tempID && s.entries[i].State == EntryFailed {
			s.entries[i].State = EntryPending
			s.entries[i].Err = ""
			found = &s.entries[i]
			break
		}
	}
	var msg models.Message
	if found != nil {
		msg = found.Message
	}
	s.mu.Unlock()

	if found == nil {
		return errors.New("no failed entry with that id")
	}

	_, err := s.gw.SendChannelMessage(ctx, s.channelID, OutgoingMessage{
		Content:     msg.Content,
		Type:        msg.Type,
		Attachments: utils.DecodeAttachments(msg.Attachments),
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		for i := range s.entries {
			if s.entries[i].TempID == tempID {
				s.entries[i].State = EntryFailed
				s.entries[i].Err = err.Error()
				break
			}
		}
		s.lastErr = err.Error()
		return nil
	}

	s.removeByTempIDLocked(tempID)
	return nil
}

// Discard drops a failed entry from the list.
func (s *ChannelSession) Discard(tempID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.TempID == tempID && e.State == EntryFailed {
			s.removeByTempIDLocked(tempID)
			return true
		}
	}
	return false
}

// MarkSeen clears the local unread badge immediately; the write is
// best-effort and does not block the caller on the round trip.
func (s *ChannelSession) MarkSeen(ctx context.Context) {
	s.mu.Lock()
	s.unread = 0
	s.mu.Unlock()

	if err := s.gw.MarkSeen(ctx, s.channelID); err != nil {
		s.setError(err)
	}
}

// applyEvent merges a feed event into the list: inserts are idempotent by
// row id, updates replace the matching row.
func (s *ChannelSession) applyEvent(ev FeedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case websocket.EventMessageCreated:
		for _, e := range s.entries {
			if e.Confirmed() && e.Message.ID == ev.Message.ID {
				return
			}
		}
		s.entries = append(s.entries, Entry{State: EntryConfirmed, Message: ev.Message})
		s.unread++
	case websocket.EventMessageUpdated:
		for i := range s.entries {
			if s.entries[i].Confirmed() && s.entries[i].Message.ID == ev.Message.ID {
				s.entries[i].Message = ev.Message
				return
			}
		}
	}
}

func (s *ChannelSession) removeByTempIDLocked(tempID string) {
	for i := range s.entries {
		if s.entries[i].TempID == tempID {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

func (s *ChannelSession) setError(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
}

// Entries returns a snapshot of the ordered message list.
func (s *ChannelSession) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// HasMore reports whether older history remains to fetch.
func (s *ChannelSession) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// Unread returns the local unread badge count.
func (s *ChannelSession) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Err returns the last gateway error surfaced by this session.
func (s *ChannelSession) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
