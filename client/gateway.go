// Package client implements the app-facing data hooks: space search and
// membership, channel messaging with optimistic local echo, and the
// rotating anonymous room session. All remote access goes through the
// Gateway and Feed interfaces so the hooks can be exercised without a
// server.
package client

import (
	"context"
	"fmt"

	"github.com/momspace/momspace_backend/models"
)

// SpaceResult is a search row annotated with joinability for the caller.
type SpaceResult struct {
	models.Space
	Tags    []string `json:"tags"`
	CanJoin bool     `json:"can_join"`
}

// JoinResult carries the joined space's default channel, when it has one.
type JoinResult struct {
	ChannelID *uint `json:"channel_id"`
}

// CreateSpaceRequest is the input for creating a space.
type CreateSpaceRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Visibility  string   `json:"visibility"`
	Tags        []string `json:"tags"`
}

// OutgoingMessage is the input for a channel send.
type OutgoingMessage struct {
	Content     string   `json:"content"`
	Type        string   `json:"type"`
	Attachments []string `json:"attachments"`
}

// MessagePage is one backward page of channel history.
type MessagePage struct {
	Messages []models.Message `json:"messages"`
	HasMore  bool             `json:"has_more"`
}

// RateLimitError is returned by anonymous sends when the server applies
// its cool-down; it is surfaced separately from generic errors.
type RateLimitError struct {
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %ds", e.RetryAfterSeconds)
}

// Gateway is the remote data surface the hooks talk to.
type Gateway interface {
	SearchSpaces(ctx context.Context, query string, limit int) ([]SpaceResult, error)
	JoinSpace(ctx context.Context, spaceID uint) (*JoinResult, error)
	LeaveSpace(ctx context.Context, spaceID uint) (bool, error)
	CreateSpace(ctx context.Context, req CreateSpaceRequest) (*models.Space, error)

	ChannelMessages(ctx context.Context, channelID uint, beforeID uint) (*MessagePage, error)
	SendChannelMessage(ctx context.Context, channelID uint, msg OutgoingMessage) (*models.Message, error)
	MarkSeen(ctx context.Context, channelID uint) error

	CurrentAnonRoom(ctx context.Context) (*models.AnonymousRoom, error)
	AnonRoomMessages(ctx context.Context, roomID string) ([]models.Message, error)
	SendAnonMessage(ctx context.Context, roomID, content, displayName string) (*models.Message, error)

	ReportMessage(ctx context.Context, targetID, reason string) (bool, error)
}

// FeedEvent is a change notification from the realtime feed.
type FeedEvent struct {
	Type    string
	Topic   string
	Message models.Message
}

// Feed delivers change events for a topic until the returned cancel
// function is called.
type Feed interface {
	Subscribe(topic string) (<-chan FeedEvent, func(), error)
}
