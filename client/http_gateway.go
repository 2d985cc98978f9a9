package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/momspace/momspace_backend/models"
)

// HTTPGateway implements Gateway against the Momspace REST API.
type HTTPGateway struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPGateway(baseURL, token string) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type apiError struct {
	Message           string `json:"error"`
	Code              string `json:"code"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr != nil {
			return fmt.Errorf("request failed with status %d", resp.StatusCode)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &RateLimitError{RetryAfterSeconds: apiErr.RetryAfterSeconds}
		}
		if apiErr.Message == "" {
			return fmt.Errorf("request failed with status %d", resp.StatusCode)
		}
		return fmt.Errorf("%s", apiErr.Message)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (g *HTTPGateway) SearchSpaces(ctx context.Context, query string, limit int) ([]SpaceResult, error) {
	params := url.Values{}
	params.Set("query", query)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var resp struct {
		Spaces []SpaceResult `json:"spaces"`
	}
	if err := g.do(ctx, http.MethodGet, "/api/spaces/search?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Spaces, nil
}

func (g *HTTPGateway) JoinSpace(ctx context.Context, spaceID uint) (*JoinResult, error) {
	var resp struct {
		ChannelID *uint `json:"channel_id"`
	}
	path := fmt.Sprintf("/api/spaces/%d/join", spaceID)
	if err := g.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}
	return &JoinResult{ChannelID: resp.ChannelID}, nil
}

func (g *HTTPGateway) LeaveSpace(ctx context.Context, spaceID uint) (bool, error) {
	var resp struct {
		OK bool `json:"ok"`
	}
	path := fmt.Sprintf("/api/spaces/%d/leave", spaceID)
	if err := g.do(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.OK, nil
}

func (g *HTTPGateway) CreateSpace(ctx context.Context, req CreateSpaceRequest) (*models.Space, error) {
	var resp struct {
		Space models.Space `json:"space"`
	}
	if err := g.do(ctx, http.MethodPost, "/api/spaces", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Space, nil
}

func (g *HTTPGateway) ChannelMessages(ctx context.Context, channelID uint, beforeID uint) (*MessagePage, error) {
	path := fmt.Sprintf("/api/channels/%d/messages", channelID)
	if beforeID > 0 {
		path += "?before=" + strconv.FormatUint(uint64(beforeID), 10)
	}

	var resp MessagePage
	if err := g.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (g *HTTPGateway) SendChannelMessage(ctx context.Context, channelID uint, msg OutgoingMessage) (*models.Message, error) {
	var resp struct {
		Data models.Message `json:"data"`
	}
	path := fmt.Sprintf("/api/channels/%d/messages", channelID)
	if err := g.do(ctx, http.MethodPost, path, msg, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (g *HTTPGateway) MarkSeen(ctx context.Context, channelID uint) error {
	path := fmt.Sprintf("/api/channels/%d/seen", channelID)
	return g.do(ctx, http.MethodPost, path, nil, nil)
}

func (g *HTTPGateway) CurrentAnonRoom(ctx context.Context) (*models.AnonymousRoom, error) {
	var resp struct {
		Room models.AnonymousRoom `json:"room"`
	}
	if err := g.do(ctx, http.MethodGet, "/api/anon/room", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Room, nil
}

func (g *HTTPGateway) AnonRoomMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	path := "/api/anon/rooms/" + url.PathEscape(roomID) + "/messages"
	if err := g.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (g *HTTPGateway) SendAnonMessage(ctx context.Context, roomID, content, displayName string) (*models.Message, error) {
	var resp struct {
		Data models.Message `json:"data"`
	}
	path := "/api/anon/rooms/" + url.PathEscape(roomID) + "/messages"
	body := map[string]string{
		"content":      content,
		"display_name": displayName,
	}
	if err := g.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (g *HTTPGateway) ReportMessage(ctx context.Context, targetID, reason string) (bool, error) {
	var resp struct {
		OK bool `json:"ok"`
	}
	body := map[string]string{
		"target_type": models.ReportTargetMessage,
		"target_id":   targetID,
		"reason_text": reason,
	}
	if err := g.do(ctx, http.MethodPost, "/api/reports", body, &resp); err != nil {
		return false, err
	}
	return resp.OK, nil
}
