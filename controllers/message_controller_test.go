package controllers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/momspace/momspace_backend/models"
	"github.com/momspace/momspace_backend/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func messageRouter(db *gorm.DB, hub Publisher, userID uint) *gin.Engine {
	ctrl := NewMessageController(db, hub)
	r := gin.New()
	r.Use(authAs(userID))
	r.GET("/channels/:id/messages", ctrl.GetMessages)
	r.POST("/channels/:id/messages", ctrl.CreateMessage)
	r.POST("/channels/:id/seen", ctrl.MarkSeen)
	return r
}

func seedChannelMessage(t *testing.T, db *gorm.DB, channelID, senderID uint, content string) models.Message {
	t.Helper()
	msg := models.Message{
		ChannelID: &channelID,
		SenderID:  &senderID,
		Content:   content,
		Type:      models.MessageTypeText,
	}
	require.NoError(t, db.Create(&msg).Error)
	return msg
}

func TestCreateMessageStoresAndPublishes(t *testing.T) {
	db := newTestDB(t)
	hub := &stubPublisher{}
	userID := seedUser(t, db, "alice")
	space, channel := seedSpace(t, db, models.Space{Name: "Open"})
	seedMember(t, db, space.ID, userID)
	router := messageRouter(db, hub, userID)

	w := doJSON(router, http.MethodPost, fmt.Sprintf("/channels/%d/messages", channel.ID), gin.H{
		"content": "hello everyone",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var msg models.Message
	require.NoError(t, db.First(&msg).Error)
	assert.Equal(t, "hello everyone", msg.Content)
	assert.Equal(t, userID, *msg.SenderID)
	assert.NotEmpty(t, msg.PublicID)

	events := hub.published()
	require.Len(t, events, 1)
	assert.Equal(t, websocket.ChannelTopic(channel.ID), events[0].topic)
	assert.Equal(t, websocket.EventMessageCreated, events[0].eventType)
}

func TestCreateMessageRejectsEmptyContent(t *testing.T) {
	db := newTestDB(t)
	hub := &stubPublisher{}
	userID := seedUser(t, db, "alice")
	space, channel := seedSpace(t, db, models.Space{Name: "Open"})
	seedMember(t, db, space.ID, userID)
	router := messageRouter(db, hub, userID)

	for _, content := range []string{"", "   "} {
		w := doJSON(router, http.MethodPost, fmt.Sprintf("/channels/%d/messages", channel.ID), gin.H{
			"content": content,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}

	var count int64
	db.Model(&models.Message{}).Count(&count)
	assert.Zero(t, count)
	assert.Empty(t, hub.published())
}

func TestCreateMessageAcceptsAttachmentOnly(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "alice")
	space, channel := seedSpace(t, db, models.Space{Name: "Open"})
	seedMember(t, db, space.ID, userID)
	router := messageRouter(db, &stubPublisher{}, userID)

	w := doJSON(router, http.MethodPost, fmt.Sprintf("/channels/%d/messages", channel.ID), gin.H{
		"content":     "",
		"type":        "image",
		"attachments": []string{"photo.jpg"},
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateMessageRequiresMembership(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "alice")
	_, channel := seedSpace(t, db, models.Space{Name: "Open"})
	router := messageRouter(db, &stubPublisher{}, userID)

	w := doJSON(router, http.MethodPost, fmt.Sprintf("/channels/%d/messages", channel.ID), gin.H{
		"content": "hello",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetMessagesPaginatesBackwards(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "alice")
	space, channel := seedSpace(t, db, models.Space{Name: "Open"})
	seedMember(t, db, space.ID, userID)
	router := messageRouter(db, &stubPublisher{}, userID)

	for i := 0; i < MessagePageSize+5; i++ {
		seedChannelMessage(t, db, channel.ID, userID, fmt.Sprintf("msg %d", i))
	}

	w := doJSON(router, http.MethodGet, fmt.Sprintf("/channels/%d/messages", channel.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	page := body["messages"].([]interface{})
	require.Len(t, page, MessagePageSize)
	assert.True(t, body["has_more"].(bool))

	// Ascending within the page
	first := page[0].(map[string]interface{})
	last := page[len(page)-1].(map[string]interface{})
	assert.Less(t, first["id"].(float64), last["id"].(float64))

	// The next page picks up before the oldest returned id
	w = doJSON(router, http.MethodGet,
		fmt.Sprintf("/channels/%d/messages?before=%d", channel.ID, int(first["id"].(float64))), nil)
	require.Equal(t, http.StatusOK, w.Code)

	body = decodeBody(t, w)
	page = body["messages"].([]interface{})
	assert.Len(t, page, 5)
	assert.False(t, body["has_more"].(bool))
}

func TestGetMessagesRequiresMembership(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "alice")
	_, channel := seedSpace(t, db, models.Space{Name: "Open"})
	router := messageRouter(db, &stubPublisher{}, userID)

	w := doJSON(router, http.MethodGet, fmt.Sprintf("/channels/%d/messages", channel.ID), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMessageResponsesMaskSenderContacts(t *testing.T) {
	db := newTestDB(t)
	hub := &stubPublisher{}
	user := models.User{
		Username: "alice",
		Email:    "alice@example.com",
		Phone:    "+66 89 123 4567",
		Password: "password123",
	}
	require.NoError(t, db.Create(&user).Error)
	space, channel := seedSpace(t, db, models.Space{Name: "Open"})
	seedMember(t, db, space.ID, user.ID)
	router := messageRouter(db, hub, user.ID)

	w := doJSON(router, http.MethodPost, fmt.Sprintf("/channels/%d/messages", channel.ID), gin.H{
		"content": "hi",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeBody(t, w)
	sender := body["data"].(map[string]interface{})["sender"].(map[string]interface{})
	assert.Equal(t, "a****@example.com", sender["email"])
	assert.Equal(t, "*******4567", sender["phone"])

	// Raw contact fields never reach the feed either
	events := hub.published()
	require.Len(t, events, 1)
	published := events[0].payload.(models.Message)
	require.NotNil(t, published.Sender)
	assert.Equal(t, "a****@example.com", published.Sender.Email)

	// The stored row keeps the real values
	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.Equal(t, "alice@example.com", stored.Email)

	w = doJSON(router, http.MethodGet, fmt.Sprintf("/channels/%d/messages", channel.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decodeBody(t, w)["messages"].([]interface{})
	require.Len(t, page, 1)
	got := page[0].(map[string]interface{})["sender"].(map[string]interface{})
	assert.Equal(t, "a****@example.com", got["email"])
}

func TestMarkSeenAdvancesLastRead(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "alice")
	space, channel := seedSpace(t, db, models.Space{Name: "Open"})
	seedMember(t, db, space.ID, userID)
	router := messageRouter(db, &stubPublisher{}, userID)

	before := time.Now().Add(-time.Second)
	w := doJSON(router, http.MethodPost, fmt.Sprintf("/channels/%d/seen", channel.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var member models.SpaceMember
	require.NoError(t, db.Where("space_id = ? AND user_id = ?", space.ID, userID).First(&member).Error)
	assert.True(t, member.LastReadAt.After(before))
}
