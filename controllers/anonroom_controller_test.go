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

func anonRouter(ctrl *AnonRoomController, userID uint) *gin.Engine {
	r := gin.New()
	r.Use(authAs(userID))
	r.GET("/anon/room", ctrl.GetCurrentRoom)
	r.GET("/anon/rooms/:id/messages", ctrl.GetRoomMessages)
	r.POST("/anon/rooms/:id/messages", ctrl.SendMessage)
	return r
}

func anonControllerAt(db *gorm.DB, hub Publisher, limiter RateLimiter, at time.Time) *AnonRoomController {
	ctrl := NewAnonRoomController(db, hub, limiter)
	ctrl.now = func() time.Time { return at }
	return ctrl
}

func TestGetCurrentRoomIsStableWithinSlot(t *testing.T) {
	db := newTestDB(t)
	at := time.Date(2025, 6, 1, 10, 15, 0, 0, time.UTC)
	ctrl := anonControllerAt(db, &stubPublisher{}, allowAll(), at)
	router := anonRouter(ctrl, seedUser(t, db, "alice"))

	w := doJSON(router, http.MethodGet, "/anon/room", nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decodeBody(t, w)["room"].(map[string]interface{})

	// Later in the same hour the same room comes back
	ctrl.now = func() time.Time { return at.Add(40 * time.Minute) }
	w = doJSON(router, http.MethodGet, "/anon/room", nil)
	require.Equal(t, http.StatusOK, w.Code)
	second := decodeBody(t, w)["room"].(map[string]interface{})

	assert.Equal(t, first["id"], second["id"])

	var count int64
	db.Model(&models.AnonymousRoom{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestNextSlotAllocatesNewRoom(t *testing.T) {
	db := newTestDB(t)
	at := time.Date(2025, 6, 1, 10, 15, 0, 0, time.UTC)
	ctrl := anonControllerAt(db, &stubPublisher{}, allowAll(), at)
	router := anonRouter(ctrl, seedUser(t, db, "alice"))

	w := doJSON(router, http.MethodGet, "/anon/room", nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decodeBody(t, w)["room"].(map[string]interface{})

	ctrl.now = func() time.Time { return at.Add(time.Hour) }
	w = doJSON(router, http.MethodGet, "/anon/room", nil)
	require.Equal(t, http.StatusOK, w.Code)
	second := decodeBody(t, w)["room"].(map[string]interface{})

	assert.NotEqual(t, first["id"], second["id"])
}

func TestSendAnonMessageStripsIdentity(t *testing.T) {
	db := newTestDB(t)
	hub := &stubPublisher{}
	at := time.Date(2025, 6, 1, 10, 15, 0, 0, time.UTC)
	ctrl := anonControllerAt(db, hub, allowAll(), at)
	router := anonRouter(ctrl, seedUser(t, db, "alice"))

	room, err := ctrl.currentRoom()
	require.NoError(t, err)

	w := doJSON(router, http.MethodPost, fmt.Sprintf("/anon/rooms/%s/messages", room.ID), gin.H{
		"content":      "anyone else awake?",
		"display_name": "anon_1748772900000",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var msg models.Message
	require.NoError(t, db.First(&msg).Error)
	assert.Nil(t, msg.SenderID, "no author reference is stored")
	assert.Equal(t, "anon_1748772900000", msg.DisplayName)
	assert.Equal(t, room.ID, *msg.AnonRoomID)
	require.NotNil(t, msg.ExpiresAt)
	assert.Equal(t, room.ExpiresAt.UTC(), msg.ExpiresAt.UTC())

	events := hub.published()
	require.Len(t, events, 1)
	assert.Equal(t, websocket.AnonRoomTopic(room.ID), events[0].topic)
}

func TestSendToExpiredRoomIsGone(t *testing.T) {
	db := newTestDB(t)
	at := time.Date(2025, 6, 1, 10, 15, 0, 0, time.UTC)
	ctrl := anonControllerAt(db, &stubPublisher{}, allowAll(), at)
	router := anonRouter(ctrl, seedUser(t, db, "alice"))

	room, err := ctrl.currentRoom()
	require.NoError(t, err)

	// Server time moves past the room's expiry
	ctrl.now = func() time.Time { return at.Add(2 * time.Hour) }

	w := doJSON(router, http.MethodPost, fmt.Sprintf("/anon/rooms/%s/messages", room.ID), gin.H{
		"content":      "too late",
		"display_name": "anon_1",
	})
	assert.Equal(t, http.StatusGone, w.Code)

	var count int64
	db.Model(&models.Message{}).Count(&count)
	assert.Zero(t, count)
}

func TestSendToMissingRoomNotFound(t *testing.T) {
	db := newTestDB(t)
	ctrl := anonControllerAt(db, &stubPublisher{}, allowAll(), time.Now())
	router := anonRouter(ctrl, seedUser(t, db, "alice"))

	w := doJSON(router, http.MethodPost, "/anon/rooms/does-not-exist/messages", gin.H{
		"content":      "hello",
		"display_name": "anon_1",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendAnonMessageRateLimited(t *testing.T) {
	db := newTestDB(t)
	at := time.Date(2025, 6, 1, 10, 15, 0, 0, time.UTC)
	limiter := denyFor(12 * time.Second)
	ctrl := anonControllerAt(db, &stubPublisher{}, limiter, at)
	userID := seedUser(t, db, "alice")
	router := anonRouter(ctrl, userID)

	room, err := ctrl.currentRoom()
	require.NoError(t, err)

	w := doJSON(router, http.MethodPost, fmt.Sprintf("/anon/rooms/%s/messages", room.ID), gin.H{
		"content":      "hello",
		"display_name": "anon_1",
	})
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "rate_limited", body["code"])
	assert.Equal(t, float64(12), body["retry_after_seconds"])

	// The limiter key is the authenticated user, not the room
	limiter.mu.Lock()
	keys := append([]string(nil), limiter.keys...)
	limiter.mu.Unlock()
	require.Len(t, keys, 1)
	assert.Equal(t, fmt.Sprintf("anon:%d", userID), keys[0])
}

func TestSendAnonMessageValidatesContent(t *testing.T) {
	db := newTestDB(t)
	at := time.Date(2025, 6, 1, 10, 15, 0, 0, time.UTC)
	ctrl := anonControllerAt(db, &stubPublisher{}, allowAll(), at)
	router := anonRouter(ctrl, seedUser(t, db, "alice"))

	room, err := ctrl.currentRoom()
	require.NoError(t, err)

	w := doJSON(router, http.MethodPost, fmt.Sprintf("/anon/rooms/%s/messages", room.ID), gin.H{
		"content":      "   ",
		"display_name": "anon_1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRoomMessagesReturnsBacklogAscending(t *testing.T) {
	db := newTestDB(t)
	at := time.Date(2025, 6, 1, 10, 15, 0, 0, time.UTC)
	ctrl := anonControllerAt(db, &stubPublisher{}, allowAll(), at)
	router := anonRouter(ctrl, seedUser(t, db, "alice"))

	room, err := ctrl.currentRoom()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		msg := models.Message{
			AnonRoomID:  &room.ID,
			DisplayName: fmt.Sprintf("anon_%d", i),
			Content:     fmt.Sprintf("msg %d", i),
			Type:        models.MessageTypeText,
		}
		require.NoError(t, db.Create(&msg).Error)
	}

	w := doJSON(router, http.MethodGet, fmt.Sprintf("/anon/rooms/%s/messages", room.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	messages := body["messages"].([]interface{})
	require.Len(t, messages, 3)
	first := messages[0].(map[string]interface{})
	assert.Equal(t, "msg 0", first["content"])
}
