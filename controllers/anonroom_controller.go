package controllers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/momspace/momspace_backend/models"
	"github.com/momspace/momspace_backend/utils"
	"github.com/momspace/momspace_backend/websocket"
	"gorm.io/gorm"
)

// Anonymous sends are capped per user over a sliding window. The cap is
// deliberately tighter than channel messaging since rooms are unmoderated.
const (
	anonSendLimit  = 10
	anonSendWindow = time.Minute
)

type AnonRoomController struct {
	db      *gorm.DB
	hub     Publisher
	limiter RateLimiter
	now     func() time.Time
}

func NewAnonRoomController(db *gorm.DB, hub Publisher, limiter RateLimiter) *AnonRoomController {
	return &AnonRoomController{db: db, hub: hub, limiter: limiter, now: time.Now}
}

type SendAnonMessageInput struct {
	Content     string `json:"content" binding:"required"`
	DisplayName string `json:"display_name" binding:"required,max=64"`
}

// currentRoom finds or allocates the room for the current hour slot.
func (ctrl *AnonRoomController) currentRoom() (*models.AnonymousRoom, error) {
	now := ctrl.now()
	slotKey := models.SlotKeyFor(now)

	var room models.AnonymousRoom
	err := ctrl.db.Where("slot_key = ?", slotKey).First(&room).Error
	if err == nil {
		return &room, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	room = models.AnonymousRoom{
		ID:        uuid.NewString(),
		SlotKey:   slotKey,
		ExpiresAt: now.UTC().Truncate(models.AnonRoomLifetime).Add(models.AnonRoomLifetime),
	}
	if err := ctrl.db.Create(&room).Error; err != nil {
		// A concurrent allocation may have won the unique slot index
		if lookupErr := ctrl.db.Where("slot_key = ?", slotKey).First(&room).Error; lookupErr == nil {
			return &room, nil
		}
		return nil, err
	}
	return &room, nil
}

// GetCurrentRoom godoc
// @Summary Get the current anonymous room
// @Description Allocates or returns the rotating room for the current hour slot
// @Tags anonymous
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "Current room"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/anon/room [get]
func (ctrl *AnonRoomController) GetCurrentRoom(c *gin.Context) {
	room, err := ctrl.currentRoom()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to allocate room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"room": room})
}

// GetRoomMessages godoc
// @Summary Get the message backlog of an anonymous room
// @Tags anonymous
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Room ID"
// @Success 200 {object} map[string]interface{} "Messages"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Room not found"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/anon/rooms/{id}/messages [get]
func (ctrl *AnonRoomController) GetRoomMessages(c *gin.Context) {
	roomID := c.Param("id")

	var room models.AnonymousRoom
	if err := ctrl.db.Where("id = ?", roomID).First(&room).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}

	var messages []models.Message
	if err := ctrl.db.Where("anon_room_id = ?", roomID).
		Order("id ASC").
		Find(&messages).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// SendMessage godoc
// @Summary Send an anonymous message
// @Description Stores an identity-free message in a room; expired rooms reject sends by server time
// @Tags anonymous
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Room ID"
// @Param message body SendAnonMessageInput true "Message"
// @Success 201 {object} map[string]interface{} "Message sent"
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Room not found"
// @Failure 410 {object} map[string]string "Room expired"
// @Failure 429 {object} map[string]interface{} "Rate limit exceeded"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/anon/rooms/{id}/messages [post]
func (ctrl *AnonRoomController) SendMessage(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	roomID := c.Param("id")

	var input SendAnonMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if v := utils.ValidateAnonContent(input.Content); !v.IsValid {
		c.JSON(http.StatusBadRequest, gin.H{"error": v.Reason})
		return
	}

	var room models.AnonymousRoom
	if err := ctrl.db.Where("id = ?", roomID).First(&room).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}

	// Server time decides expiry, never the client clock
	if room.Expired(ctrl.now()) {
		c.JSON(http.StatusGone, gin.H{"error": "Room has expired"})
		return
	}

	// The rate limit key is the authenticated user even though the stored
	// message carries no sender; limiter outages fail open
	result, err := ctrl.limiter.Allow(c.Request.Context(), fmt.Sprintf("anon:%d", userID), anonSendLimit, anonSendWindow)
	if err != nil {
		log.Printf("anon rate limit check failed: %v", err)
	} else if !result.Allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":               "sending too fast",
			"code":                "rate_limited",
			"retry_after_seconds": int(result.RetryAfter.Seconds()),
		})
		return
	}

	expiresAt := room.ExpiresAt
	message := models.Message{
		AnonRoomID:  &room.ID,
		DisplayName: input.DisplayName,
		Content:     input.Content,
		Type:        models.MessageTypeText,
		ExpiresAt:   &expiresAt,
	}

	if err := ctrl.db.Create(&message).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create message"})
		return
	}

	// Push the insert event to room subscribers
	ctrl.hub.Publish(websocket.AnonRoomTopic(room.ID), websocket.EventMessageCreated, message)

	c.JSON(http.StatusCreated, gin.H{
		"message": "Message sent successfully",
		"data":    message,
	})
}
