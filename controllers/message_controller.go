package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/momspace/momspace_backend/models"
	"github.com/momspace/momspace_backend/utils"
	"github.com/momspace/momspace_backend/websocket"
	"gorm.io/gorm"
)

// MessagePageSize is the fixed page size for backward message fetches.
const MessagePageSize = 50

// Publisher pushes change events onto the realtime feed.
type Publisher interface {
	Publish(topic, eventType string, payload interface{})
}

type MessageController struct {
	db  *gorm.DB
	hub Publisher
}

func NewMessageController(db *gorm.DB, hub Publisher) *MessageController {
	return &MessageController{db: db, hub: hub}
}

type CreateMessageInput struct {
	Content     string   `json:"content" example:"Hello, everyone!"`
	Type        string   `json:"type" binding:"omitempty,oneof=text image file"`
	Attachments []string `json:"attachments"`
}

// maskSenderContacts hides the sender's contact fields before a message
// leaves the server. Other members see a masked email and phone, never the
// raw values.
func maskSenderContacts(m *models.Message) {
	if m.Sender == nil {
		return
	}
	m.Sender.Email = utils.MaskEmail(m.Sender.Email)
	if m.Sender.Phone != "" {
		m.Sender.Phone = utils.MaskPhone(m.Sender.Phone)
	}
}

// memberOfChannel resolves a channel and checks the caller's membership in
// its space.
func (ctrl *MessageController) memberOfChannel(userID, channelID uint) (*models.Channel, *models.SpaceMember, error) {
	var channel models.Channel
	if err := ctrl.db.First(&channel, channelID).Error; err != nil {
		return nil, nil, err
	}

	var member models.SpaceMember
	if err := ctrl.db.Where("space_id = ? AND user_id = ?", channel.SpaceID, userID).First(&member).Error; err != nil {
		return &channel, nil, err
	}
	return &channel, &member, nil
}

// GetMessages godoc
// @Summary Get messages for a channel
// @Description Returns up to 50 messages before the given cursor, oldest first; has_more signals a full page
// @Tags messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Channel ID"
// @Param before query int false "Fetch messages older than this message ID"
// @Success 200 {object} map[string]interface{} "Page of messages"
// @Failure 400 {object} map[string]string "Invalid channel ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/channels/{id}/messages [get]
func (ctrl *MessageController) GetMessages(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	channelID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid channel ID"})
		return
	}

	if _, _, err := ctrl.memberOfChannel(userID, uint(channelID)); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "You don't have access to this channel"})
		return
	}

	query := ctrl.db.Where("channel_id = ?", channelID)
	if raw := c.Query("before"); raw != "" {
		before, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
			return
		}
		query = query.Where("id < ?", before)
	}

	var messages []models.Message
	if err := query.Order("id DESC").
		Limit(MessagePageSize).
		Preload("Sender").
		Find(&messages).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}

	hasMore := len(messages) == MessagePageSize

	// Reverse into ascending display order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	for i := range messages {
		maskSenderContacts(&messages[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"has_more": hasMore,
	})
}

// CreateMessage godoc
// @Summary Send a message to a channel
// @Description Creates a message; either non-empty content or at least one attachment is required
// @Tags messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Channel ID"
// @Param message body CreateMessageInput true "Message Creation"
// @Success 201 {object} map[string]interface{} "Message sent successfully"
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/channels/{id}/messages [post]
func (ctrl *MessageController) CreateMessage(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	channelID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid channel ID"})
		return
	}

	var input CreateMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if v := utils.ValidateMessageContent(input.Content, len(input.Attachments)); !v.IsValid {
		c.JSON(http.StatusBadRequest, gin.H{"error": v.Reason})
		return
	}

	if _, _, err := ctrl.memberOfChannel(userID, uint(channelID)); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "You don't have access to this channel"})
		return
	}

	msgType := input.Type
	if msgType == "" {
		msgType = models.MessageTypeText
	}

	chID := uint(channelID)
	message := models.Message{
		ChannelID:   &chID,
		SenderID:    &userID,
		Content:     input.Content,
		Type:        msgType,
		Attachments: utils.EncodeAttachments(input.Attachments),
	}

	if err := ctrl.db.Create(&message).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create message"})
		return
	}

	// Load sender data for the message
	ctrl.db.Preload("Sender").First(&message, message.ID)
	maskSenderContacts(&message)

	// Push the insert event to channel subscribers
	ctrl.hub.Publish(websocket.ChannelTopic(chID), websocket.EventMessageCreated, message)

	c.JSON(http.StatusCreated, gin.H{
		"message": "Message sent successfully",
		"data":    message,
	})
}

// MarkSeen godoc
// @Summary Mark a channel as read
// @Description Updates the caller's last-read timestamp for the channel's space
// @Tags messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Channel ID"
// @Success 200 {object} map[string]bool "Marked seen"
// @Failure 400 {object} map[string]string "Invalid channel ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Forbidden"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/channels/{id}/seen [post]
func (ctrl *MessageController) MarkSeen(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	channelID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid channel ID"})
		return
	}

	channel, member, err := ctrl.memberOfChannel(userID, uint(channelID))
	if err != nil || member == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "You don't have access to this channel"})
		return
	}

	if err := ctrl.db.Model(&models.SpaceMember{}).
		Where("space_id = ? AND user_id = ?", channel.SpaceID, userID).
		Update("last_read_at", time.Now()).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update read state"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
