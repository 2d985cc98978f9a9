package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/momspace/momspace_backend/models"
	"github.com/momspace/momspace_backend/utils"
	"gorm.io/gorm"
)

const defaultSearchLimit = 50

type SpaceController struct {
	db *gorm.DB
}

func NewSpaceController(db *gorm.DB) *SpaceController {
	return &SpaceController{db: db}
}

type CreateSpaceInput struct {
	Name        string   `json:"name" binding:"required" example:"New Moms Bangkok"`
	Description string   `json:"description" example:"A space for first-time mothers"`
	Visibility  string   `json:"visibility" binding:"omitempty,oneof=public private"`
	Tags        []string `json:"tags"`
}

// SpaceResult is a search row annotated with joinability for the caller.
type SpaceResult struct {
	models.Space
	TagList []string `json:"tags"`
	CanJoin bool     `json:"can_join"`
}

// SearchSpaces godoc
// @Summary Search public and private spaces
// @Description Returns spaces matching a text query, ordered by member count, each annotated with a can_join flag
// @Tags spaces
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param query query string false "Text query"
// @Param limit query int false "Max results (default 50)"
// @Success 200 {object} map[string]interface{} "List of spaces"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/spaces/search [get]
func (ctrl *SpaceController) SearchSpaces(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	limit := defaultSearchLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > defaultSearchLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	pattern := "%" + strings.ToLower(strings.TrimSpace(c.Query("query"))) + "%"

	var spaces []models.Space
	if err := ctrl.db.
		Where("lower(name) LIKE ? OR lower(description) LIKE ? OR lower(tags) LIKE ?", pattern, pattern, pattern).
		Order("member_count DESC").
		Limit(limit).
		Find(&spaces).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search spaces"})
		return
	}

	// Collect the caller's memberships among the results
	spaceIDs := make([]uint, 0, len(spaces))
	for _, space := range spaces {
		spaceIDs = append(spaceIDs, space.ID)
	}

	memberOf := make(map[uint]bool)
	if len(spaceIDs) > 0 {
		var memberships []models.SpaceMember
		if err := ctrl.db.Where("user_id = ? AND space_id IN ?", userID, spaceIDs).Find(&memberships).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch memberships"})
			return
		}
		for _, m := range memberships {
			memberOf[m.SpaceID] = true
		}
	}

	results := make([]SpaceResult, 0, len(spaces))
	for _, space := range spaces {
		results = append(results, SpaceResult{
			Space:   space,
			TagList: space.TagList(),
			CanJoin: canJoin(space, memberOf[space.ID]),
		})
	}

	c.JSON(http.StatusOK, gin.H{"spaces": results})
}

// canJoin applies the joinability rules: public, under capacity and not
// already a member.
func canJoin(space models.Space, isMember bool) bool {
	if isMember {
		return false
	}
	if space.Visibility != models.VisibilityPublic {
		return false
	}
	return space.MemberCount < space.MaxMembers
}

// CreateSpace godoc
// @Summary Create a new space
// @Description Creates a space with a default channel; the creator becomes the first member
// @Tags spaces
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param space body CreateSpaceInput true "Space Creation"
// @Success 201 {object} map[string]interface{} "Space created successfully"
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/spaces [post]
func (ctrl *SpaceController) CreateSpace(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	var input CreateSpaceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !utils.ValidateSpaceName(input.Name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Space name must be between 1 and 100 characters"})
		return
	}
	if len(input.Description) > utils.MaxDescriptionLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Description too long"})
		return
	}
	if len(input.Tags) > models.MaxSpaceTags {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Too many tags"})
		return
	}

	visibility := input.Visibility
	if visibility == "" {
		visibility = models.VisibilityPublic
	}

	space := models.Space{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Visibility:  visibility,
		MemberCount: 1,
		MaxMembers:  models.MaxMembersFor(visibility),
		CreatedBy:   userID,
	}
	space.SetTags(input.Tags)

	var channel models.Channel
	err := ctrl.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&space).Error; err != nil {
			return err
		}

		channel = models.Channel{
			SpaceID:   space.ID,
			Name:      "general",
			IsDefault: true,
		}
		if err := tx.Create(&channel).Error; err != nil {
			return err
		}

		member := models.SpaceMember{
			SpaceID: space.ID,
			UserID:  userID,
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create space"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Space created successfully",
		"space":   space,
		"channel": channel,
	})
}

// JoinSpace godoc
// @Summary Join a space
// @Description Adds the caller as a member when the space is public, under capacity and not already joined
// @Tags spaces
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Space ID"
// @Success 200 {object} map[string]interface{} "Joined space"
// @Failure 400 {object} map[string]string "Invalid space ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Space not joinable"
// @Failure 404 {object} map[string]string "Space not found"
// @Failure 409 {object} map[string]string "Already a member or space full"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/spaces/{id}/join [post]
func (ctrl *SpaceController) JoinSpace(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	spaceID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid space ID"})
		return
	}

	var space models.Space
	if err := ctrl.db.First(&space, spaceID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Space not found"})
		return
	}

	if space.Visibility != models.VisibilityPublic {
		c.JSON(http.StatusForbidden, gin.H{"error": "This space is private"})
		return
	}

	var existing models.SpaceMember
	if err := ctrl.db.Where("space_id = ? AND user_id = ?", spaceID, userID).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Already a member of this space"})
		return
	}

	if space.MemberCount >= space.MaxMembers {
		c.JSON(http.StatusConflict, gin.H{"error": "Space is full"})
		return
	}

	err = ctrl.db.Transaction(func(tx *gorm.DB) error {
		member := models.SpaceMember{
			SpaceID: uint(spaceID),
			UserID:  userID,
		}
		if err := tx.Create(&member).Error; err != nil {
			return err
		}
		return tx.Model(&models.Space{}).Where("id = ?", spaceID).
			UpdateColumn("member_count", gorm.Expr("member_count + 1")).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to join space"})
		return
	}

	// The default channel id lets the client navigate straight to the chat
	var channel models.Channel
	response := gin.H{"message": "Joined space successfully"}
	if err := ctrl.db.Where("space_id = ? AND is_default = ?", spaceID, true).First(&channel).Error; err == nil {
		response["channel_id"] = channel.ID
	}

	c.JSON(http.StatusOK, response)
}

// LeaveSpace godoc
// @Summary Leave a space
// @Description Removes the caller's membership; leaving a space twice is not an error
// @Tags spaces
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Space ID"
// @Success 200 {object} map[string]bool "Left space"
// @Failure 400 {object} map[string]string "Invalid space ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/spaces/{id}/leave [delete]
func (ctrl *SpaceController) LeaveSpace(c *gin.Context) {
	userID := c.MustGet("userID").(uint)
	spaceID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid space ID"})
		return
	}

	result := ctrl.db.Where("space_id = ? AND user_id = ?", spaceID, userID).Delete(&models.SpaceMember{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to leave space"})
		return
	}

	if result.RowsAffected > 0 {
		if err := ctrl.db.Model(&models.Space{}).Where("id = ? AND member_count > 0", spaceID).
			UpdateColumn("member_count", gorm.Expr("member_count - 1")).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to leave space"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetSpaces godoc
// @Summary Get the caller's joined spaces
// @Description Returns the chat list: joined spaces with latest-message metadata and unread counts
// @Tags spaces
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "List of spaces"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/spaces [get]
func (ctrl *SpaceController) GetSpaces(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	var memberships []models.SpaceMember
	if err := ctrl.db.Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch membership data"})
		return
	}

	spaceIDs := make([]uint, 0, len(memberships))
	lastReadMap := make(map[uint]models.SpaceMember)
	for _, m := range memberships {
		spaceIDs = append(spaceIDs, m.SpaceID)
		lastReadMap[m.SpaceID] = m
	}

	var spaces []models.Space
	if len(spaceIDs) > 0 {
		if err := ctrl.db.Preload("Channels").Where("id IN ?", spaceIDs).Find(&spaces).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch spaces"})
			return
		}
	}

	// Build the chat list with lastReadAt, unreadCount and the latest message
	response := []gin.H{}
	for _, space := range spaces {
		lastRead := lastReadMap[space.ID].LastReadAt

		var channelID *uint
		for _, ch := range space.Channels {
			if ch.IsDefault {
				id := ch.ID
				channelID = &id
				break
			}
		}

		item := gin.H{
			"space":      space,
			"lastReadAt": lastRead,
		}

		if channelID != nil {
			var unreadCount int64
			ctrl.db.Model(&models.Message{}).
				Where("channel_id = ? AND created_at > ?", *channelID, lastRead).
				Count(&unreadCount)

			var latest models.Message
			if err := ctrl.db.Where("channel_id = ?", *channelID).
				Order("id DESC").First(&latest).Error; err == nil {
				item["latestMessage"] = latest
			}

			item["unreadCount"] = unreadCount
		}

		response = append(response, item)
	}

	c.JSON(http.StatusOK, gin.H{"spaces": response})
}
