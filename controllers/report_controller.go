package controllers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/momspace/momspace_backend/models"
	"github.com/momspace/momspace_backend/ratelimit"
	"github.com/momspace/momspace_backend/utils"
	"github.com/momspace/momspace_backend/websocket"
	"gorm.io/gorm"
)

// Report submissions are capped per reporter over a sliding window.
const (
	reportRateLimit  = 10
	reportRateWindow = time.Minute
)

// maskReportThreshold is the number of distinct reports at which a message
// is hidden pending moderation.
const maskReportThreshold = 3

// RateLimiter is the sliding-window check used by the privileged handlers.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*ratelimit.Result, error)
}

// ReportAuditor records hashed request metadata for a stored report.
type ReportAuditor interface {
	RecordReport(reportID uint, userAgent, ip string)
}

type ReportController struct {
	db      *gorm.DB
	hub     Publisher
	limiter RateLimiter
	auditor ReportAuditor
}

func NewReportController(db *gorm.DB, hub Publisher, limiter RateLimiter, auditor ReportAuditor) *ReportController {
	return &ReportController{db: db, hub: hub, limiter: limiter, auditor: auditor}
}

type CreateReportInput struct {
	TargetType string `json:"target_type" binding:"required"`
	TargetID   string `json:"target_id" binding:"required"`
	ReasonCode string `json:"reason_code"`
	ReasonText string `json:"reason_text"`
}

// CreateReport godoc
// @Summary Report a user, post or message
// @Description Stores a moderation report; duplicate reports and reporters over the rate limit are rejected
// @Tags reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param report body CreateReportInput true "Report"
// @Success 200 {object} map[string]bool "Report stored"
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 409 {object} map[string]string "Duplicate report"
// @Failure 429 {object} map[string]string "Rate limit exceeded"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/reports [post]
func (ctrl *ReportController) CreateReport(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	var input CreateReportInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "code": "bad_request"})
		return
	}

	if !models.ValidReportTarget(input.TargetType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target type", "code": "bad_target_type"})
		return
	}
	if !utils.IsUUIDv4(input.TargetID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target id", "code": "bad_target_id"})
		return
	}
	if len(input.ReasonText) > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason too long", "code": "bad_reason"})
		return
	}

	// Sliding-window limit per reporter; a limiter outage never blocks
	// reports (fail-open)
	result, err := ctrl.limiter.Allow(c.Request.Context(), fmt.Sprintf("report:%d", userID), reportRateLimit, reportRateWindow)
	if err != nil {
		log.Printf("report rate limit check failed: %v", err)
	} else if !result.Allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":               "too many reports",
			"code":                "rate_limited",
			"retry_after_seconds": int(result.RetryAfter.Seconds()),
		})
		return
	}

	// One report per reporter per target
	var existing models.Report
	err = ctrl.db.Where("reporter_id = ? AND target_type = ? AND target_id = ?",
		userID, input.TargetType, input.TargetID).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "already reported", "code": "duplicate_report"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store report", "code": "internal"})
		return
	}

	report := models.Report{
		ReporterID: userID,
		TargetType: input.TargetType,
		TargetID:   input.TargetID,
		ReasonCode: input.ReasonCode,
		ReasonText: input.ReasonText,
	}

	if err := ctrl.db.Create(&report).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store report", "code": "internal"})
		return
	}

	// Bump the target's report count when a message is reported; enough
	// distinct reports hide the message pending moderation
	if input.TargetType == models.ReportTargetMessage {
		ctrl.db.Model(&models.Message{}).Where("public_id = ?", input.TargetID).
			UpdateColumn("report_count", gorm.Expr("report_count + 1"))
		ctrl.maskIfOverThreshold(input.TargetID)
	}

	ctrl.auditor.RecordReport(report.ID, c.GetHeader("User-Agent"), c.ClientIP())

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// maskIfOverThreshold hides a heavily reported message and pushes the
// update so open sessions replace their copy. Best-effort: a lookup
// failure leaves the message unmasked until the next report.
func (ctrl *ReportController) maskIfOverThreshold(publicID string) {
	var message models.Message
	if err := ctrl.db.Preload("Sender").Where("public_id = ?", publicID).First(&message).Error; err != nil {
		return
	}
	if message.Masked || message.ReportCount < maskReportThreshold {
		return
	}

	if err := ctrl.db.Model(&models.Message{}).Where("id = ?", message.ID).
		UpdateColumn("masked", true).Error; err != nil {
		log.Printf("failed to mask message %d: %v", message.ID, err)
		return
	}
	message.Masked = true
	maskSenderContacts(&message)

	switch {
	case message.ChannelID != nil:
		ctrl.hub.Publish(websocket.ChannelTopic(*message.ChannelID), websocket.EventMessageUpdated, message)
	case message.AnonRoomID != nil:
		ctrl.hub.Publish(websocket.AnonRoomTopic(*message.AnonRoomID), websocket.EventMessageUpdated, message)
	}
}
