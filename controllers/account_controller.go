package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/momspace/momspace_backend/models"
	"gorm.io/gorm"
)

type AccountController struct {
	db *gorm.DB
}

func NewAccountController(db *gorm.DB) *AccountController {
	return &AccountController{db: db}
}

// DeleteAccount godoc
// @Summary Delete the caller's account
// @Description Removes memberships, detaches authored messages and deletes the profile row
// @Tags account
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]bool "Account deleted"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Server error"
// @Router /api/account [delete]
func (ctrl *AccountController) DeleteAccount(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	err := ctrl.db.Transaction(func(tx *gorm.DB) error {
		// Release membership slots before dropping the rows
		var memberships []models.SpaceMember
		if err := tx.Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
			return err
		}
		for _, m := range memberships {
			if err := tx.Model(&models.Space{}).Where("id = ? AND member_count > 0", m.SpaceID).
				UpdateColumn("member_count", gorm.Expr("member_count - 1")).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.SpaceMember{}).Error; err != nil {
			return err
		}

		// Authored messages stay readable but lose their author
		if err := tx.Model(&models.Message{}).Where("sender_id = ?", userID).
			Update("sender_id", nil).Error; err != nil {
			return err
		}

		return tx.Delete(&models.User{}, userID).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete account"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
