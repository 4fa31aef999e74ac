package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chachabrian/wheelster-backend/internal/middleware"
)

// RegisterFCMToken registers or replaces the caller's device token
func RegisterFCMToken(users UserAccounts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			FCMToken string `json:"fcmToken" binding:"required,max=4096"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}

		if err := users.SetFCMToken(c.Request.Context(), middleware.CurrentUserID(c), input.FCMToken); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "FCM token registered successfully"})
	}
}

// RemoveFCMToken clears the caller's device token
func RemoveFCMToken(users UserAccounts) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := users.SetFCMToken(c.Request.Context(), middleware.CurrentUserID(c), ""); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "FCM token removed successfully"})
	}
}
