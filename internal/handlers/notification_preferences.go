package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chachabrian/wheelster-backend/internal/middleware"
)

// GetNotificationPreferences retrieves the caller's notification preferences
func GetNotificationPreferences(users UserAccounts) gin.HandlerFunc {
	return func(c *gin.Context) {
		prefs, err := users.Preferences(c.Request.Context(), middleware.CurrentUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, prefs)
	}
}

// UpdateNotificationPreferences changes only the switches present in the body
func UpdateNotificationPreferences(users UserAccounts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			PushEnabled         *bool `json:"pushEnabled"`
			EmailEnabled        *bool `json:"emailEnabled"`
			SMSEnabled          *bool `json:"smsEnabled"`
			WebSocketEnabled    *bool `json:"webSocketEnabled"`
			BookingAlerts       *bool `json:"bookingAlerts"`
			PaymentAlerts       *bool `json:"paymentAlerts"`
			PromotionalMessages *bool `json:"promotionalMessages"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}

		ctx := c.Request.Context()
		prefs, err := users.Preferences(ctx, middleware.CurrentUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}

		for _, f := range []struct {
			in  *bool
			out *bool
		}{
			{input.PushEnabled, &prefs.PushEnabled},
			{input.EmailEnabled, &prefs.EmailEnabled},
			{input.SMSEnabled, &prefs.SMSEnabled},
			{input.WebSocketEnabled, &prefs.WebSocketEnabled},
			{input.BookingAlerts, &prefs.BookingAlerts},
			{input.PaymentAlerts, &prefs.PaymentAlerts},
			{input.PromotionalMessages, &prefs.PromotionalMessages},
		} {
			if f.in != nil {
				*f.out = *f.in
			}
		}

		if err := users.SavePreferences(ctx, prefs); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":     "Preferences updated successfully",
			"preferences": prefs,
		})
	}
}
