package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chachabrian/wheelster-backend/internal/middleware"
	"github.com/chachabrian/wheelster-backend/internal/models"
)

// UserAccounts is the user directory as seen by the account endpoints.
type UserAccounts interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
	SetFCMToken(ctx context.Context, userID uint, token string) error
	Preferences(ctx context.Context, userID uint) (*models.NotificationPreference, error)
	SavePreferences(ctx context.Context, prefs *models.NotificationPreference) error
}

// GetProfile retrieves the caller's profile
func GetProfile(users UserAccounts) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := users.GetUser(c.Request.Context(), middleware.CurrentUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}

		profile := gin.H{
			"id":            user.ID,
			"name":          user.Name,
			"email":         user.Email,
			"phone":         user.Phone,
			"role":          user.Role,
			"address":       user.Address,
			"walletBalance": user.WalletBalance,
			"pushEnabled":   user.FCMToken != "",
		}
		if user.Role == models.RoleDriver {
			profile["licenseNumber"] = user.LicenseNumber
			profile["experienceYears"] = user.ExperienceYears
		}
		c.JSON(http.StatusOK, profile)
	}
}
