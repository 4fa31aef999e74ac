package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chachabrian/wheelster-backend/internal/middleware"
	"github.com/chachabrian/wheelster-backend/internal/models"
	"github.com/chachabrian/wheelster-backend/internal/services"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Routes struct {
	Engine    BookingEngine
	Users     UserAccounts
	Hub       *services.Hub
	JWTSecret string
	Checks    map[string]HealthCheck
}

// Register mounts the API under /api.
func (rt Routes) Register(r *gin.Engine) {
	auth := middleware.AuthMiddleware(rt.JWTSecret)

	api := r.Group("/api")
	api.GET("/health", Health(rt.Checks))
	api.GET("/vehicles/:id/bookings", VehicleCalendar(rt.Engine))

	if rt.Hub != nil {
		api.GET("/ws", auth, WebSocketHandler(rt.Hub))
	}

	protected := api.Group("/")
	protected.Use(auth)
	{
		bookings := protected.Group("/bookings")
		{
			renters := middleware.RequireRole(models.RoleUser, models.RoleDriver)

			bookings.POST("", renters, CreateBooking(rt.Engine))
			bookings.GET("", ListBookings(rt.Engine))
			bookings.GET("/:id", GetBooking(rt.Engine))
			bookings.GET("/:id/payments", GetBookingPayments(rt.Engine))
			bookings.POST("/:id/payment", renters, ProcessPayment(rt.Engine))
			bookings.POST("/:id/cancel", CancelBooking(rt.Engine))
			bookings.PUT("/:id/response", middleware.RequireRole(models.RoleDriver), RespondToAssignment(rt.Engine))
			bookings.PUT("/:id/reassign", middleware.RequireRole(models.RoleAdmin), ReassignDriver(rt.Engine))
			bookings.PUT("/:id/complete", middleware.RequireRole(models.RoleDriver, models.RoleAdmin), CompleteBooking(rt.Engine))
		}

		users := protected.Group("/users")
		{
			users.GET("/me", GetProfile(rt.Users))
			users.PUT("/fcm-token", RegisterFCMToken(rt.Users))
			users.DELETE("/fcm-token", RemoveFCMToken(rt.Users))
			users.GET("/notification-preferences", GetNotificationPreferences(rt.Users))
			users.PUT("/notification-preferences", UpdateNotificationPreferences(rt.Users))
		}
	}
}

// Health runs every check with a short deadline. Any failure turns the
// response into a 503. Failure details go to the request log, never to
// the client.
func Health(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				_ = c.Error(fmt.Errorf("health check %s: %w", name, err))
				results[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "checks": results})
	}
}
