package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chachabrian/wheelster-backend/internal/booking"
	"github.com/chachabrian/wheelster-backend/internal/middleware"
	"github.com/chachabrian/wheelster-backend/internal/models"
)

// BookingEngine is the part of booking.Service the HTTP layer drives.
type BookingEngine interface {
	CreateBooking(ctx context.Context, in booking.CreateBookingInput) (*models.Booking, error)
	ProcessPayment(ctx context.Context, in booking.PaymentInput) (*booking.PaymentResult, error)
	CancelBooking(ctx context.Context, in booking.CancelInput) (*booking.CancellationResult, error)
	RespondToAssignment(ctx context.Context, bookingID, driverID uint, action booking.DriverAction) (*models.Booking, error)
	ReassignDriver(ctx context.Context, bookingID, newDriverID, adminID uint) (*models.Booking, error)
	CompleteBooking(ctx context.Context, bookingID, actorID uint, role models.Role) (*models.Booking, error)
	GetBooking(ctx context.Context, bookingID, actorID uint, role models.Role) (*models.Booking, error)
	ListBookings(ctx context.Context, actorID uint, role models.Role, statuses []models.BookingStatus) ([]models.Booking, error)
	VehicleCalendar(ctx context.Context, vehicleID uint) ([]models.Booking, error)
	Payments(ctx context.Context, bookingID, actorID uint, role models.Role) ([]models.Payment, error)
}

var _ BookingEngine = (*booking.Service)(nil)

type createBookingRequest struct {
	VehicleID     uint   `json:"vehicleId" binding:"required"`
	StartDate     string `json:"startDate" binding:"required"`
	EndDate       string `json:"endDate" binding:"required"`
	PickupTime    string `json:"pickupTime"`
	Duration      int    `json:"duration" binding:"required,gt=0"`
	WithDriver    bool   `json:"withDriver"`
	LicenseNumber string `json:"licenseNumber" binding:"max=64"`
	booking.AddressFields
}

// CreateBooking handles POST /bookings
func CreateBooking(engine BookingEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input createBookingRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}

		start, err := parseDate(input.StartDate)
		if err != nil {
			badRequest(c, "startDate must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
			return
		}
		end, err := parseDate(input.EndDate)
		if err != nil {
			badRequest(c, "endDate must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
			return
		}
		pickup, err := parsePickup(input.PickupTime)
		if err != nil {
			badRequest(c, "pickupTime must be HH:MM or an RFC 3339 timestamp")
			return
		}

		b, err := engine.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
			UserID:        middleware.CurrentUserID(c),
			VehicleID:     input.VehicleID,
			StartDate:     start,
			EndDate:       end,
			PickupTime:    pickup,
			Duration:      input.Duration,
			WithDriver:    input.WithDriver,
			LicenseNumber: strings.TrimSpace(input.LicenseNumber),
			Address:       input.AddressFields,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":   "Booking created successfully",
			"bookingId": b.ID,
			"booking":   b,
		})
	}
}

// ProcessPayment handles POST /bookings/:id/payment
func ProcessPayment(engine BookingEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		// paymentMethod and paymentMethodId are the names older clients send
		var input struct {
			Method               string `json:"method"`
			PaymentMethod        string `json:"paymentMethod"`
			PaymentCredentialRef string `json:"paymentCredentialRef"`
			PaymentMethodID      string `json:"paymentMethodId"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		if input.Method == "" {
			input.Method = input.PaymentMethod
		}
		if input.PaymentCredentialRef == "" {
			input.PaymentCredentialRef = input.PaymentMethodID
		}
		if input.Method == "" {
			badRequest(c, "method is required")
			return
		}
		method, err := models.ParsePaymentMethod(input.Method)
		if err != nil {
			badRequest(c, "method must be one of: Card, COD, Wallet")
			return
		}

		res, err := engine.ProcessPayment(c.Request.Context(), booking.PaymentInput{
			BookingID:     id,
			ActorID:       middleware.CurrentUserID(c),
			ActorRole:     middleware.CurrentRole(c),
			Method:        method,
			CredentialRef: input.PaymentCredentialRef,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":       "Payment processed successfully",
			"transactionId": res.TransactionID,
			"payment":       res.Payment,
			"booking":       res.Booking,
		})
	}
}

// CancelBooking handles POST /bookings/:id/cancel
func CancelBooking(engine BookingEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		var input struct {
			RequestedRefundAmount *float64 `json:"requestedRefundAmount" binding:"omitempty,gte=0"`
		}
		// the body is optional
		if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
			bindError(c, err)
			return
		}

		res, err := engine.CancelBooking(c.Request.Context(), booking.CancelInput{
			BookingID:       id,
			ActorID:         middleware.CurrentUserID(c),
			ActorRole:       middleware.CurrentRole(c),
			RequestedRefund: input.RequestedRefundAmount,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Booking cancelled successfully",
			"refund":  res.Refund,
			"booking": res.Booking,
		})
	}
}

// RespondToAssignment handles PUT /bookings/:id/response
func RespondToAssignment(engine BookingEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		var input struct {
			Action string `json:"action" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		action, err := booking.ParseDriverAction(input.Action)
		if err != nil {
			respondError(c, err)
			return
		}

		b, err := engine.RespondToAssignment(c.Request.Context(), id, middleware.CurrentUserID(c), action)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// ReassignDriver handles PUT /bookings/:id/reassign
func ReassignDriver(engine BookingEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		var input struct {
			NewDriverID uint `json:"newDriverId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}

		b, err := engine.ReassignDriver(c.Request.Context(), id, input.NewDriverID, middleware.CurrentUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// CompleteBooking handles PUT /bookings/:id/complete
func CompleteBooking(engine BookingEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		b, err := engine.CompleteBooking(c.Request.Context(), id, middleware.CurrentUserID(c), middleware.CurrentRole(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// GetBooking handles GET /bookings/:id
func GetBooking(engine BookingEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		b, err := engine.GetBooking(c.Request.Context(), id, middleware.CurrentUserID(c), middleware.CurrentRole(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// GetBookingPayments handles GET /bookings/:id/payments
func GetBookingPayments(engine BookingEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		payments, err := engine.Payments(c.Request.Context(), id, middleware.CurrentUserID(c), middleware.CurrentRole(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, payments)
	}
}

// ListBookings handles GET /bookings. Users see their own bookings,
// drivers the ones assigned to them and admins everything. An optional
// ?status=Pending,Confirmed narrows the list.
func ListBookings(engine BookingEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var statuses []models.BookingStatus
		if raw := c.Query("status"); raw != "" {
			for _, part := range strings.Split(raw, ",") {
				st, err := models.ParseBookingStatus(strings.TrimSpace(part))
				if err != nil {
					badRequest(c, err.Error())
					return
				}
				statuses = append(statuses, st)
			}
		}

		bookings, err := engine.ListBookings(c.Request.Context(), middleware.CurrentUserID(c), middleware.CurrentRole(c), statuses)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, bookings)
	}
}

// VehicleCalendar handles GET /vehicles/:id/bookings. Only the occupied
// date ranges are exposed.
func VehicleCalendar(engine BookingEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		bookings, err := engine.VehicleCalendar(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}

		ranges := make([]gin.H, 0, len(bookings))
		for _, b := range bookings {
			ranges = append(ranges, gin.H{
				"bookingId": b.ID,
				"startDate": b.StartDate,
				"endDate":   b.EndDate,
				"status":    b.Status,
			})
		}
		c.JSON(http.StatusOK, ranges)
	}
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, s)
}

func parsePickup(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("15:04", s)
}
