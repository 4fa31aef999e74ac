package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/chachabrian/wheelster-backend/internal/models"
)

type EventType string

const (
	EventCreated          EventType = "booking.created"
	EventConfirmed        EventType = "booking.confirmed"
	EventCancelled        EventType = "booking.cancelled"
	EventCompleted        EventType = "booking.completed"
	EventExpired          EventType = "booking.expired"
	EventRefunded         EventType = "booking.refunded"
	EventPaymentFailed    EventType = "booking.payment_failed"
	EventDriverAccepted   EventType = "booking.driver_accepted"
	EventDriverRejected   EventType = "booking.driver_rejected"
	EventDriverReassigned EventType = "booking.driver_reassigned"
)

// Event is the payload published for every booking transition.
type Event struct {
	ID            string               `json:"id"`
	Type          EventType            `json:"type"`
	BookingID     uint                 `json:"bookingId"`
	UserID        uint                 `json:"userId"`
	VehicleID     uint                 `json:"vehicleId"`
	DriverID      *uint                `json:"driverId,omitempty"`
	Status        models.BookingStatus `json:"status"`
	DriverStatus  models.DriverStatus  `json:"driverStatus"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	Amount        float64              `json:"amount,omitempty"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

func newEvent(t EventType, b *models.Booking, at time.Time) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          t,
		BookingID:     b.ID,
		UserID:        b.UserID,
		VehicleID:     b.VehicleID,
		DriverID:      b.DriverID,
		Status:        b.Status,
		DriverStatus:  b.DriverStatus,
		PaymentStatus: b.PaymentStatus,
		OccurredAt:    at,
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Event) error { return nil }
