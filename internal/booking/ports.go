package booking

import (
	"context"
	"time"

	"github.com/chachabrian/wheelster-backend/internal/models"
)

// Store persists bookings, payments and driver history. Calls made with the
// ctx passed to InTx's callback join that transaction.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	// LockVehicle serializes writers competing for one vehicle's calendar
	// until the surrounding transaction ends.
	LockVehicle(ctx context.Context, vehicleID uint) error
	FindOverlapping(ctx context.Context, vehicleID uint, start, end time.Time, statuses []models.BookingStatus) ([]models.Booking, error)

	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id uint) (*models.Booking, error)
	// UpdateBooking writes b only if the stored version still equals
	// b.Version, then bumps b.Version. Returns ErrStaleVersion otherwise.
	UpdateBooking(ctx context.Context, b *models.Booking) error
	AddReassignment(ctx context.Context, r *models.DriverReassignment) error
	ListBookings(ctx context.Context, f BookingFilter) ([]models.Booking, error)
	ListExpiredPending(ctx context.Context, createdBefore time.Time, limit int) ([]models.Booking, error)

	CreatePayment(ctx context.Context, p *models.Payment) error
	UpdatePayment(ctx context.Context, p *models.Payment) error
	// CompletedPayment returns the booking's most recent Completed payment.
	CompletedPayment(ctx context.Context, bookingID uint) (*models.Payment, error)
	ListPayments(ctx context.Context, bookingID uint) ([]models.Payment, error)
}

// BookingFilter narrows ListBookings. Set filters are ANDed, except that
// DriverID and OwnerID together match a booking satisfying either.
type BookingFilter struct {
	UserID   *uint
	DriverID *uint
	// OwnerID matches bookings of vehicles owned by that user.
	OwnerID   *uint
	VehicleID *uint
	Statuses  []models.BookingStatus
	Limit     int
}

type UserDirectory interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
	UpdateAddress(ctx context.Context, userID uint, address string) error
	// DebitWallet returns ErrInsufficientFunds when the balance is short.
	DebitWallet(ctx context.Context, userID, bookingID uint, amount float64, reference string) error
	CreditWallet(ctx context.Context, userID, bookingID uint, amount float64, reference string) error
}

type VehicleCatalog interface {
	GetVehicle(ctx context.Context, id uint) (*models.Vehicle, error)
	SetAvailability(ctx context.Context, id uint, available bool) error
}

type GatewayStatus string

const (
	GatewaySucceeded GatewayStatus = "succeeded"
	GatewayPending   GatewayStatus = "pending"
	GatewayFailed    GatewayStatus = "failed"
)

type ChargeRequest struct {
	BookingID      uint
	Amount         float64
	Method         models.PaymentMethod
	CredentialRef  string
	IdempotencyKey string
}

type ChargeResult struct {
	Status        GatewayStatus
	TransactionID string
	Message       string
}

// RefundRequest returns Amount of the charge TransactionID. Requests
// sharing an IdempotencyKey are issued by the gateway at most once.
type RefundRequest struct {
	TransactionID  string
	Amount         float64
	IdempotencyKey string
}

type RefundResponse struct {
	Status   GatewayStatus
	RefundID string
}

type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResponse, error)
}

type Template string

const (
	TemplateBookingConfirmed Template = "booking_confirmed"
	TemplateBookingCancelled Template = "booking_cancelled"
	TemplateBookingRejected  Template = "booking_rejected"
	TemplateBookingExpired   Template = "booking_expired"
	TemplateDriverAssigned   Template = "driver_assigned"
)

type Notifier interface {
	Send(ctx context.Context, recipientID uint, tmpl Template, data map[string]any) error
}

type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}

// Locker grants exclusive ownership of a key for at most ttl. Acquire
// returns ErrLocked when another owner holds it.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
