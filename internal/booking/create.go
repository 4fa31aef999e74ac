package booking

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chachabrian/wheelster-backend/internal/models"
)

type AddressFields struct {
	Location string `json:"location"`
	Area     string `json:"area"`
	City     string `json:"city"`
	State    string `json:"state"`
	Country  string `json:"country"`
	Pincode  string `json:"pincode"`
}

// Compose joins the non-empty parts as "location, area, city, state,
// country, pincode".
func (a AddressFields) Compose() string {
	parts := make([]string, 0, 6)
	for _, p := range []string{a.Location, a.Area, a.City, a.State, a.Country, a.Pincode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

type CreateBookingInput struct {
	UserID        uint
	VehicleID     uint
	StartDate     time.Time
	EndDate       time.Time
	PickupTime    time.Time
	Duration      int
	WithDriver    bool
	LicenseNumber string
	Address       AddressFields
}

// NormalizePickup keeps pickup's hour and minute and moves it onto
// start's calendar day.
func NormalizePickup(start, pickup time.Time) time.Time {
	if pickup.IsZero() {
		return start
	}
	p := pickup.In(start.Location())
	return time.Date(start.Year(), start.Month(), start.Day(), p.Hour(), p.Minute(), 0, 0, start.Location())
}

func validateCreate(in CreateBookingInput) error {
	if in.VehicleID == 0 {
		return invalidInput("vehicleId is required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return invalidInput("startDate and endDate are required")
	}
	if in.StartDate.After(in.EndDate) {
		return invalidInput("startDate must not be after endDate")
	}
	if in.Duration <= 0 {
		return invalidInput("duration must be greater than zero")
	}
	if !in.WithDriver && strings.TrimSpace(in.LicenseNumber) == "" {
		return invalidInput("licenseNumber is required when booking without a driver")
	}
	return nil
}

// CreateBooking validates the request, checks the vehicle calendar and
// stores a Pending booking. The overlap check and the insert share one
// transaction that holds the vehicle lock.
func (s *Service) CreateBooking(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	if _, err := s.users.GetUser(ctx, in.UserID); err != nil {
		return nil, fromStore("user", err)
	}

	vehicle, err := s.vehicles.GetVehicle(ctx, in.VehicleID)
	if err != nil {
		return nil, fromStore("vehicle", err)
	}
	if !vehicle.Approved() {
		return nil, invalidInput("vehicle is not approved for rental")
	}
	if vehicle.Rent <= 0 {
		return nil, invalidInput("vehicle has no valid rent rate")
	}

	address := in.Address.Compose()
	if address == "" {
		return nil, invalidInput("address is required")
	}

	b := &models.Booking{
		UserID:        in.UserID,
		VehicleID:     vehicle.ID,
		Address:       address,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		OccupiedUntil: models.OccupancyEnd(in.StartDate, in.EndDate),
		PickupTime:    NormalizePickup(in.StartDate, in.PickupTime),
		Duration:      in.Duration,
		TotalAmount:   vehicle.Rent * float64(in.Duration),
		WithDriver:    in.WithDriver,
		Status:        models.BookingStatusPending,
		DriverStatus:  models.DriverStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		Version:       1,
	}
	if in.WithDriver {
		owner := vehicle.OwnerID
		b.DriverID = &owner
	} else {
		b.LicenseNumber = strings.TrimSpace(in.LicenseNumber)
	}

	err = s.store.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.LockVehicle(ctx, vehicle.ID); err != nil {
			return fromStore("vehicle", err)
		}
		busy, err := s.HasConflict(ctx, vehicle.ID, b.StartDate, b.EndDate)
		if err != nil {
			return err
		}
		if busy {
			return conflict("vehicle already booked for the requested dates")
		}
		if err := s.store.CreateBooking(ctx, b); err != nil {
			return fromStore("booking", err)
		}
		if err := s.users.UpdateAddress(ctx, in.UserID, address); err != nil {
			return fromStore("user", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	bookingsCreated.Inc()
	s.log.Info("booking created",
		zap.Uint("booking_id", b.ID),
		zap.Uint("vehicle_id", b.VehicleID),
		zap.Uint("user_id", b.UserID),
		zap.Float64("total_amount", b.TotalAmount),
	)
	s.publish(ctx, EventCreated, b, b.TotalAmount)
	return b, nil
}
