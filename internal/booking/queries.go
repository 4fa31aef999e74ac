package booking

import (
	"context"

	"go.uber.org/zap"

	"github.com/chachabrian/wheelster-backend/internal/models"
)

// CompleteBooking marks a confirmed rental as finished and frees the
// vehicle.
func (s *Service) CompleteBooking(ctx context.Context, bookingID, actorID uint, role models.Role) (*models.Booking, error) {
	if role == models.RoleUser {
		return nil, unauthorized("only drivers and admins can complete bookings")
	}

	var out *models.Booking
	err := s.withBookingLock(ctx, bookingID, func() error {
		b, err := s.loadBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := s.authorizeActor(ctx, b, actorID, role); err != nil {
			return err
		}
		if err := transition(b, models.BookingStatusCompleted); err != nil {
			return err
		}
		if err := s.store.UpdateBooking(ctx, b); err != nil {
			return fromStore("booking", err)
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.releaseVehicle(ctx, out.VehicleID)
	s.log.Info("booking completed", zap.Uint("booking_id", out.ID))
	s.publish(ctx, EventCompleted, out, out.TotalAmount)
	return out, nil
}

// GetBooking returns a booking visible to the actor.
func (s *Service) GetBooking(ctx context.Context, bookingID, actorID uint, role models.Role) (*models.Booking, error) {
	b, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeActor(ctx, b, actorID, role); err != nil {
		return nil, err
	}
	return b, nil
}

// ListBookings scopes the listing by role: users see their own bookings,
// drivers the bookings of vehicles they own or are assigned to, admins
// everything.
func (s *Service) ListBookings(ctx context.Context, actorID uint, role models.Role, statuses []models.BookingStatus) ([]models.Booking, error) {
	for _, st := range statuses {
		if !st.Valid() {
			return nil, invalidInput("unknown booking status %q", st)
		}
	}

	f := BookingFilter{Statuses: statuses}
	switch role {
	case models.RoleAdmin:
	case models.RoleDriver:
		f.DriverID = &actorID
		f.OwnerID = &actorID
	case models.RoleUser:
		f.UserID = &actorID
	default:
		return nil, unauthorized("unknown role %q", role)
	}

	list, err := s.store.ListBookings(ctx, f)
	if err != nil {
		return nil, fromStore("bookings", err)
	}
	return list, nil
}

// VehicleCalendar lists the occupying bookings of a vehicle for
// availability rendering.
func (s *Service) VehicleCalendar(ctx context.Context, vehicleID uint) ([]models.Booking, error) {
	if _, err := s.vehicles.GetVehicle(ctx, vehicleID); err != nil {
		return nil, fromStore("vehicle", err)
	}
	list, err := s.store.ListBookings(ctx, BookingFilter{
		VehicleID: &vehicleID,
		Statuses:  models.OccupyingStatuses,
	})
	if err != nil {
		return nil, fromStore("bookings", err)
	}
	return list, nil
}

// Payments lists a booking's payment attempts for an actor allowed to see it.
func (s *Service) Payments(ctx context.Context, bookingID, actorID uint, role models.Role) ([]models.Payment, error) {
	if _, err := s.GetBooking(ctx, bookingID, actorID, role); err != nil {
		return nil, err
	}
	list, err := s.store.ListPayments(ctx, bookingID)
	if err != nil {
		return nil, fromStore("payments", err)
	}
	return list, nil
}
