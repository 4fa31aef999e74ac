package booking

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/chachabrian/wheelster-backend/internal/models"
)

type DriverAction string

const (
	DriverAccept DriverAction = "accept"
	DriverReject DriverAction = "reject"
)

// ParseDriverAction accepts accept/reject and the past-tense forms older
// driver apps send.
func ParseDriverAction(s string) (DriverAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "accept", "accepted":
		return DriverAccept, nil
	case "reject", "rejected":
		return DriverReject, nil
	}
	return "", invalidInput("action must be accept or reject")
}

// RespondToAssignment records the assigned driver's decision. A rejection
// cancels the booking and refunds any completed payment in full.
func (s *Service) RespondToAssignment(ctx context.Context, bookingID, driverID uint, action DriverAction) (*models.Booking, error) {
	if action != DriverAccept && action != DriverReject {
		return nil, invalidInput("action must be accept or reject")
	}

	var out *models.Booking
	err := s.withBookingLock(ctx, bookingID, func() error {
		b, err := s.loadBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if !b.IsAssignedDriver(driverID) {
			return unauthorized("only the assigned driver can respond to this booking")
		}
		if b.Status.IsTerminal() {
			return conflict("booking is %s", b.Status)
		}
		if b.DriverStatus != models.DriverStatusPending {
			return conflict("booking was already %s by the driver", b.DriverStatus)
		}

		switch action {
		case DriverAccept:
			b.DriverStatus = models.DriverStatusAccepted
			if err := s.store.UpdateBooking(ctx, b); err != nil {
				return fromStore("booking", err)
			}
			s.log.Info("driver accepted booking", zap.Uint("booking_id", b.ID), zap.Uint("driver_id", driverID))
			s.publish(ctx, EventDriverAccepted, b, 0)

		case DriverReject:
			refund, err := s.cancelLocked(ctx, b, refundPolicy{Full: true}, "driver_rejected", func(b *models.Booking) {
				b.DriverStatus = models.DriverStatusDeclined
			})
			if err != nil {
				return err
			}
			s.log.Info("driver rejected booking", zap.Uint("booking_id", b.ID), zap.Uint("driver_id", driverID))
			s.notify(ctx, b.UserID, TemplateBookingRejected, bookingNoticeData(b, refund))
			s.publish(ctx, EventDriverRejected, b, refund.Amount)
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReassignDriver replaces a booking's driver, keeping the previous one in
// the reassignment history. A driver who already accepted stays.
func (s *Service) ReassignDriver(ctx context.Context, bookingID, newDriverID, adminID uint) (*models.Booking, error) {
	if newDriverID == 0 {
		return nil, invalidInput("newDriverId is required")
	}

	var out *models.Booking
	err := s.withBookingLock(ctx, bookingID, func() error {
		b, err := s.loadBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if !b.WithDriver {
			return invalidInput("booking does not include a driver")
		}
		if b.Status.IsTerminal() {
			return conflict("booking is %s", b.Status)
		}
		switch b.DriverStatus {
		case models.DriverStatusPending, models.DriverStatusDeclined:
		case models.DriverStatusAccepted:
			return conflict("the assigned driver already accepted this booking")
		}
		if b.IsAssignedDriver(newDriverID) {
			return invalidInput("driver is already assigned to this booking")
		}

		driver, err := s.users.GetUser(ctx, newDriverID)
		if err != nil {
			return fromStore("driver", err)
		}
		if driver.Role != models.RoleDriver {
			return invalidInput("user %d is not a driver", newDriverID)
		}

		entry := models.DriverReassignment{
			BookingID:    b.ID,
			DriverID:     b.DriverID,
			ReassignedBy: adminID,
			ReassignedAt: s.clock.Now(),
		}
		working := *b
		working.DriverID = &newDriverID
		working.DriverStatus = models.DriverStatusPending

		err = s.store.InTx(ctx, func(ctx context.Context) error {
			if err := s.store.AddReassignment(ctx, &entry); err != nil {
				return fromStore("reassignment", err)
			}
			return fromStore("booking", s.store.UpdateBooking(ctx, &working))
		})
		if err != nil {
			return err
		}
		working.Reassignments = append(working.Reassignments, entry)

		s.log.Info("driver reassigned",
			zap.Uint("booking_id", b.ID),
			zap.Uint("new_driver_id", newDriverID),
			zap.Uint("admin_id", adminID),
		)
		s.notify(ctx, newDriverID, TemplateDriverAssigned, map[string]any{
			"bookingId": working.ID,
			"startDate": working.StartDate,
			"endDate":   working.EndDate,
			"address":   working.Address,
		})
		s.publish(ctx, EventDriverReassigned, &working, 0)
		out = &working
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
