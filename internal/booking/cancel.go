package booking

import (
	"context"

	"go.uber.org/zap"

	"github.com/chachabrian/wheelster-backend/internal/models"
)

type CancelInput struct {
	BookingID       uint
	ActorID         uint
	ActorRole       models.Role
	RequestedRefund *float64
}

type CancellationResult struct {
	Booking *models.Booking `json:"booking"`
	Refund  RefundResult    `json:"refund"`
}

// CancelBooking cancels a booking on behalf of its user, its driver or an
// admin, refunding any completed payment.
func (s *Service) CancelBooking(ctx context.Context, in CancelInput) (*CancellationResult, error) {
	if in.RequestedRefund != nil && *in.RequestedRefund < 0 {
		return nil, invalidInput("requestedRefundAmount must not be negative")
	}

	var res *CancellationResult
	err := s.withBookingLock(ctx, in.BookingID, func() error {
		b, err := s.loadBooking(ctx, in.BookingID)
		if err != nil {
			return err
		}
		if err := s.authorizeActor(ctx, b, in.ActorID, in.ActorRole); err != nil {
			return err
		}
		switch b.Status {
		case models.BookingStatusCancelled:
			return conflict("booking is already cancelled")
		case models.BookingStatusCompleted:
			return conflict("completed bookings cannot be cancelled")
		}

		refund, err := s.cancelLocked(ctx, b, refundPolicy{Requested: in.RequestedRefund}, "cancelled_by_"+string(in.ActorRole), nil)
		if err != nil {
			return err
		}

		if in.ActorRole == models.RoleDriver && b.IsAssignedDriver(in.ActorID) {
			s.notify(ctx, b.UserID, TemplateBookingCancelled, bookingNoticeData(b, refund))
		}
		res = &CancellationResult{Booking: b, Refund: refund}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// authorizeActor checks that actor may act on b: users on their own
// bookings, drivers on bookings they drive or whose vehicle they own,
// admins on anything.
func (s *Service) authorizeActor(ctx context.Context, b *models.Booking, actorID uint, role models.Role) error {
	switch role {
	case models.RoleAdmin:
		return nil
	case models.RoleUser:
		if b.UserID == actorID {
			return nil
		}
	case models.RoleDriver:
		if b.IsAssignedDriver(actorID) || b.UserID == actorID {
			return nil
		}
		v, err := s.vehicles.GetVehicle(ctx, b.VehicleID)
		if err != nil {
			return fromStore("vehicle", err)
		}
		if v.OwnerID == actorID {
			return nil
		}
	default:
		return unauthorized("unknown role %q", role)
	}
	return unauthorized("not allowed to modify this booking")
}

// cancelLocked refunds and cancels b. The caller holds the booking lock.
// mutate, when set, applies extra field changes in the same write.
func (s *Service) cancelLocked(ctx context.Context, b *models.Booking, policy refundPolicy, reason string, mutate func(*models.Booking)) (RefundResult, error) {
	if !b.Status.CanTransitionTo(models.BookingStatusCancelled) {
		return RefundResult{}, conflict("booking is %s and cannot be cancelled", b.Status)
	}

	plan, err := s.prepareRefund(ctx, b, policy)
	if err != nil {
		return RefundResult{}, err
	}

	commit := func(b *models.Booking) error {
		return s.store.InTx(ctx, func(ctx context.Context) error {
			if err := s.applyRefund(ctx, b, plan); err != nil {
				return err
			}
			if err := transition(b, models.BookingStatusCancelled); err != nil {
				return err
			}
			if mutate != nil {
				mutate(b)
			}
			return fromStore("booking", s.store.UpdateBooking(ctx, b))
		})
	}

	working := *b
	err = commit(&working)
	if err != nil && plan.external {
		// Money already left through the gateway; retry the bookkeeping on
		// a fresh copy before giving up.
		s.log.Warn("retrying cancellation write after gateway refund", zap.Uint("booking_id", b.ID), zap.Error(err))
		fresh, lerr := s.loadBooking(ctx, b.ID)
		if lerr == nil {
			working = *fresh
			err = commit(&working)
		}
		if err != nil {
			log := s.log.With(
				zap.Uint("booking_id", b.ID),
				zap.Uint("payment_id", plan.payment.ID),
				zap.String("refund_id", plan.refundID),
				zap.Float64("amount", plan.amount),
			)
			if rerr := s.recordIssuedRefund(ctx, plan); rerr != nil {
				log.Error("refund issued but not recorded, reconcile manually", zap.Error(rerr), zap.NamedError("cause", err))
			} else {
				log.Error("refund recorded but booking not cancelled", zap.Error(err))
			}
		}
	}
	if err != nil {
		return RefundResult{}, err
	}
	*b = working

	bookingsCancelled.WithLabelValues(reason).Inc()
	s.recordRefundMetrics(plan)
	s.releaseVehicle(ctx, b.VehicleID)
	s.log.Info("booking cancelled",
		zap.Uint("booking_id", b.ID),
		zap.String("reason", reason),
		zap.String("refund_outcome", string(plan.outcome)),
	)

	result := plan.result()
	s.publish(ctx, EventCancelled, b, 0)
	if result.Outcome == RefundOutcomeRefunded || result.Outcome == RefundOutcomeProcessing {
		s.publish(ctx, EventRefunded, b, result.Amount)
	}
	return result, nil
}

func bookingNoticeData(b *models.Booking, refund RefundResult) map[string]any {
	return map[string]any{
		"bookingId":     b.ID,
		"vehicleId":     b.VehicleID,
		"startDate":     b.StartDate,
		"endDate":       b.EndDate,
		"address":       b.Address,
		"totalAmount":   b.TotalAmount,
		"refundOutcome": string(refund.Outcome),
		"refundAmount":  refund.Amount,
		"refundMessage": refund.Message,
	}
}
