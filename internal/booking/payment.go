package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chachabrian/wheelster-backend/internal/models"
)

type PaymentInput struct {
	BookingID     uint
	ActorID       uint
	ActorRole     models.Role
	Method        models.PaymentMethod
	CredentialRef string
}

type PaymentResult struct {
	Booking       *models.Booking `json:"booking"`
	Payment       *models.Payment `json:"payment"`
	TransactionID string          `json:"transactionId"`
}

// ChargeAmount is what the gateway is asked for: the booking total, raised
// to the gateway's minimum chargeable amount.
func (s *Service) ChargeAmount(total float64) float64 {
	return math.Max(total, s.cfg.MinimumCharge)
}

// ProcessPayment settles a booking. Every call that passes validation
// writes exactly one Payment row; only a Completed payment confirms the
// booking.
func (s *Service) ProcessPayment(ctx context.Context, in PaymentInput) (*PaymentResult, error) {
	if !in.Method.Valid() {
		return nil, invalidInput("unsupported payment method %q", in.Method)
	}
	if in.Method == models.PaymentMethodCard && in.CredentialRef == "" {
		return nil, invalidInput("paymentCredentialRef is required for card payments")
	}

	var res *PaymentResult
	err := s.withBookingLock(ctx, in.BookingID, func() error {
		b, err := s.loadBooking(ctx, in.BookingID)
		if err != nil {
			return err
		}
		if in.ActorRole != models.RoleAdmin && b.UserID != in.ActorID {
			return unauthorized("only the booking's user can pay for it")
		}
		if b.PaymentStatus == models.PaymentStatusPaid {
			return conflict("booking is already paid")
		}
		if !b.Status.CanTransitionTo(models.BookingStatusConfirmed) {
			return conflict("booking is %s and cannot be paid", b.Status)
		}

		p := &models.Payment{
			BookingID:    b.ID,
			UserID:       b.UserID,
			Method:       in.Method,
			Status:       models.PaymentRecordPending,
			RefundStatus: models.RefundNotInitiated,
		}

		switch in.Method {
		case models.PaymentMethodCard:
			p.Amount = s.ChargeAmount(b.TotalAmount)
			if err := s.chargeCard(ctx, b, p, in.CredentialRef); err != nil {
				return s.recordFailure(ctx, b, p, err)
			}
		case models.PaymentMethodCOD, models.PaymentMethodWallet:
			p.Amount = b.TotalAmount
			p.Status = models.PaymentRecordCompleted
		}

		confirmed, err := s.confirmPayment(ctx, b, p)
		if err != nil {
			if errors.Is(err, ErrInsufficientFunds) {
				return s.recordFailure(ctx, b, p, paymentFailed("insufficient wallet balance", err))
			}
			return err
		}

		paymentsProcessed.WithLabelValues(string(p.Method), string(p.Status)).Inc()
		s.occupyVehicle(ctx, confirmed.VehicleID)
		s.log.Info("booking confirmed",
			zap.Uint("booking_id", confirmed.ID),
			zap.Uint("payment_id", p.ID),
			zap.String("method", string(p.Method)),
			zap.Float64("amount", p.Amount),
		)
		s.notify(ctx, confirmed.UserID, TemplateBookingConfirmed, s.confirmationData(ctx, confirmed, p))
		s.publish(ctx, EventConfirmed, confirmed, p.Amount)

		res = &PaymentResult{Booking: confirmed, Payment: p, TransactionID: p.Transaction()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// chargeCard asks the gateway for the payment amount. On return without
// error p is Completed and carries the transaction id.
func (s *Service) chargeCard(ctx context.Context, b *models.Booking, p *models.Payment, credentialRef string) error {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	start := time.Now()
	charge, err := s.gateway.Charge(callCtx, ChargeRequest{
		BookingID:      b.ID,
		Amount:         p.Amount,
		Method:         p.Method,
		CredentialRef:  credentialRef,
		IdempotencyKey: uuid.NewString(),
	})
	gatewayLatency.WithLabelValues("charge").Observe(time.Since(start).Seconds())

	if charge.TransactionID != "" {
		id := charge.TransactionID
		p.TransactionID = &id
	}
	if err != nil {
		return paymentFailed("payment could not be processed", err)
	}
	if charge.Status != GatewaySucceeded {
		msg := "payment was declined"
		if charge.Message != "" {
			msg = "payment was declined: " + charge.Message
		}
		return paymentFailed(msg, nil)
	}
	p.Status = models.PaymentRecordCompleted
	return nil
}

// confirmPayment writes the completed payment and confirms the booking in
// one transaction. A card charge that cannot be recorded is retried once
// on a fresh booking, then compensated with a full refund.
func (s *Service) confirmPayment(ctx context.Context, b *models.Booking, p *models.Payment) (*models.Booking, error) {
	commit := func(b *models.Booking) error {
		return s.store.InTx(ctx, func(ctx context.Context) error {
			if p.Method == models.PaymentMethodWallet {
				ref := fmt.Sprintf("payment:booking:%d", b.ID)
				if err := s.users.DebitWallet(ctx, b.UserID, b.ID, p.Amount, ref); err != nil {
					return err
				}
			}
			p.ID = 0
			if err := s.store.CreatePayment(ctx, p); err != nil {
				return fromStore("payment", err)
			}
			if err := transition(b, models.BookingStatusConfirmed); err != nil {
				return err
			}
			b.PaymentStatus = models.PaymentStatusPaid
			b.PaymentID = p.Transaction()
			return fromStore("booking", s.store.UpdateBooking(ctx, b))
		})
	}

	working := *b
	err := commit(&working)
	if err == nil {
		return &working, nil
	}
	if p.Method != models.PaymentMethodCard {
		if errors.Is(err, ErrInsufficientFunds) {
			return nil, err
		}
		return nil, fromStore("booking", err)
	}

	s.log.Warn("retrying booking confirmation after card charge", zap.Uint("booking_id", b.ID), zap.Error(err))
	if fresh, lerr := s.loadBooking(ctx, b.ID); lerr == nil && fresh.PaymentStatus != models.PaymentStatusPaid {
		working = *fresh
		if err = commit(&working); err == nil {
			return &working, nil
		}
	}

	s.compensateCharge(ctx, b, p, err)
	return nil, internal("payment could not be recorded, the charge was reversed", err)
}

// compensateCharge reverses a card charge whose booking update failed and
// records the reversal.
func (s *Service) compensateCharge(ctx context.Context, b *models.Booking, p *models.Payment, cause error) {
	log := s.log.With(zap.Uint("booking_id", b.ID), zap.String("transaction_id", p.Transaction()))

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()
	resp, err := s.gateway.Refund(callCtx, RefundRequest{
		TransactionID:  p.Transaction(),
		Amount:         p.Amount,
		IdempotencyKey: "refund:charge:" + p.Transaction(),
	})
	if err != nil || resp.Status == GatewayFailed {
		log.Error("compensating refund failed, reconcile manually", zap.Error(err), zap.NamedError("cause", cause))
		return
	}

	p.ID = 0
	p.Status = models.PaymentRecordRefunded
	p.RefundStatus = models.RefundRefunded
	if resp.Status == GatewayPending {
		p.RefundStatus = models.RefundProcessing
	}
	p.RefundedAmount = p.Amount
	p.FailureReason = "booking update failed: " + cause.Error()
	if err := s.store.CreatePayment(ctx, p); err != nil {
		log.Error("record compensated payment", zap.Error(err))
	}
	refundsProcessed.WithLabelValues(string(p.Method), "compensated").Inc()
}

// recordFailure stores p as Failed, leaves the booking untouched and
// returns cause.
func (s *Service) recordFailure(ctx context.Context, b *models.Booking, p *models.Payment, cause error) error {
	p.ID = 0
	p.Status = models.PaymentRecordFailed
	var e *Error
	if errors.As(cause, &e) {
		p.FailureReason = e.Message
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		s.log.Error("record failed payment", zap.Uint("booking_id", b.ID), zap.Error(err))
	}
	paymentsProcessed.WithLabelValues(string(p.Method), string(p.Status)).Inc()
	s.publish(ctx, EventPaymentFailed, b, p.Amount)
	return cause
}

func (s *Service) confirmationData(ctx context.Context, b *models.Booking, p *models.Payment) map[string]any {
	data := map[string]any{
		"bookingId":     b.ID,
		"address":       b.Address,
		"startDate":     b.StartDate,
		"endDate":       b.EndDate,
		"pickupTime":    b.PickupTime,
		"duration":      b.Duration,
		"totalAmount":   b.TotalAmount,
		"paymentMethod": string(p.Method),
		"transactionId": p.Transaction(),
		"withDriver":    b.WithDriver,
	}
	if v, err := s.vehicles.GetVehicle(ctx, b.VehicleID); err == nil {
		data["vehicleName"] = v.Name
		data["vehicleType"] = string(v.VehicleType)
		data["registrationNumber"] = v.RegistrationNumber
	}
	return data
}
