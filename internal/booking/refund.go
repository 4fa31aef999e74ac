package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/chachabrian/wheelster-backend/internal/models"
)

type RefundOutcome string

const (
	RefundOutcomeRefunded   RefundOutcome = "refunded"
	RefundOutcomeProcessing RefundOutcome = "processing"
	RefundOutcomeManual     RefundOutcome = "manual_refund"
	RefundOutcomeNotNeeded  RefundOutcome = "no_refund_needed"
)

type RefundResult struct {
	Outcome       RefundOutcome              `json:"outcome"`
	Amount        float64                    `json:"amount"`
	Method        models.PaymentMethod       `json:"method,omitempty"`
	PaymentID     uint                       `json:"paymentId,omitempty"`
	PaymentStatus models.PaymentRecordStatus `json:"paymentStatus,omitempty"`
	RefundStatus  models.RefundStatus        `json:"refundStatus,omitempty"`
	Message       string                     `json:"message"`
}

// refundPolicy selects the refund amount: full refunds the whole payment,
// otherwise Requested (clamped) or the default rate applies.
type refundPolicy struct {
	Requested *float64
	Full      bool
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputeRefund returns the amount to give back for a payment of paid.
// The result is always within [0, paid].
func ComputeRefund(paid float64, requested *float64, rate float64) float64 {
	if paid <= 0 {
		return 0
	}
	var amount float64
	if requested != nil {
		amount = *requested
	} else {
		amount = roundCents(paid * rate)
	}
	return math.Max(0, math.Min(amount, paid))
}

// refundPlan is a refund whose external side (if any) already happened and
// whose bookkeeping still has to be written.
type refundPlan struct {
	payment  *models.Payment
	amount   float64
	outcome  RefundOutcome
	external bool
	refundID string
}

func (p *refundPlan) result() RefundResult {
	if p.payment == nil {
		return RefundResult{Outcome: RefundOutcomeNotNeeded, Message: "no completed payment, no refund needed"}
	}
	r := RefundResult{
		Outcome:       p.outcome,
		Amount:        p.amount,
		Method:        p.payment.Method,
		PaymentID:     p.payment.ID,
		PaymentStatus: p.payment.Status,
		RefundStatus:  p.payment.RefundStatus,
	}
	switch p.outcome {
	case RefundOutcomeRefunded:
		r.Message = fmt.Sprintf("refund of %.2f issued", p.amount)
	case RefundOutcomeProcessing:
		r.Message = fmt.Sprintf("refund of %.2f is processing", p.amount)
	case RefundOutcomeManual:
		r.Amount = 0
		r.Message = "cash payment, refund will be handled manually"
	case RefundOutcomeNotNeeded:
		r.Message = "no refund needed"
	}
	return r
}

// prepareRefund finds the booking's completed payment and performs the
// gateway call for card payments. Nothing is written; a gateway failure
// returns RefundFailed with state untouched.
func (s *Service) prepareRefund(ctx context.Context, b *models.Booking, policy refundPolicy) (*refundPlan, error) {
	payment, err := s.store.CompletedPayment(ctx, b.ID)
	if errors.Is(err, ErrNotFound) {
		return &refundPlan{outcome: RefundOutcomeNotNeeded}, nil
	}
	if err != nil {
		return nil, fromStore("payment", err)
	}

	requested := policy.Requested
	if policy.Full {
		requested = &payment.Amount
	}
	plan := &refundPlan{
		payment: payment,
		amount:  ComputeRefund(payment.Amount, requested, s.cfg.DefaultRefundRate),
	}

	if payment.RefundStatus == models.RefundProcessing {
		// an earlier attempt already issued the gateway refund
		plan.amount = payment.RefundedAmount
		plan.outcome = RefundOutcomeProcessing
		return plan, nil
	}

	switch payment.Method {
	case models.PaymentMethodCOD:
		plan.outcome = RefundOutcomeManual
		return plan, nil
	case models.PaymentMethodWallet:
		if plan.amount == 0 {
			plan.outcome = RefundOutcomeNotNeeded
			return plan, nil
		}
		plan.outcome = RefundOutcomeRefunded
		return plan, nil
	case models.PaymentMethodCard:
		if plan.amount == 0 {
			plan.outcome = RefundOutcomeNotNeeded
			return plan, nil
		}
		if payment.Transaction() == "" {
			plan.outcome = RefundOutcomeManual
			return plan, nil
		}
		return plan, s.refundCard(ctx, plan)
	}
	return nil, internal("refund", fmt.Errorf("unhandled payment method %q", payment.Method))
}

func (s *Service) refundCard(ctx context.Context, plan *refundPlan) error {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	start := time.Now()
	resp, err := s.gateway.Refund(callCtx, RefundRequest{
		TransactionID:  plan.payment.Transaction(),
		Amount:         plan.amount,
		IdempotencyKey: refundKey(plan.payment.ID),
	})
	gatewayLatency.WithLabelValues("refund").Observe(time.Since(start).Seconds())
	if err != nil {
		refundsProcessed.WithLabelValues(string(models.PaymentMethodCard), "failed").Inc()
		return refundFailed("refund failed, contact support", err)
	}

	switch resp.Status {
	case GatewaySucceeded:
		plan.outcome = RefundOutcomeRefunded
	case GatewayPending:
		plan.outcome = RefundOutcomeProcessing
	case GatewayFailed:
		refundsProcessed.WithLabelValues(string(models.PaymentMethodCard), "failed").Inc()
		return refundFailed("refund was declined by the payment gateway", nil)
	default:
		return refundFailed("refund failed, contact support", fmt.Errorf("unexpected gateway status %q", resp.Status))
	}
	plan.external = true
	plan.refundID = resp.RefundID
	return nil
}

func refundKey(paymentID uint) string {
	return fmt.Sprintf("refund:payment:%d", paymentID)
}

// applyRefund writes the refund bookkeeping for plan onto a fresh copy of
// the payment and onto b. Must run inside the caller's transaction.
func (s *Service) applyRefund(ctx context.Context, b *models.Booking, plan *refundPlan) error {
	if plan.payment == nil || plan.outcome == RefundOutcomeNotNeeded {
		return nil
	}
	if plan.outcome == RefundOutcomeRefunded {
		if plan.payment.Method == models.PaymentMethodWallet {
			ref := fmt.Sprintf("refund:booking:%d", b.ID)
			if err := s.users.CreditWallet(ctx, plan.payment.UserID, b.ID, plan.amount, ref); err != nil {
				return fromStore("wallet", err)
			}
		}
		b.PaymentStatus = models.PaymentStatusRefunded
	}

	p := plan.refundedPayment()
	if err := s.store.UpdatePayment(ctx, &p); err != nil {
		return fromStore("payment", err)
	}
	*plan.payment = p
	return nil
}

// refundedPayment is a copy of the plan's payment carrying the refund
// outcome.
func (p *refundPlan) refundedPayment() models.Payment {
	out := *p.payment
	switch p.outcome {
	case RefundOutcomeRefunded:
		out.Status = models.PaymentRecordRefunded
		out.RefundStatus = models.RefundRefunded
		out.RefundedAmount = p.amount
	case RefundOutcomeProcessing:
		out.RefundStatus = models.RefundProcessing
		out.RefundedAmount = p.amount
	case RefundOutcomeManual:
		out.Status = models.PaymentRecordPendingRefund
		out.RefundStatus = models.RefundNotInitiated
		out.RefundedAmount = 0
	}
	return out
}

// recordIssuedRefund stores a gateway refund on its payment alone, for
// when the cancellation write failed after the money already left. A
// later cancel then finds the refund instead of issuing another.
func (s *Service) recordIssuedRefund(ctx context.Context, plan *refundPlan) error {
	p := plan.refundedPayment()
	if err := s.store.UpdatePayment(ctx, &p); err != nil {
		return err
	}
	*plan.payment = p
	return nil
}

func (s *Service) recordRefundMetrics(plan *refundPlan) {
	if plan.payment == nil {
		refundsProcessed.WithLabelValues("none", string(RefundOutcomeNotNeeded)).Inc()
		return
	}
	refundsProcessed.WithLabelValues(string(plan.payment.Method), string(plan.outcome)).Inc()
	if plan.external {
		s.log.Info("gateway refund issued",
			zap.Uint("payment_id", plan.payment.ID),
			zap.String("refund_id", plan.refundID),
			zap.Float64("amount", plan.amount),
		)
	}
}
