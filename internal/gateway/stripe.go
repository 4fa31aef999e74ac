package gateway

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"

	"github.com/chachabrian/wheelster-backend/internal/booking"
)

var _ booking.PaymentGateway = (*Stripe)(nil)

type StripeConfig struct {
	SecretKey string
	Currency  string
	Timeout   time.Duration
	// ReturnURL is required by Stripe when a confirmed intent may need a
	// redirect-based authentication step.
	ReturnURL string
}

// Stripe charges cards through PaymentIntents and refunds against them.
type Stripe struct {
	api       *client.API
	currency  string
	returnURL string
	log       *zap.Logger
}

func NewStripe(cfg StripeConfig, log *zap.Logger) (*Stripe, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if cfg.Currency == "" {
		cfg.Currency = string(stripe.CurrencyINR)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	// Network retries are disabled; a timed-out charge is never resent here.
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	})
	api := client.New(cfg.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	return &Stripe{
		api:       api,
		currency:  strings.ToLower(cfg.Currency),
		returnURL: cfg.ReturnURL,
		log:       log.Named("stripe"),
	}, nil
}

// Charge creates and confirms a PaymentIntent for req.Amount. Card
// declines come back as a failed result rather than an error.
func (s *Stripe) Charge(ctx context.Context, req booking.ChargeRequest) (booking.ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(MinorUnits(req.Amount)),
		Currency:      stripe.String(s.currency),
		PaymentMethod: stripe.String(req.CredentialRef),
		Confirm:       stripe.Bool(true),
	}
	if s.returnURL != "" {
		params.ReturnURL = stripe.String(s.returnURL)
	} else {
		params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		}
	}
	params.Context = ctx
	params.AddMetadata("booking_id", fmt.Sprint(req.BookingID))
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Type == stripe.ErrorTypeCard {
			result := booking.ChargeResult{Status: booking.GatewayFailed, Message: serr.Msg}
			if serr.PaymentIntent != nil {
				result.TransactionID = serr.PaymentIntent.ID
			}
			return result, nil
		}
		return booking.ChargeResult{}, err
	}

	s.log.Debug("payment intent confirmed",
		zap.Uint("booking_id", req.BookingID),
		zap.String("intent", pi.ID),
		zap.String("status", string(pi.Status)),
	)
	return booking.ChargeResult{
		Status:        IntentStatus(pi.Status),
		TransactionID: pi.ID,
	}, nil
}

// Refund returns part of a payment intent. Stripe replays the first
// response for a repeated idempotency key instead of refunding again.
func (s *Stripe) Refund(ctx context.Context, req booking.RefundRequest) (booking.RefundResponse, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.TransactionID),
		Amount:        stripe.Int64(MinorUnits(req.Amount)),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	r, err := s.api.Refunds.New(params)
	if err != nil {
		return booking.RefundResponse{}, err
	}
	return booking.RefundResponse{Status: RefundStatus(r.Status), RefundID: r.ID}, nil
}

// MinorUnits converts a major-unit amount to the integer Stripe expects.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// IntentStatus maps a PaymentIntent status onto the engine's three states.
// Anything that is neither settled nor failed still needs customer action
// and counts as a decline for a server-confirmed charge.
func IntentStatus(st stripe.PaymentIntentStatus) booking.GatewayStatus {
	switch st {
	case stripe.PaymentIntentStatusSucceeded:
		return booking.GatewaySucceeded
	case stripe.PaymentIntentStatusProcessing:
		return booking.GatewayPending
	}
	return booking.GatewayFailed
}

func RefundStatus(st stripe.RefundStatus) booking.GatewayStatus {
	switch st {
	case stripe.RefundStatusSucceeded:
		return booking.GatewaySucceeded
	case stripe.RefundStatusPending, stripe.RefundStatusRequiresAction:
		return booking.GatewayPending
	}
	return booking.GatewayFailed
}

// ErrNotConfigured is returned by Disabled for every call.
var ErrNotConfigured = errors.New("card payments are not configured")

// Disabled stands in for the gateway when no Stripe key is set. Card
// charges fail and card refunds are reported as gateway failures.
type Disabled struct{}

func (Disabled) Charge(context.Context, booking.ChargeRequest) (booking.ChargeResult, error) {
	return booking.ChargeResult{}, ErrNotConfigured
}

func (Disabled) Refund(context.Context, booking.RefundRequest) (booking.RefundResponse, error) {
	return booking.RefundResponse{}, ErrNotConfigured
}
