package booking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bookingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wheelster_bookings_created_total",
		Help: "Bookings created",
	})

	bookingsCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wheelster_bookings_cancelled_total",
		Help: "Bookings cancelled, by reason",
	}, []string{"reason"})

	paymentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wheelster_payments_total",
		Help: "Payment attempts, by method and resulting status",
	}, []string{"method", "status"})

	refundsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wheelster_refunds_total",
		Help: "Refund outcomes, by payment method",
	}, []string{"method", "outcome"})

	gatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wheelster_payment_gateway_duration_seconds",
		Help:    "Payment gateway call latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	sweeperRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wheelster_expiry_sweeps_total",
		Help: "Expiry sweeper runs, by result",
	}, []string{"result"})
)
