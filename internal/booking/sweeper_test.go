package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chachabrian/wheelster-backend/internal/models"
)

func TestSweepExpiresOldPendingBookings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sweeper := NewSweeper(env.svc, SweeperConfig{Interval: time.Minute, GraceWindow: 10 * time.Minute})

	old := env.mustCreate(t, env.createInput(5, 8))
	require.NoError(t, env.vehicles.SetAvailability(ctx, vehicleID, false))

	env.clock.Advance(8 * time.Minute)
	young := env.mustCreate(t, env.createInput(10, 12))

	paid := env.mustCreate(t, env.createInput(14, 16))
	env.mustPay(t, paid.ID, models.PaymentMethodCOD)

	env.clock.Advance(3 * time.Minute)

	n, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, models.BookingStatusCancelled, env.store.booking(t, old.ID).Status)
	assert.Equal(t, models.BookingStatusPending, env.store.booking(t, young.ID).Status)
	assert.Equal(t, models.BookingStatusConfirmed, env.store.booking(t, paid.ID).Status)
	assert.False(t, env.vehicles.available(vehicleID), "confirmed booking still holds the vehicle")
	assert.Contains(t, env.events.types(), EventExpired)
	assert.Contains(t, env.notifier.templatesFor(userID), TemplateBookingExpired)
}

func TestSweepKeepsVehicleHeldByConfirmedBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sweeper := NewSweeper(env.svc, SweeperConfig{Interval: time.Minute, GraceWindow: 10 * time.Minute})

	held := env.mustCreate(t, env.createInput(5, 8))
	env.mustPay(t, held.ID, models.PaymentMethodCOD)
	require.False(t, env.vehicles.available(vehicleID))

	env.mustCreate(t, env.createInput(10, 12))
	env.clock.Advance(11 * time.Minute)

	n, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.BookingStatusConfirmed, env.store.booking(t, held.ID).Status)
	assert.False(t, env.vehicles.available(vehicleID))

	_, err = env.svc.CompleteBooking(ctx, held.ID, ownerID, models.RoleDriver)
	require.NoError(t, err)
	assert.True(t, env.vehicles.available(vehicleID))
}

func TestSweepIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sweeper := NewSweeper(env.svc, SweeperConfig{Interval: time.Minute, GraceWindow: 10 * time.Minute})

	b := env.mustCreate(t, env.createInput(5, 8))
	env.clock.Advance(11 * time.Minute)

	n, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	version := env.store.booking(t, b.ID).Version

	n, err = sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, version, env.store.booking(t, b.ID).Version)
}

func TestSweepLeavesUnapprovedVehicleUnavailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sweeper := NewSweeper(env.svc, SweeperConfig{GraceWindow: 10 * time.Minute})

	env.mustCreate(t, env.createInput(5, 8))
	env.vehicles.vehicles[vehicleID].ApprovalStatus = models.ApprovalRejected
	env.vehicles.vehicles[vehicleID].Availability = false
	env.clock.Advance(time.Hour)

	n, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, env.vehicles.available(vehicleID))
}

func TestSweepSkipsBusyBookingsAndOtherSweepers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sweeper := NewSweeper(env.svc, SweeperConfig{Interval: time.Minute, GraceWindow: 10 * time.Minute})

	b := env.mustCreate(t, env.createInput(5, 8))
	env.clock.Advance(time.Hour)

	release, err := env.svc.locker.Acquire(ctx, sweeperLockKey, time.Minute)
	require.NoError(t, err)
	n, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "another instance holds the sweep")
	release()

	releaseBooking, err := env.svc.locker.Acquire(ctx, bookingLockKey(b.ID), time.Minute)
	require.NoError(t, err)
	n, err = sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "booking busy with a payment")
	releaseBooking()

	n, err = sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSweeperRunStopsWithContext(t *testing.T) {
	env := newTestEnv(t)
	sweeper := NewSweeper(env.svc, SweeperConfig{Interval: 5 * time.Millisecond, GraceWindow: time.Minute})

	env.mustCreate(t, env.createInput(5, 8))
	env.clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		list, _ := env.store.ListBookings(context.Background(), BookingFilter{Statuses: []models.BookingStatus{models.BookingStatusCancelled}})
		return len(list) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
