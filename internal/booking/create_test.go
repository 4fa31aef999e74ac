package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chachabrian/wheelster-backend/internal/models"
)

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name           string
		s1, e1, s2, e2 int
		want           bool
	}{
		{"identical", 1, 4, 1, 4, true},
		{"contained", 1, 10, 3, 5, true},
		{"partial left", 3, 6, 1, 4, true},
		{"partial right", 1, 4, 3, 6, true},
		{"back to back", 1, 4, 4, 6, false},
		{"disjoint", 1, 3, 5, 7, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(day(tt.s1), day(tt.e1), day(tt.s2), day(tt.e2)))
			assert.Equal(t, tt.want, Overlaps(day(tt.s2), day(tt.e2), day(tt.s1), day(tt.e1)), "symmetry")
		})
	}
}

func TestCreateBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := env.createInput(5, 8)
	b, err := env.svc.CreateBooking(ctx, in)
	require.NoError(t, err)

	assert.NotZero(t, b.ID)
	assert.Equal(t, 300.0, b.TotalAmount)
	assert.Equal(t, models.BookingStatusPending, b.Status)
	assert.Equal(t, models.PaymentStatusPending, b.PaymentStatus)
	assert.Equal(t, models.DriverStatusPending, b.DriverStatus)
	assert.Nil(t, b.DriverID)
	assert.Equal(t, "KA01-2024-0001", b.LicenseNumber)
	assert.Equal(t, time.Date(2026, 3, 5, 10, 30, 0, 0, time.UTC), b.PickupTime)
	assert.Equal(t, "12 MG Road, Bengaluru, Karnataka, India, 560001", b.Address)

	u, err := env.users.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, b.Address, u.Address)

	stored := env.store.booking(t, b.ID)
	assert.Equal(t, b.TotalAmount, stored.TotalAmount)
	assert.Contains(t, env.events.types(), EventCreated)
}

func TestCreateBookingWithDriverAssignsOwner(t *testing.T) {
	env := newTestEnv(t)

	in := env.createInput(5, 7)
	in.WithDriver = true
	in.LicenseNumber = ""
	b := env.mustCreate(t, in)

	require.NotNil(t, b.DriverID)
	assert.Equal(t, ownerID, *b.DriverID)
	assert.Empty(t, b.LicenseNumber)
}

func TestCreateBookingTotalIsRentTimesDuration(t *testing.T) {
	env := newTestEnv(t)
	for i, d := range []int{1, 2, 7, 30} {
		in := env.createInput(1, 1)
		in.StartDate = day(1).AddDate(0, i, 0)
		in.EndDate = in.StartDate.AddDate(0, 0, d)
		in.Duration = d
		b := env.mustCreate(t, in)
		assert.Equal(t, 100*float64(d), b.TotalAmount)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateBookingInput, *testEnv)
		kind   Kind
	}{
		{"zero duration", func(in *CreateBookingInput, _ *testEnv) { in.Duration = 0 }, KindInvalidInput},
		{"negative duration", func(in *CreateBookingInput, _ *testEnv) { in.Duration = -2 }, KindInvalidInput},
		{"start after end", func(in *CreateBookingInput, _ *testEnv) { in.StartDate, in.EndDate = day(9), day(5) }, KindInvalidInput},
		{"missing license without driver", func(in *CreateBookingInput, _ *testEnv) { in.LicenseNumber = "  " }, KindInvalidInput},
		{"missing address", func(in *CreateBookingInput, _ *testEnv) { in.Address = AddressFields{} }, KindInvalidInput},
		{"unknown vehicle", func(in *CreateBookingInput, _ *testEnv) { in.VehicleID = 999 }, KindNotFound},
		{"unknown user", func(in *CreateBookingInput, _ *testEnv) { in.UserID = 999 }, KindNotFound},
		{"vehicle without rent", func(_ *CreateBookingInput, env *testEnv) {
			env.vehicles.vehicles[vehicleID].Rent = 0
		}, KindInvalidInput},
		{"vehicle not approved", func(_ *CreateBookingInput, env *testEnv) {
			env.vehicles.vehicles[vehicleID].ApprovalStatus = models.ApprovalPending
		}, KindInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			in := env.createInput(5, 8)
			tt.mutate(&in, env)

			_, err := env.svc.CreateBooking(context.Background(), in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))

			list, _ := env.store.ListBookings(context.Background(), BookingFilter{})
			assert.Empty(t, list, "no booking may be stored on failure")
		})
	}
}

func TestCreateBookingRejectsOverlap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mustCreate(t, env.createInput(5, 8))

	_, err := env.svc.CreateBooking(ctx, env.createInput(7, 10))
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	// back-to-back is fine under half-open intervals
	_, err = env.svc.CreateBooking(ctx, env.createInput(8, 10))
	require.NoError(t, err)
}

func TestCreateBookingSameDayHoldsTheDay(t *testing.T) {
	env := newTestEnv(t)
	in := env.createInput(5, 5)
	in.Duration = 1
	env.mustCreate(t, in)

	_, err := env.svc.CreateBooking(context.Background(), in)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestCancelledBookingFreesTheCalendar(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.mustCreate(t, env.createInput(5, 8))

	_, err := env.svc.CancelBooking(ctx, CancelInput{BookingID: b.ID, ActorID: userID, ActorRole: models.RoleUser})
	require.NoError(t, err)

	_, err = env.svc.CreateBooking(ctx, env.createInput(5, 8))
	require.NoError(t, err)
}

func TestConcurrentCreateNeverDoubleBooks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			_, err := env.svc.CreateBooking(ctx, env.createInput(5+offset%3, 9+offset%3))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if KindOf(err) == KindConflict {
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicts)

	list, err := env.store.ListBookings(ctx, BookingFilter{VehicleID: ptr(vehicleID), Statuses: models.OccupyingStatuses})
	require.NoError(t, err)
	for i := range list {
		for j := i + 1; j < len(list); j++ {
			assert.False(t, Overlaps(list[i].StartDate, list[i].OccupiedUntil, list[j].StartDate, list[j].OccupiedUntil))
		}
	}
}

func TestNormalizePickup(t *testing.T) {
	start := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	pickup := time.Date(2026, 1, 15, 14, 45, 59, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 4, 2, 14, 45, 0, 0, time.UTC), NormalizePickup(start, pickup))
	assert.Equal(t, start, NormalizePickup(start, time.Time{}))
}

func TestAddressCompose(t *testing.T) {
	a := AddressFields{Location: "Plot 4", Area: " ", City: "Pune", Pincode: "411001"}
	assert.Equal(t, "Plot 4, Pune, 411001", a.Compose())
	assert.Empty(t, AddressFields{}.Compose())
}

func ptr[T any](v T) *T { return &v }
