package booking

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/chachabrian/wheelster-backend/internal/models"
)

type Config struct {
	MinimumCharge     float64
	DefaultRefundRate float64
	GatewayTimeout    time.Duration
	LockTTL           time.Duration
}

func (c *Config) setDefaults() {
	if c.DefaultRefundRate == 0 {
		c.DefaultRefundRate = 0.8
	}
	if c.GatewayTimeout == 0 {
		c.GatewayTimeout = 10 * time.Second
	}
	if c.LockTTL == 0 {
		c.LockTTL = 30 * time.Second
	}
}

type Deps struct {
	Store    Store
	Users    UserDirectory
	Vehicles VehicleCatalog
	Gateway  PaymentGateway
	Notifier Notifier
	Events   EventPublisher
	Locker   Locker
	Clock    Clock
	Log      *zap.Logger
}

// Service is the booking lifecycle engine.
type Service struct {
	store    Store
	users    UserDirectory
	vehicles VehicleCatalog
	gateway  PaymentGateway
	notifier Notifier
	events   EventPublisher
	locker   Locker
	clock    Clock
	log      *zap.Logger
	cfg      Config
}

func NewService(d Deps, cfg Config) *Service {
	cfg.setDefaults()
	if d.Clock == nil {
		d.Clock = SystemClock{}
	}
	if d.Events == nil {
		d.Events = noopPublisher{}
	}
	if d.Locker == nil {
		d.Locker = NewLocalLocker(d.Clock)
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Service{
		store:    d.Store,
		users:    d.Users,
		vehicles: d.Vehicles,
		gateway:  d.Gateway,
		notifier: d.Notifier,
		events:   d.Events,
		locker:   d.Locker,
		clock:    d.Clock,
		log:      d.Log,
		cfg:      cfg,
	}
}

// withBookingLock runs fn while holding the booking's single-writer lock.
func (s *Service) withBookingLock(ctx context.Context, bookingID uint, fn func() error) error {
	release, err := s.locker.Acquire(ctx, bookingLockKey(bookingID), s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, ErrLocked) {
			return conflict("booking is being updated by another request, retry")
		}
		return internal("acquire booking lock", err)
	}
	defer release()
	return fn()
}

func (s *Service) loadBooking(ctx context.Context, id uint) (*models.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, fromStore("booking", err)
	}
	return b, nil
}

// transition moves b to target, refusing moves the state machine forbids.
func transition(b *models.Booking, target models.BookingStatus) error {
	if !b.Status.CanTransitionTo(target) {
		return conflict("booking is %s and cannot become %s", b.Status, target)
	}
	b.Status = target
	return nil
}

// releaseVehicle makes an approved vehicle bookable again once no
// confirmed booking still holds it. Failures are logged; the booking
// transition already committed.
func (s *Service) releaseVehicle(ctx context.Context, vehicleID uint) {
	v, err := s.vehicles.GetVehicle(ctx, vehicleID)
	if err != nil {
		s.log.Warn("load vehicle for release", zap.Uint("vehicle_id", vehicleID), zap.Error(err))
		return
	}
	if !v.Approved() {
		return
	}
	held, err := s.store.ListBookings(ctx, BookingFilter{
		VehicleID: &vehicleID,
		Statuses:  []models.BookingStatus{models.BookingStatusConfirmed},
		Limit:     1,
	})
	if err != nil {
		s.log.Warn("check vehicle bookings before release", zap.Uint("vehicle_id", vehicleID), zap.Error(err))
		return
	}
	if len(held) > 0 {
		s.log.Debug("vehicle still held by a confirmed booking",
			zap.Uint("vehicle_id", vehicleID),
			zap.Uint("booking_id", held[0].ID),
		)
		return
	}
	if err := s.vehicles.SetAvailability(ctx, vehicleID, true); err != nil {
		s.log.Error("restore vehicle availability", zap.Uint("vehicle_id", vehicleID), zap.Error(err))
	}
}

func (s *Service) occupyVehicle(ctx context.Context, vehicleID uint) {
	if err := s.vehicles.SetAvailability(ctx, vehicleID, false); err != nil {
		s.log.Error("mark vehicle unavailable", zap.Uint("vehicle_id", vehicleID), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, t EventType, b *models.Booking, amount float64) {
	e := newEvent(t, b, s.clock.Now())
	e.Amount = amount
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn("publish booking event", zap.String("type", string(t)), zap.Uint("booking_id", b.ID), zap.Error(err))
	}
}

func (s *Service) notify(ctx context.Context, recipientID uint, tmpl Template, data map[string]any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, recipientID, tmpl, data); err != nil {
		s.log.Warn("send notification",
			zap.String("template", string(tmpl)),
			zap.Uint("recipient_id", recipientID),
			zap.Error(err),
		)
	}
}
