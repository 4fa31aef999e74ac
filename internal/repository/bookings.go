package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chachabrian/wheelster-backend/internal/booking"
	"github.com/chachabrian/wheelster-backend/internal/database"
	"github.com/chachabrian/wheelster-backend/internal/models"
)

var _ booking.Store = (*BookingStore)(nil)

// BookingStore is the postgres implementation of booking.Store.
type BookingStore struct {
	db *gorm.DB
}

func NewBookingStore(db *gorm.DB) *BookingStore {
	return &BookingStore{db: db}
}

func (s *BookingStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.InTx(ctx, s.db, fn)
}

func (s *BookingStore) LockVehicle(ctx context.Context, vehicleID uint) error {
	var v models.Vehicle
	err := database.Conn(ctx, s.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&v, vehicleID).Error
	return translate(err)
}

func (s *BookingStore) FindOverlapping(ctx context.Context, vehicleID uint, start, end time.Time, statuses []models.BookingStatus) ([]models.Booking, error) {
	var list []models.Booking
	err := database.Conn(ctx, s.db).
		Where("vehicle_id = ? AND status IN ? AND start_date < ? AND occupied_until > ?", vehicleID, statuses, end, start).
		Order("start_date").
		Find(&list).Error
	return list, translate(err)
}

func (s *BookingStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	if b.Version == 0 {
		b.Version = 1
	}
	return translate(database.Conn(ctx, s.db).Omit(clause.Associations).Create(b).Error)
}

func (s *BookingStore) GetBooking(ctx context.Context, id uint) (*models.Booking, error) {
	var b models.Booking
	err := database.Conn(ctx, s.db).
		Preload("Reassignments", func(db *gorm.DB) *gorm.DB {
			return db.Order("reassigned_at, id")
		}).
		First(&b, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

// UpdateBooking writes every column of b guarded by its version.
func (s *BookingStore) UpdateBooking(ctx context.Context, b *models.Booking) error {
	prev := b.Version
	b.Version = prev + 1

	res := database.Conn(ctx, s.db).
		Model(b).
		Where("version = ?", prev).
		Select("*").
		Omit(clause.Associations, "created_at").
		Updates(b)
	if res.Error != nil {
		b.Version = prev
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		b.Version = prev
		return booking.ErrStaleVersion
	}
	return nil
}

func (s *BookingStore) AddReassignment(ctx context.Context, r *models.DriverReassignment) error {
	return translate(database.Conn(ctx, s.db).Create(r).Error)
}

func (s *BookingStore) ListBookings(ctx context.Context, f booking.BookingFilter) ([]models.Booking, error) {
	q := database.Conn(ctx, s.db).
		Preload("Vehicle").
		Preload("Reassignments", func(db *gorm.DB) *gorm.DB {
			return db.Order("reassigned_at, id")
		})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	const owned = "vehicle_id IN (SELECT id FROM vehicles WHERE owner_id = ?)"
	switch {
	case f.DriverID != nil && f.OwnerID != nil:
		q = q.Where("(driver_id = ? OR "+owned+")", *f.DriverID, *f.OwnerID)
	case f.DriverID != nil:
		q = q.Where("driver_id = ?", *f.DriverID)
	case f.OwnerID != nil:
		q = q.Where(owned, *f.OwnerID)
	}
	if f.VehicleID != nil {
		q = q.Where("vehicle_id = ?", *f.VehicleID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var list []models.Booking
	err := q.Order("start_date DESC, id DESC").Find(&list).Error
	return list, translate(err)
}

func (s *BookingStore) ListExpiredPending(ctx context.Context, createdBefore time.Time, limit int) ([]models.Booking, error) {
	q := database.Conn(ctx, s.db).
		Where("status = ? AND created_at < ?", models.BookingStatusPending, createdBefore).
		Order("created_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var list []models.Booking
	return list, translate(q.Find(&list).Error)
}

func (s *BookingStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	return translate(database.Conn(ctx, s.db).Create(p).Error)
}

func (s *BookingStore) UpdatePayment(ctx context.Context, p *models.Payment) error {
	res := database.Conn(ctx, s.db).
		Model(p).
		Select("*").
		Omit("created_at").
		Updates(p)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return booking.ErrNotFound
	}
	return nil
}

func (s *BookingStore) CompletedPayment(ctx context.Context, bookingID uint) (*models.Payment, error) {
	var p models.Payment
	err := database.Conn(ctx, s.db).
		Where("booking_id = ? AND status = ?", bookingID, models.PaymentRecordCompleted).
		Order("id DESC").
		First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *BookingStore) ListPayments(ctx context.Context, bookingID uint) ([]models.Payment, error) {
	var list []models.Payment
	err := database.Conn(ctx, s.db).
		Where("booking_id = ?", bookingID).
		Order("id").
		Find(&list).Error
	return list, translate(err)
}
