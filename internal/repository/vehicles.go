package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/chachabrian/wheelster-backend/internal/booking"
	"github.com/chachabrian/wheelster-backend/internal/database"
	"github.com/chachabrian/wheelster-backend/internal/models"
)

var _ booking.VehicleCatalog = (*VehicleStore)(nil)

// VehicleCache is a read-through cache in front of the vehicles table.
type VehicleCache interface {
	GetVehicle(ctx context.Context, id uint) (*models.Vehicle, bool)
	PutVehicle(ctx context.Context, v *models.Vehicle)
	InvalidateVehicle(ctx context.Context, id uint)
}

type VehicleStore struct {
	db    *gorm.DB
	cache VehicleCache
}

// NewVehicleStore wires the store; cache may be nil.
func NewVehicleStore(db *gorm.DB, cache VehicleCache) *VehicleStore {
	return &VehicleStore{db: db, cache: cache}
}

func (s *VehicleStore) GetVehicle(ctx context.Context, id uint) (*models.Vehicle, error) {
	if s.cache != nil {
		if v, ok := s.cache.GetVehicle(ctx, id); ok {
			return v, nil
		}
	}

	var v models.Vehicle
	if err := database.Conn(ctx, s.db).First(&v, id).Error; err != nil {
		return nil, translate(err)
	}
	if s.cache != nil {
		s.cache.PutVehicle(ctx, &v)
	}
	return &v, nil
}

func (s *VehicleStore) SetAvailability(ctx context.Context, id uint, available bool) error {
	res := database.Conn(ctx, s.db).
		Model(&models.Vehicle{}).
		Where("id = ?", id).
		Update("availability", available)
	if res.Error != nil {
		return translate(res.Error)
	}
	if s.cache != nil {
		s.cache.InvalidateVehicle(ctx, id)
	}
	if res.RowsAffected == 0 {
		return booking.ErrNotFound
	}
	return nil
}
