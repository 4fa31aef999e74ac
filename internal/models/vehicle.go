package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type VehicleType string

const (
	VehicleTypeCar   VehicleType = "Car"
	VehicleTypeBike  VehicleType = "Bike"
	VehicleTypeTruck VehicleType = "Truck"
	VehicleTypeBus   VehicleType = "Bus"
)

func (t VehicleType) Valid() bool {
	switch t {
	case VehicleTypeCar, VehicleTypeBike, VehicleTypeTruck, VehicleTypeBus:
		return true
	}
	return false
}

func (t *VehicleType) Scan(src any) error {
	return scanEnum(t, src, VehicleType.Valid, "vehicle type")
}

func (t VehicleType) Value() (driver.Value, error) {
	return valueEnum(t, VehicleType.Valid, "vehicle type")
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "Pending"
	ApprovalApproved ApprovalStatus = "Approved"
	ApprovalRejected ApprovalStatus = "Rejected"
)

func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

func (s *ApprovalStatus) Scan(src any) error {
	return scanEnum(s, src, ApprovalStatus.Valid, "approval status")
}

func (s ApprovalStatus) Value() (driver.Value, error) {
	return valueEnum(s, ApprovalStatus.Valid, "approval status")
}

// Vehicle is a rentable listing. Type-specific attributes live in Details
// and are decoded by Variant.
type Vehicle struct {
	gorm.Model
	VehicleType        VehicleType    `gorm:"type:varchar(10);not null;index" json:"vehicleType"`
	Name               string         `gorm:"not null" json:"name"`
	Brand              string         `json:"brand"`
	RegistrationNumber string         `gorm:"uniqueIndex" json:"registrationNumber"`
	Rent               float64        `gorm:"not null" json:"rent"`
	OwnerID            uint           `gorm:"not null;index" json:"addedBy"`
	ApprovalStatus     ApprovalStatus `gorm:"type:varchar(10);not null;default:'Pending'" json:"status"`
	Availability       bool           `gorm:"not null;default:false" json:"availability"`
	Details            datatypes.JSON `gorm:"type:jsonb" json:"details"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}

func (v *Vehicle) Approved() bool {
	return v.ApprovalStatus == ApprovalApproved
}

type CarDetails struct {
	Seats        int    `json:"seats"`
	FuelType     string `json:"fuelType"`
	Transmission string `json:"transmission"`
}

type BikeDetails struct {
	EngineCC int    `json:"engineCC"`
	FuelType string `json:"fuelType"`
}

type TruckDetails struct {
	PayloadTons float64 `json:"payloadTons"`
	Axles       int     `json:"axles"`
}

type BusDetails struct {
	Seats        int  `json:"seats"`
	AirCondition bool `json:"airCondition"`
}

// Variant decodes Details into the struct matching VehicleType.
func (v *Vehicle) Variant() (any, error) {
	var target any
	switch v.VehicleType {
	case VehicleTypeCar:
		target = &CarDetails{}
	case VehicleTypeBike:
		target = &BikeDetails{}
	case VehicleTypeTruck:
		target = &TruckDetails{}
	case VehicleTypeBus:
		target = &BusDetails{}
	default:
		return nil, fmt.Errorf("unknown vehicle type %q", v.VehicleType)
	}
	if len(v.Details) == 0 {
		return target, nil
	}
	if err := json.Unmarshal(v.Details, target); err != nil {
		return nil, fmt.Errorf("decode %s details: %w", v.VehicleType, err)
	}
	return target, nil
}
