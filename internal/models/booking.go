package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "Pending"
	BookingStatusAccepted  BookingStatus = "Accepted"
	BookingStatusConfirmed BookingStatus = "Confirmed"
	BookingStatusCompleted BookingStatus = "Completed"
	BookingStatusCancelled BookingStatus = "Cancelled"
)

// Accepted is kept readable for rows written before driver acceptance moved
// to DriverStatus; nothing transitions into it anymore.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusAccepted:  {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusCompleted: {},
	BookingStatusCancelled: {},
}

// OccupyingStatuses are the statuses that hold a vehicle's calendar.
var OccupyingStatuses = []BookingStatus{BookingStatusPending, BookingStatusConfirmed}

func (s BookingStatus) Valid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range bookingTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

func (s BookingStatus) Occupying() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed:
		return true
	case BookingStatusAccepted, BookingStatusCompleted, BookingStatusCancelled:
		return false
	}
	return false
}

func (s *BookingStatus) Scan(src any) error {
	return scanEnum(s, src, BookingStatus.Valid, "booking status")
}

func (s BookingStatus) Value() (driver.Value, error) {
	return valueEnum(s, BookingStatus.Valid, "booking status")
}

func ParseBookingStatus(s string) (BookingStatus, error) {
	st := BookingStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return st, nil
}

type DriverStatus string

const (
	DriverStatusPending  DriverStatus = "pending"
	DriverStatusAccepted DriverStatus = "accepted"
	DriverStatusDeclined DriverStatus = "declined"
)

func (s DriverStatus) Valid() bool {
	switch s {
	case DriverStatusPending, DriverStatusAccepted, DriverStatusDeclined:
		return true
	}
	return false
}

func (s *DriverStatus) Scan(src any) error {
	return scanEnum(s, src, DriverStatus.Valid, "driver status")
}

func (s DriverStatus) Value() (driver.Value, error) {
	return valueEnum(s, DriverStatus.Valid, "driver status")
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "Pending"
	PaymentStatusPaid     PaymentStatus = "Paid"
	PaymentStatusFailed   PaymentStatus = "Failed"
	PaymentStatusRefunded PaymentStatus = "Refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

func (s *PaymentStatus) Scan(src any) error {
	return scanEnum(s, src, PaymentStatus.Valid, "payment status")
}

func (s PaymentStatus) Value() (driver.Value, error) {
	return valueEnum(s, PaymentStatus.Valid, "payment status")
}

// Booking is a time-bounded rental of one vehicle by one user.
type Booking struct {
	gorm.Model
	UserID    uint     `gorm:"not null;index" json:"userId"`
	User      *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	VehicleID uint     `gorm:"not null;index" json:"vehicleId"`
	Vehicle   *Vehicle `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`
	DriverID  *uint    `gorm:"index" json:"driverId"`
	Driver    *User    `gorm:"foreignKey:DriverID" json:"driver,omitempty"`

	Reassignments []DriverReassignment `gorm:"foreignKey:BookingID" json:"reassignedDrivers"`

	Address       string    `gorm:"not null" json:"address"`
	StartDate     time.Time `gorm:"not null" json:"startDate"`
	EndDate       time.Time `gorm:"not null" json:"endDate"`
	OccupiedUntil time.Time `gorm:"not null" json:"-"`
	PickupTime    time.Time `gorm:"not null" json:"pickupTime"`
	Duration      int       `gorm:"not null" json:"duration"`
	TotalAmount   float64   `gorm:"not null" json:"totalAmount"`
	WithDriver    bool      `gorm:"not null" json:"withDriver"`
	LicenseNumber string    `json:"licenseNumber,omitempty"`

	Status        BookingStatus `gorm:"type:varchar(20);not null;default:'Pending';index" json:"status"`
	DriverStatus  DriverStatus  `gorm:"type:varchar(20);not null;default:'pending'" json:"driverStatus"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;default:'Pending'" json:"paymentStatus"`
	PaymentID     string        `json:"paymentId,omitempty"`

	Version int `gorm:"not null;default:1" json:"-"`
}

func (Booking) TableName() string {
	return "bookings"
}

// IsAssignedDriver reports whether userID is the booking's current driver.
func (b *Booking) IsAssignedDriver(userID uint) bool {
	return b.DriverID != nil && *b.DriverID == userID
}

// OccupancyEnd is the exclusive end of the calendar span a booking holds.
// A same-day booking (start == end) still holds one full day.
func OccupancyEnd(start, end time.Time) time.Time {
	if end.After(start) {
		return end
	}
	return start.Add(24 * time.Hour)
}

// DriverReassignment is one entry of a booking's driver history.
type DriverReassignment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	BookingID    uint      `gorm:"not null;index" json:"bookingId"`
	DriverID     *uint     `json:"driver"`
	ReassignedBy uint      `gorm:"not null" json:"reassignedBy"`
	ReassignedAt time.Time `gorm:"not null" json:"reassignedAt"`
}

func (DriverReassignment) TableName() string {
	return "driver_reassignments"
}
