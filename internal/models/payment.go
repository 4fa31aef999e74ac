package models

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "Card"
	PaymentMethodCOD    PaymentMethod = "COD"
	PaymentMethodWallet PaymentMethod = "Wallet"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodCOD, PaymentMethodWallet:
		return true
	}
	return false
}

func (m *PaymentMethod) Scan(src any) error {
	return scanEnum(m, src, PaymentMethod.Valid, "payment method")
}

func (m PaymentMethod) Value() (driver.Value, error) {
	return valueEnum(m, PaymentMethod.Valid, "payment method")
}

// ParsePaymentMethod accepts the canonical names case-insensitively, so
// "cod" and "card" from older clients still resolve.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "card":
		return PaymentMethodCard, nil
	case "cod":
		return PaymentMethodCOD, nil
	case "wallet":
		return PaymentMethodWallet, nil
	}
	return "", fmt.Errorf("invalid payment method: %s", s)
}

type PaymentRecordStatus string

const (
	PaymentRecordPending       PaymentRecordStatus = "Pending"
	PaymentRecordCompleted     PaymentRecordStatus = "Completed"
	PaymentRecordFailed        PaymentRecordStatus = "Failed"
	PaymentRecordRefunded      PaymentRecordStatus = "Refunded"
	PaymentRecordPendingRefund PaymentRecordStatus = "Pending Refund"
)

func (s PaymentRecordStatus) Valid() bool {
	switch s {
	case PaymentRecordPending, PaymentRecordCompleted, PaymentRecordFailed,
		PaymentRecordRefunded, PaymentRecordPendingRefund:
		return true
	}
	return false
}

func (s *PaymentRecordStatus) Scan(src any) error {
	return scanEnum(s, src, PaymentRecordStatus.Valid, "payment record status")
}

func (s PaymentRecordStatus) Value() (driver.Value, error) {
	return valueEnum(s, PaymentRecordStatus.Valid, "payment record status")
}

type RefundStatus string

const (
	RefundNotInitiated RefundStatus = "Not Initiated"
	RefundProcessing   RefundStatus = "Processing"
	RefundRefunded     RefundStatus = "Refunded"
	RefundFailed       RefundStatus = "Failed"
)

func (s RefundStatus) Valid() bool {
	switch s {
	case RefundNotInitiated, RefundProcessing, RefundRefunded, RefundFailed:
		return true
	}
	return false
}

func (s *RefundStatus) Scan(src any) error {
	return scanEnum(s, src, RefundStatus.Valid, "refund status")
}

func (s RefundStatus) Value() (driver.Value, error) {
	return valueEnum(s, RefundStatus.Valid, "refund status")
}

// Payment is one payment attempt against a booking.
type Payment struct {
	gorm.Model
	BookingID      uint                `gorm:"not null;index" json:"bookingId"`
	UserID         uint                `gorm:"not null;index" json:"userId"`
	Amount         float64             `gorm:"not null" json:"amount"`
	Method         PaymentMethod       `gorm:"type:varchar(10);not null" json:"method"`
	Status         PaymentRecordStatus `gorm:"type:varchar(20);not null" json:"status"`
	TransactionID  *string             `gorm:"index" json:"transactionId"`
	RefundStatus   RefundStatus        `gorm:"type:varchar(20);not null;default:'Not Initiated'" json:"refundStatus"`
	RefundedAmount float64             `gorm:"not null;default:0" json:"refundedAmount"`
	FailureReason  string              `json:"failureReason,omitempty"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) Transaction() string {
	if p.TransactionID == nil {
		return ""
	}
	return *p.TransactionID
}
