package models

import "time"

type WalletTransactionKind string

const (
	WalletDebit  WalletTransactionKind = "debit"
	WalletRefund WalletTransactionKind = "refund"
)

// WalletTransaction is one ledger row. Amount is negative for debits.
type WalletTransaction struct {
	ID        uint                  `gorm:"primaryKey" json:"id"`
	UserID    uint                  `gorm:"not null;index" json:"userId"`
	BookingID uint                  `gorm:"index" json:"bookingId"`
	Amount    float64               `gorm:"not null" json:"amount"`
	Kind      WalletTransactionKind `gorm:"type:varchar(10);not null" json:"kind"`
	Reference string                `json:"reference"`
	CreatedAt time.Time             `json:"createdAt"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
