package models

import (
	"time"

	"gorm.io/gorm"
)

// NotificationPreference represents user notification preferences
type NotificationPreference struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"uniqueIndex;not null" json:"userId"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Channel switches
	PushEnabled      bool `gorm:"column:push_enabled;default:true" json:"pushEnabled"`
	EmailEnabled     bool `gorm:"column:email_enabled;default:true" json:"emailEnabled"`
	SMSEnabled       bool `gorm:"column:sms_enabled;default:true" json:"smsEnabled"`
	WebSocketEnabled bool `gorm:"column:websocket_enabled;default:true" json:"webSocketEnabled"`

	// Topic switches
	BookingAlerts       bool `gorm:"column:booking_alerts;default:true" json:"bookingAlerts"`
	PaymentAlerts       bool `gorm:"column:payment_alerts;default:true" json:"paymentAlerts"`
	PromotionalMessages bool `gorm:"column:promotional_messages;default:false" json:"promotionalMessages"`
}

// TableName specifies the table name for NotificationPreference
func (NotificationPreference) TableName() string {
	return "notification_preferences"
}

// DefaultPreferences returns default notification preferences for a new user
func DefaultPreferences(userID uint) *NotificationPreference {
	return &NotificationPreference{
		UserID:           userID,
		PushEnabled:      true,
		EmailEnabled:     true,
		SMSEnabled:       true,
		WebSocketEnabled: true,
		BookingAlerts:    true,
		PaymentAlerts:    true,
	}
}
