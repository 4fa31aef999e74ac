package models

import (
	"database/sql/driver"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

func (r *Role) Scan(src any) error {
	return scanEnum(r, src, Role.Valid, "role")
}

func (r Role) Value() (driver.Value, error) {
	return valueEnum(r, Role.Valid, "role")
}

type User struct {
	gorm.Model
	Name          string  `gorm:"not null" json:"name"`
	Email         string  `gorm:"uniqueIndex;not null" json:"email"`
	Phone         string  `json:"phone"`
	Password      string  `gorm:"-:all" json:"-"`
	PasswordHash  string  `gorm:"column:password_hash;not null" json:"-"`
	Role          Role    `gorm:"type:varchar(10);not null;default:'user'" json:"role"`
	Address       string  `json:"address"`
	FCMToken      string  `gorm:"column:fcm_token" json:"-"`
	WalletBalance float64 `gorm:"not null;default:0" json:"walletBalance"`

	// Driver profile, filled when Role is driver.
	LicenseNumber   string `json:"licenseNumber,omitempty"`
	ExperienceYears int    `json:"experienceYears,omitempty"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) HashPassword() error {
	if u.Password == "" {
		return nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashed)
	u.Password = ""
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}
