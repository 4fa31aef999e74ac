package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/chachabrian/wheelster-backend/internal/booking"
	"github.com/chachabrian/wheelster-backend/internal/database"
	"github.com/chachabrian/wheelster-backend/internal/models"
)

var _ booking.UserDirectory = (*UserStore)(nil)

var ErrInvalidCredentials = errors.New("invalid email or password")

// UserStore owns users, their wallet ledger and notification settings.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := database.Conn(ctx, s.db).First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// VerifyCredentials returns the user owning email if password matches.
func (s *UserStore) VerifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	var u models.User
	err := database.Conn(ctx, s.db).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := u.CheckPassword(password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &u, nil
}

func (s *UserStore) UpdateAddress(ctx context.Context, userID uint, address string) error {
	res := database.Conn(ctx, s.db).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("address", address)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return booking.ErrNotFound
	}
	return nil
}

// DebitWallet takes amount from the balance only when enough is there and
// records a ledger row in the same transaction.
func (s *UserStore) DebitWallet(ctx context.Context, userID, bookingID uint, amount float64, reference string) error {
	return database.InTx(ctx, s.db, func(ctx context.Context) error {
		res := database.Conn(ctx, s.db).
			Model(&models.User{}).
			Where("id = ? AND wallet_balance >= ?", userID, amount).
			Update("wallet_balance", gorm.Expr("wallet_balance - ?", amount))
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			if _, err := s.GetUser(ctx, userID); err != nil {
				return err
			}
			return booking.ErrInsufficientFunds
		}
		return s.ledger(ctx, userID, bookingID, -amount, models.WalletDebit, reference)
	})
}

func (s *UserStore) CreditWallet(ctx context.Context, userID, bookingID uint, amount float64, reference string) error {
	return database.InTx(ctx, s.db, func(ctx context.Context) error {
		res := database.Conn(ctx, s.db).
			Model(&models.User{}).
			Where("id = ?", userID).
			Update("wallet_balance", gorm.Expr("wallet_balance + ?", amount))
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return booking.ErrNotFound
		}
		return s.ledger(ctx, userID, bookingID, amount, models.WalletRefund, reference)
	})
}

func (s *UserStore) ledger(ctx context.Context, userID, bookingID uint, amount float64, kind models.WalletTransactionKind, reference string) error {
	row := &models.WalletTransaction{
		UserID:    userID,
		BookingID: bookingID,
		Amount:    amount,
		Kind:      kind,
		Reference: reference,
	}
	return translate(database.Conn(ctx, s.db).Create(row).Error)
}

func (s *UserStore) SetFCMToken(ctx context.Context, userID uint, token string) error {
	res := database.Conn(ctx, s.db).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("fcm_token", token)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return booking.ErrNotFound
	}
	return nil
}

// Preferences returns the user's notification settings, creating the
// defaults on first access.
func (s *UserStore) Preferences(ctx context.Context, userID uint) (*models.NotificationPreference, error) {
	var prefs models.NotificationPreference
	err := database.Conn(ctx, s.db).Where("user_id = ?", userID).First(&prefs).Error
	if err == nil {
		return &prefs, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	defaults := models.DefaultPreferences(userID)
	if err := database.Conn(ctx, s.db).Create(defaults).Error; err != nil {
		return nil, err
	}
	return defaults, nil
}

// SavePreferences writes every switch, including the ones turned off.
func (s *UserStore) SavePreferences(ctx context.Context, prefs *models.NotificationPreference) error {
	current, err := s.Preferences(ctx, prefs.UserID)
	if err != nil {
		return err
	}
	prefs.ID = current.ID
	prefs.CreatedAt = current.CreatedAt
	return database.Conn(ctx, s.db).
		Model(prefs).
		Select("*").
		Omit("created_at").
		Updates(prefs).Error
}
