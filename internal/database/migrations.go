package database

import (
	"gorm.io/gorm"

	"github.com/chachabrian/wheelster-backend/internal/models"
)

// RunMigrations creates the tables and the constraints gorm tags cannot
// express. Every statement is idempotent.
func RunMigrations(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Vehicle{},
		&models.Booking{},
		&models.DriverReassignment{},
		&models.Payment{},
		&models.WalletTransaction{},
		&models.NotificationPreference{},
	)
	if err != nil {
		return err
	}

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS btree_gist`,

		// Two occupying bookings of one vehicle may never share an instant.
		`DO $$ BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'bookings_no_overlap') THEN
				ALTER TABLE bookings ADD CONSTRAINT bookings_no_overlap
				EXCLUDE USING gist (
					vehicle_id WITH =,
					tstzrange(start_date, occupied_until, '[)') WITH &&
				) WHERE (status IN ('Pending', 'Confirmed') AND deleted_at IS NULL);
			END IF;
		END $$`,

		`ALTER TABLE bookings DROP CONSTRAINT IF EXISTS bookings_license_check`,
		`ALTER TABLE bookings ADD CONSTRAINT bookings_license_check
			CHECK (with_driver OR COALESCE(license_number, '') <> '')`,

		`ALTER TABLE bookings DROP CONSTRAINT IF EXISTS bookings_dates_check`,
		`ALTER TABLE bookings ADD CONSTRAINT bookings_dates_check
			CHECK (end_date >= start_date AND occupied_until > start_date)`,

		`ALTER TABLE bookings DROP CONSTRAINT IF EXISTS bookings_status_check`,
		`ALTER TABLE bookings ADD CONSTRAINT bookings_status_check
			CHECK (status IN ('Pending', 'Accepted', 'Confirmed', 'Completed', 'Cancelled'))`,

		`ALTER TABLE payments DROP CONSTRAINT IF EXISTS payments_refund_check`,
		`ALTER TABLE payments ADD CONSTRAINT payments_refund_check
			CHECK (refunded_amount >= 0 AND refunded_amount <= amount)`,

		`ALTER TABLE users DROP CONSTRAINT IF EXISTS users_wallet_check`,
		`ALTER TABLE users ADD CONSTRAINT users_wallet_check CHECK (wallet_balance >= 0)`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_pending_created
			ON bookings (created_at) WHERE status = 'Pending' AND deleted_at IS NULL`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
