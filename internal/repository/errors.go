package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/chachabrian/wheelster-backend/internal/booking"
)

const (
	pgExclusionViolation = "23P01"
	pgCheckViolation     = "23514"
)

// translate maps driver errors onto the engine's sentinels. Anything it
// does not recognise is returned unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return booking.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgExclusionViolation && pgErr.ConstraintName == "bookings_no_overlap":
			return booking.ErrOverlap
		case pgErr.Code == pgCheckViolation && pgErr.ConstraintName == "users_wallet_check":
			return booking.ErrInsufficientFunds
		}
	}
	return err
}
