package booking

import (
	"context"
	"time"

	"github.com/chachabrian/wheelster-backend/internal/models"
)

// Overlaps reports whether the half-open intervals [s1,e1) and [s2,e2)
// share any instant.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// HasConflict reports whether an occupying booking of vehicleID overlaps
// the span requested by [start,end]. Inside a creation transaction the
// caller must hold the vehicle lock first.
func (s *Service) HasConflict(ctx context.Context, vehicleID uint, start, end time.Time) (bool, error) {
	until := models.OccupancyEnd(start, end)
	candidates, err := s.store.FindOverlapping(ctx, vehicleID, start, until, models.OccupyingStatuses)
	if err != nil {
		return false, fromStore("bookings", err)
	}
	for _, b := range candidates {
		if !b.Status.Occupying() {
			continue
		}
		if Overlaps(start, until, b.StartDate, models.OccupancyEnd(b.StartDate, b.OccupiedUntil)) {
			return true, nil
		}
	}
	return false, nil
}
