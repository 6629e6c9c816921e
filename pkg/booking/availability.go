package booking

import (
	"context"
	"time"
)

// IsTimeSlotBlocked reports whether [start, end) intersects any schedule
// block on the field. Block reasons are immaterial to the blocking effect.
func (service *Service) IsTimeSlotBlocked(ctx context.Context, fieldID string, start, end time.Time) (bool, error) {
	blocks, err := service.store.ListOverlappingBlocks(ctx, fieldID, start, end)
	if err != nil {
		return false, err
	}
	return len(blocks) > 0, nil
}

// HasOverlap reports whether [start, end) intersects a non-cancelled
// booking on the field. excludeBookingID, when non-empty, removes the
// named booking from consideration so a reschedule never conflicts with
// itself.
func (service *Service) HasOverlap(ctx context.Context, fieldID string, start, end time.Time, excludeBookingID string) (bool, error) {
	taken, err := service.store.ListOverlappingBookings(ctx, fieldID, start, end, excludeBookingID)
	if err != nil {
		return false, err
	}
	return len(taken) > 0, nil
}
