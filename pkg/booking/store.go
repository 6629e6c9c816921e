package booking

import (
	"context"
	"time"
)

// Store is the persistence contract used by Service. Implementations map
// the not-found cases to ErrFieldNotFound / ErrBookingNotFound /
// ErrBlockNotFound so the service can branch on them.
//
// ListOverlappingBookings must exclude cancelled bookings and, when
// excludeBookingID is non-empty, the named booking itself. When called
// inside WithTx it must lock the candidate rows so two concurrent
// check-and-insert transactions cannot both see an empty result.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	GetField(ctx context.Context, fieldID string) (Field, error)
	ListActivePromotions(ctx context.Context, fieldID string, bookingDate time.Time) ([]Promotion, error)

	GetBooking(ctx context.Context, bookingID string) (Booking, error)
	ListOverlappingBookings(ctx context.Context, fieldID string, start, end time.Time, excludeBookingID string) ([]Booking, error)
	ListBookingsForField(ctx context.Context, fieldID string, from, to time.Time) ([]Booking, error)
	InsertBooking(ctx context.Context, record *Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID string, from, to BookingStatus) error
	UpdateBookingTimes(ctx context.Context, bookingID string, start, end time.Time) error
	CancelStalePending(ctx context.Context, createdBefore time.Time) (int64, error)

	InsertPayment(ctx context.Context, record *Payment) error

	GetBlock(ctx context.Context, blockID string) (ScheduleBlock, error)
	ListOverlappingBlocks(ctx context.Context, fieldID string, start, end time.Time) ([]ScheduleBlock, error)
	ListBlocks(ctx context.Context, fieldID string, from, to time.Time) ([]ScheduleBlock, error)
	InsertBlock(ctx context.Context, record *ScheduleBlock) error
	DeleteBlock(ctx context.Context, blockID string) error
}
