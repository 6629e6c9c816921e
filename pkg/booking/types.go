package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Role identifies the kind of caller performing an operation. Roles are
// issued by the external identity service; the core only branches on them.
type Role string

const (
	RolePlayer  Role = "player"
	RoleManager Role = "manager"
)

// ParseRole validates a caller-supplied role string.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RolePlayer:
		return RolePlayer, nil
	case RoleManager:
		return RoleManager, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
}

// BookingStatus defines the booking lifecycle.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
)

// PaymentStatus for payment records. The simulation only ever writes succeeded.
type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "succeeded"
)

// BlockReason enumerates why an owner closed a field.
type BlockReason string

const (
	BlockMaintenance BlockReason = "maintenance"
	BlockPersonal    BlockReason = "personal"
	BlockEvent       BlockReason = "event"
)

// ParseBlockReason validates an owner-supplied block reason.
func ParseBlockReason(raw string) (BlockReason, error) {
	switch BlockReason(strings.TrimSpace(strings.ToLower(raw))) {
	case BlockMaintenance:
		return BlockMaintenance, nil
	case BlockPersonal:
		return BlockPersonal, nil
	case BlockEvent:
		return BlockEvent, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBlockReason, raw)
}

// DiscountType enumerates promotion discount kinds.
type DiscountType string

const (
	DiscountPercentage  DiscountType = "percentage"
	DiscountFixedAmount DiscountType = "fixed_amount"
)

// Field is a bookable sports field.
type Field struct {
	ID               string
	OwnerID          string
	Name             string
	Location         string
	BasePricePerHour decimal.Decimal
}

// Promotion is a discount window attached to a field. Only active,
// non-deleted promotions whose [StartDate, EndDate] covers the booking
// date participate in pricing.
type Promotion struct {
	ID            string
	FieldID       string
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	StartDate     time.Time
	EndDate       time.Time
	IsActive      bool
}

// Booking is a reservation of a field for a half-open [Start, End) slot.
// PlayerID is empty for guest (walk-in) bookings, in which case GuestName
// identifies the booker.
type Booking struct {
	ID            string
	FieldID       string
	PlayerID      string
	GuestName     string
	GuestPhone    string
	MatchName     string
	StartTime     time.Time
	EndTime       time.Time
	TotalPrice    decimal.Decimal
	Status        BookingStatus
	PaymentMethod string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsGuest reports whether the booking was entered for a walk-in customer
// with no platform account.
func (b Booking) IsGuest() bool {
	return b.PlayerID == ""
}

// Payment is the 1:1 payment record created atomically with its booking.
type Payment struct {
	ID              string
	BookingID       string
	Amount          decimal.Decimal
	Method          string
	Status          PaymentStatus
	GatewayRef      string
	GatewayMetadata string
	CreatedAt       time.Time
}

// ScheduleBlock is an owner-declared closure of a field over [Start, End).
type ScheduleBlock struct {
	ID        string
	FieldID   string
	StartTime time.Time
	EndTime   time.Time
	Reason    BlockReason
	Note      string
	CreatedAt time.Time
}

// FieldSchedule is the player-facing availability view: everything that
// occupies a field inside a window.
type FieldSchedule struct {
	Bookings []Booking
	Blocks   []ScheduleBlock
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
