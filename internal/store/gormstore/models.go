package gormstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Field represents the fields table. Fields are soft-deleted so past
// bookings keep a valid reference.
type Field struct {
	ID               string          `gorm:"type:uuid;primaryKey"`
	OwnerID          string          `gorm:"not null;index"`
	Name             string          `gorm:"not null"`
	Location         string          `gorm:""`
	BasePricePerHour decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	CreatedAt        time.Time       `gorm:"not null"`
	UpdatedAt        time.Time       `gorm:"not null"`
	DeletedAt        gorm.DeletedAt  `gorm:"index"`
}

func (Field) TableName() string { return "fields" }

func (field *Field) BeforeCreate(tx *gorm.DB) error {
	if field.ID == "" {
		field.ID = uuid.NewString()
	}
	return nil
}

// Booking mirrors the bookings table. PlayerID is null for guest
// (walk-in) bookings.
type Booking struct {
	ID            string          `gorm:"type:uuid;primaryKey"`
	FieldID       string          `gorm:"type:uuid;not null;index:idx_bookings_field_start,priority:1"`
	PlayerID      *string         `gorm:"index"`
	GuestName     *string         `gorm:""`
	GuestPhone    *string         `gorm:""`
	MatchName     string          `gorm:""`
	StartTime     time.Time       `gorm:"not null;index:idx_bookings_field_start,priority:2"`
	EndTime       time.Time       `gorm:"not null"`
	TotalPrice    decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Status        string          `gorm:"not null;index"`
	PaymentMethod string          `gorm:""`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`
}

func (Booking) TableName() string { return "bookings" }

func (booking *Booking) BeforeCreate(tx *gorm.DB) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	return nil
}

// Payment mirrors the payments table, 1:1 with bookings.
type Payment struct {
	ID              string          `gorm:"type:uuid;primaryKey"`
	BookingID       string          `gorm:"type:uuid;not null;uniqueIndex:uniq_payments_booking"`
	Amount          decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Method          string          `gorm:""`
	Status          string          `gorm:"not null"`
	GatewayRef      string          `gorm:""`
	GatewayMetadata datatypes.JSON  `gorm:""`
	CreatedAt       time.Time       `gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

func (payment *Payment) BeforeCreate(tx *gorm.DB) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	return nil
}

// ScheduleBlock mirrors the schedule_blocks table.
type ScheduleBlock struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	FieldID   string    `gorm:"type:uuid;not null;index:idx_blocks_field_start,priority:1"`
	StartTime time.Time `gorm:"not null;index:idx_blocks_field_start,priority:2"`
	EndTime   time.Time `gorm:"not null"`
	Reason    string    `gorm:"not null"`
	Note      string    `gorm:""`
	CreatedAt time.Time `gorm:"not null"`
}

func (ScheduleBlock) TableName() string { return "schedule_blocks" }

func (block *ScheduleBlock) BeforeCreate(tx *gorm.DB) error {
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	return nil
}

// Promotion mirrors the promotions table. Soft-deleted promotions never
// participate in pricing.
type Promotion struct {
	ID            string          `gorm:"type:uuid;primaryKey"`
	FieldID       string          `gorm:"type:uuid;not null;index"`
	DiscountType  string          `gorm:"not null"`
	DiscountValue decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	StartDate     time.Time       `gorm:"not null"`
	EndDate       time.Time       `gorm:"not null"`
	IsActive      bool            `gorm:"not null"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`
	DeletedAt     gorm.DeletedAt  `gorm:"index"`
}

func (Promotion) TableName() string { return "promotions" }

func (promotion *Promotion) BeforeCreate(tx *gorm.DB) error {
	if promotion.ID == "" {
		promotion.ID = uuid.NewString()
	}
	return nil
}
