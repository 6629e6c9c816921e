package gormstore

import (
	"context"
	"errors"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/matchpoint-pe/fieldbook/pkg/booking"
)

const (
	constraintPaymentBooking = "uniq_payments_booking"
	pgUniqueViolationCode    = "23505"
	sqliteConstraintCode     = 19
	dialectPostgres          = "postgres"

	errorOperationStore  = "store"
	errorSubjectField    = "field"
	errorSubjectBooking  = "booking"
	errorSubjectPayment  = "payment"
	errorSubjectBlock    = "block"
	errorSubjectPromo    = "promotion"
	errorCodeGet         = "get"
	errorCodeList        = "list"
	errorCodeInsert      = "insert"
	errorCodeUpdate      = "update"
	errorCodeDelete      = "delete"
	errorCodeDuplicate   = "duplicate"
	errorCodeExpireSweep = "expire_sweep"
)

// Store implements booking.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the schema. Used for sqlite; postgres deployments run
// managed migrations.
func (store *Store) Migrate() error {
	return store.db.AutoMigrate(&Field{}, &Booking{}, &Payment{}, &ScheduleBlock{}, &Promotion{})
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore booking.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) GetField(ctx context.Context, fieldID string) (booking.Field, error) {
	var model Field
	err := store.db.WithContext(ctx).Take(&model, "id = ?", fieldID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.Field{}, wrapStoreError(errorSubjectField, errorCodeGet, booking.ErrFieldNotFound)
		}
		return booking.Field{}, wrapStoreError(errorSubjectField, errorCodeGet, err)
	}
	return mapField(model), nil
}

func (store *Store) ListActivePromotions(ctx context.Context, fieldID string, bookingDate time.Time) ([]booking.Promotion, error) {
	var rows []Promotion
	err := store.db.WithContext(ctx).
		Where("field_id = ? AND is_active = ?", fieldID, true).
		Where("start_date <= ? AND end_date >= ?", bookingDate, bookingDate).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectPromo, errorCodeList, err)
	}
	promotions := make([]booking.Promotion, 0, len(rows))
	for _, row := range rows {
		promotions = append(promotions, mapPromotion(row))
	}
	return promotions, nil
}

func (store *Store) GetBooking(ctx context.Context, bookingID string) (booking.Booking, error) {
	var model Booking
	err := store.db.WithContext(ctx).Take(&model, "id = ?", bookingID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, booking.ErrBookingNotFound)
		}
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, err)
	}
	return mapBooking(model), nil
}

// ListOverlappingBookings returns non-cancelled bookings whose half-open
// range intersects [start, end). On postgres the candidate rows are
// locked FOR UPDATE so a racing check-and-insert transaction waits;
// sqlite serializes writing transactions on its own.
func (store *Store) ListOverlappingBookings(ctx context.Context, fieldID string, start, end time.Time, excludeBookingID string) ([]booking.Booking, error) {
	query := store.db.WithContext(ctx).
		Where("field_id = ? AND status <> ?", fieldID, string(booking.StatusCancelled)).
		Where("start_time < ? AND end_time > ?", end, start)
	if excludeBookingID != "" {
		query = query.Where("id <> ?", excludeBookingID)
	}
	if store.db.Dialector.Name() == dialectPostgres {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rows []Booking
	if err := query.Order("start_time ASC").Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	return mapBookings(rows), nil
}

func (store *Store) ListBookingsForField(ctx context.Context, fieldID string, from, to time.Time) ([]booking.Booking, error) {
	var rows []Booking
	err := store.db.WithContext(ctx).
		Where("field_id = ? AND status <> ?", fieldID, string(booking.StatusCancelled)).
		Where("start_time < ? AND end_time > ?", to, from).
		Order("start_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	return mapBookings(rows), nil
}

func (store *Store) InsertBooking(ctx context.Context, record *booking.Booking) error {
	model := bookingModel(record)
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeInsert, err)
	}
	record.ID = model.ID
	return nil
}

func (store *Store) UpdateBookingStatus(ctx context.Context, bookingID string, from, to booking.BookingStatus) error {
	result := store.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ? AND status = ?", bookingID, string(from)).
		Updates(map[string]interface{}{
			"status":     string(to),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdate, booking.ErrBookingAlreadyCancelled)
	}
	return nil
}

func (store *Store) UpdateBookingTimes(ctx context.Context, bookingID string, start, end time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ?", bookingID).
		Updates(map[string]interface{}{
			"start_time": start,
			"end_time":   end,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdate, booking.ErrBookingNotFound)
	}
	return nil
}

func (store *Store) CancelStalePending(ctx context.Context, createdBefore time.Time) (int64, error) {
	result := store.db.WithContext(ctx).
		Model(&Booking{}).
		Where("status = ? AND created_at < ?", string(booking.StatusPending), createdBefore).
		Updates(map[string]interface{}{
			"status":     string(booking.StatusCancelled),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, wrapStoreError(errorSubjectBooking, errorCodeExpireSweep, result.Error)
	}
	return result.RowsAffected, nil
}

func (store *Store) InsertPayment(ctx context.Context, record *booking.Payment) error {
	model := paymentModel(record)
	err := store.db.WithContext(ctx).Create(&model).Error
	if isPaymentConflict(err) {
		return wrapStoreError(errorSubjectPayment, errorCodeDuplicate, booking.ErrDuplicatePayment)
	}
	if err != nil {
		return wrapStoreError(errorSubjectPayment, errorCodeInsert, err)
	}
	record.ID = model.ID
	return nil
}

func (store *Store) GetBlock(ctx context.Context, blockID string) (booking.ScheduleBlock, error) {
	var model ScheduleBlock
	err := store.db.WithContext(ctx).Take(&model, "id = ?", blockID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.ScheduleBlock{}, wrapStoreError(errorSubjectBlock, errorCodeGet, booking.ErrBlockNotFound)
		}
		return booking.ScheduleBlock{}, wrapStoreError(errorSubjectBlock, errorCodeGet, err)
	}
	return mapBlock(model), nil
}

func (store *Store) ListOverlappingBlocks(ctx context.Context, fieldID string, start, end time.Time) ([]booking.ScheduleBlock, error) {
	var rows []ScheduleBlock
	err := store.db.WithContext(ctx).
		Where("field_id = ?", fieldID).
		Where("start_time < ? AND end_time > ?", end, start).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBlock, errorCodeList, err)
	}
	return mapBlocks(rows), nil
}

func (store *Store) ListBlocks(ctx context.Context, fieldID string, from, to time.Time) ([]booking.ScheduleBlock, error) {
	var rows []ScheduleBlock
	err := store.db.WithContext(ctx).
		Where("field_id = ?", fieldID).
		Where("start_time < ? AND end_time > ?", to, from).
		Order("start_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBlock, errorCodeList, err)
	}
	return mapBlocks(rows), nil
}

func (store *Store) InsertBlock(ctx context.Context, record *booking.ScheduleBlock) error {
	model := blockModel(record)
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectBlock, errorCodeInsert, err)
	}
	record.ID = model.ID
	return nil
}

func (store *Store) DeleteBlock(ctx context.Context, blockID string) error {
	result := store.db.WithContext(ctx).Delete(&ScheduleBlock{}, "id = ?", blockID)
	if result.Error != nil {
		return wrapStoreError(errorSubjectBlock, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBlock, errorCodeDelete, booking.ErrBlockNotFound)
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return booking.WrapError(errorOperationStore, subject, code, err)
}

func mapField(model Field) booking.Field {
	return booking.Field{
		ID:               model.ID,
		OwnerID:          model.OwnerID,
		Name:             model.Name,
		Location:         model.Location,
		BasePricePerHour: model.BasePricePerHour,
	}
}

func mapPromotion(model Promotion) booking.Promotion {
	return booking.Promotion{
		ID:            model.ID,
		FieldID:       model.FieldID,
		DiscountType:  booking.DiscountType(model.DiscountType),
		DiscountValue: model.DiscountValue,
		StartDate:     model.StartDate,
		EndDate:       model.EndDate,
		IsActive:      model.IsActive,
	}
}

func mapBooking(model Booking) booking.Booking {
	return booking.Booking{
		ID:            model.ID,
		FieldID:       model.FieldID,
		PlayerID:      stringOrEmpty(model.PlayerID),
		GuestName:     stringOrEmpty(model.GuestName),
		GuestPhone:    stringOrEmpty(model.GuestPhone),
		MatchName:     model.MatchName,
		StartTime:     model.StartTime,
		EndTime:       model.EndTime,
		TotalPrice:    model.TotalPrice,
		Status:        booking.BookingStatus(model.Status),
		PaymentMethod: model.PaymentMethod,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

func mapBookings(rows []Booking) []booking.Booking {
	records := make([]booking.Booking, 0, len(rows))
	for _, row := range rows {
		records = append(records, mapBooking(row))
	}
	return records
}

func mapBlock(model ScheduleBlock) booking.ScheduleBlock {
	return booking.ScheduleBlock{
		ID:        model.ID,
		FieldID:   model.FieldID,
		StartTime: model.StartTime,
		EndTime:   model.EndTime,
		Reason:    booking.BlockReason(model.Reason),
		Note:      model.Note,
		CreatedAt: model.CreatedAt,
	}
}

func mapBlocks(rows []ScheduleBlock) []booking.ScheduleBlock {
	records := make([]booking.ScheduleBlock, 0, len(rows))
	for _, row := range rows {
		records = append(records, mapBlock(row))
	}
	return records
}

func bookingModel(record *booking.Booking) Booking {
	return Booking{
		ID:            record.ID,
		FieldID:       record.FieldID,
		PlayerID:      nullableString(record.PlayerID),
		GuestName:     nullableString(record.GuestName),
		GuestPhone:    nullableString(record.GuestPhone),
		MatchName:     record.MatchName,
		StartTime:     record.StartTime,
		EndTime:       record.EndTime,
		TotalPrice:    record.TotalPrice,
		Status:        string(record.Status),
		PaymentMethod: record.PaymentMethod,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}

func paymentModel(record *booking.Payment) Payment {
	var metadata []byte
	if record.GatewayMetadata != "" {
		metadata = []byte(record.GatewayMetadata)
	}
	return Payment{
		ID:              record.ID,
		BookingID:       record.BookingID,
		Amount:          record.Amount,
		Method:          record.Method,
		Status:          string(record.Status),
		GatewayRef:      record.GatewayRef,
		GatewayMetadata: metadata,
		CreatedAt:       record.CreatedAt,
	}
}

func blockModel(record *booking.ScheduleBlock) ScheduleBlock {
	return ScheduleBlock{
		ID:        record.ID,
		FieldID:   record.FieldID,
		StartTime: record.StartTime,
		EndTime:   record.EndTime,
		Reason:    string(record.Reason),
		Note:      record.Note,
		CreatedAt: record.CreatedAt,
	}
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func isPaymentConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraintPaymentBooking
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
