package gormstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/matchpoint-pe/fieldbook/pkg/booking"
)

var testTime = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "store.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store := New(db)
	require.NoError(t, store.Migrate())
	return store, db
}

func seedField(t *testing.T, db *gorm.DB, id string, ownerID string, pricePerHour string) {
	t.Helper()
	require.NoError(t, db.Create(&Field{
		ID:               id,
		OwnerID:          ownerID,
		Name:             "Cancha " + id,
		Location:         "Lima",
		BasePricePerHour: decimal.RequireFromString(pricePerHour),
		CreatedAt:        testTime,
		UpdatedAt:        testTime,
	}).Error)
}

func seedBooking(t *testing.T, store *Store, fieldID string, playerID string, start, end time.Time, status booking.BookingStatus) booking.Booking {
	t.Helper()
	record := booking.Booking{
		FieldID:    fieldID,
		PlayerID:   playerID,
		StartTime:  start,
		EndTime:    end,
		TotalPrice: decimal.RequireFromString("80"),
		Status:     status,
		CreatedAt:  testTime,
		UpdatedAt:  testTime,
	}
	require.NoError(t, store.InsertBooking(context.Background(), &record))
	return record
}

func TestGetField(t *testing.T) {
	store, db := newTestStore(t)
	seedField(t, db, "field-1", "owner-1", "40")

	field, err := store.GetField(context.Background(), "field-1")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", field.OwnerID)
	assert.Equal(t, "40.00", field.BasePricePerHour.StringFixed(2))

	_, err = store.GetField(context.Background(), "missing")
	require.ErrorIs(t, err, booking.ErrFieldNotFound)
}

func TestGetFieldIgnoresSoftDeleted(t *testing.T) {
	store, db := newTestStore(t)
	seedField(t, db, "field-1", "owner-1", "40")
	require.NoError(t, db.Delete(&Field{}, "id = ?", "field-1").Error)

	_, err := store.GetField(context.Background(), "field-1")
	require.ErrorIs(t, err, booking.ErrFieldNotFound)
}

func TestListActivePromotions(t *testing.T) {
	store, db := newTestStore(t)
	seedField(t, db, "field-1", "owner-1", "40")

	monthStart := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	monthEnd := time.Date(2025, time.March, 31, 23, 59, 59, 0, time.UTC)
	seed := func(id string, active bool, start, end time.Time) {
		require.NoError(t, db.Create(&Promotion{
			ID:            id,
			FieldID:       "field-1",
			DiscountType:  string(booking.DiscountPercentage),
			DiscountValue: decimal.RequireFromString("10"),
			StartDate:     start,
			EndDate:       end,
			IsActive:      active,
			CreatedAt:     testTime,
			UpdatedAt:     testTime,
		}).Error)
	}
	seed("eligible", true, monthStart, monthEnd)
	seed("inactive", false, monthStart, monthEnd)
	seed("expired", true, monthStart.AddDate(0, -2, 0), monthStart.AddDate(0, -1, 0))
	seed("deleted", true, monthStart, monthEnd)
	require.NoError(t, db.Delete(&Promotion{}, "id = ?", "deleted").Error)

	promotions, err := store.ListActivePromotions(context.Background(), "field-1", testTime)
	require.NoError(t, err)
	require.Len(t, promotions, 1)
	assert.Equal(t, "eligible", promotions[0].ID)
}

func TestInsertAndGetBooking(t *testing.T) {
	store, db := newTestStore(t)
	seedField(t, db, "field-1", "owner-1", "40")

	record := booking.Booking{
		FieldID:       "field-1",
		GuestName:     "Walk In",
		GuestPhone:    "999888777",
		MatchName:     "Pichanga",
		StartTime:     testTime,
		EndTime:       testTime.Add(2 * time.Hour),
		TotalPrice:    decimal.RequireFromString("80"),
		Status:        booking.StatusConfirmed,
		PaymentMethod: "cash",
		CreatedAt:     testTime,
		UpdatedAt:     testTime,
	}
	require.NoError(t, store.InsertBooking(context.Background(), &record))
	require.NotEmpty(t, record.ID, "insert must backfill the generated id")

	loaded, err := store.GetBooking(context.Background(), record.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsGuest())
	assert.Equal(t, "Walk In", loaded.GuestName)
	assert.Empty(t, loaded.PlayerID)
	assert.Equal(t, "80.00", loaded.TotalPrice.StringFixed(2))

	_, err = store.GetBooking(context.Background(), "missing")
	require.ErrorIs(t, err, booking.ErrBookingNotFound)
}

func TestListOverlappingBookings(t *testing.T) {
	store, db := newTestStore(t)
	seedField(t, db, "field-1", "owner-1", "40")

	held := seedBooking(t, store, "field-1", "player-1", testTime, testTime.Add(2*time.Hour), booking.StatusConfirmed)
	seedBooking(t, store, "field-1", "player-2", testTime, testTime.Add(time.Hour), booking.StatusCancelled)

	// Inside the held range.
	rows, err := store.ListOverlappingBookings(context.Background(), "field-1", testTime.Add(time.Hour), testTime.Add(3*time.Hour), "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, held.ID, rows[0].ID)

	// Adjacent half-open range does not overlap.
	rows, err = store.ListOverlappingBookings(context.Background(), "field-1", testTime.Add(2*time.Hour), testTime.Add(3*time.Hour), "")
	require.NoError(t, err)
	assert.Empty(t, rows)

	// Excluding the booking itself clears the conflict.
	rows, err = store.ListOverlappingBookings(context.Background(), "field-1", testTime, testTime.Add(2*time.Hour), held.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	// Other fields are not consulted.
	seedField(t, db, "field-2", "owner-1", "40")
	rows, err = store.ListOverlappingBookings(context.Background(), "field-2", testTime, testTime.Add(2*time.Hour), "")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestUpdateBookingStatus(t *testing.T) {
	store, db := newTestStore(t)
	seedField(t, db, "field-1", "owner-1", "40")
	record := seedBooking(t, store, "field-1", "player-1", testTime, testTime.Add(time.Hour), booking.StatusConfirmed)

	require.NoError(t, store.UpdateBookingStatus(context.Background(), record.ID, booking.StatusConfirmed, booking.StatusCancelled))

	loaded, err := store.GetBooking(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, loaded.Status)

	// The from-status guard makes a repeat transition fail.
	err = store.UpdateBookingStatus(context.Background(), record.ID, booking.StatusConfirmed, booking.StatusCancelled)
	require.ErrorIs(t, err, booking.ErrBookingAlreadyCancelled)
}

func TestUpdateBookingTimes(t *testing.T) {
	store, db := newTestStore(t)
	seedField(t, db, "field-1", "owner-1", "40")
	record := seedBooking(t, store, "field-1", "player-1", testTime, testTime.Add(time.Hour), booking.StatusConfirmed)

	newStart := testTime.Add(3 * time.Hour)
	require.NoError(t, store.UpdateBookingTimes(context.Background(), record.ID, newStart, newStart.Add(time.Hour)))

	loaded, err := store.GetBooking(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, newStart.Unix(), loaded.StartTime.Unix())

	err = store.UpdateBookingTimes(context.Background(), "missing", newStart, newStart.Add(time.Hour))
	require.ErrorIs(t, err, booking.ErrBookingNotFound)
}

func TestCancelStalePending(t *testing.T) {
	store, db := newTestStore(t)
	seedField(t, db, "field-1", "owner-1", "40")

	stale := seedBooking(t, store, "field-1", "player-1", testTime, testTime.Add(time.Hour), booking.StatusPending)
	require.NoError(t, db.Model(&Booking{}).Where("id = ?", stale.ID).
		Update("created_at", testTime.Add(-time.Hour)).Error)
	fresh := seedBooking(t, store, "field-1", "player-2", testTime.Add(2*time.Hour), testTime.Add(3*time.Hour), booking.StatusPending)
	confirmed := seedBooking(t, store, "field-1", "player-3", testTime.Add(4*time.Hour), testTime.Add(5*time.Hour), booking.StatusConfirmed)

	cancelled, err := store.CancelStalePending(context.Background(), testTime.Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), cancelled)

	loaded, err := store.GetBooking(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, loaded.Status)

	loaded, err = store.GetBooking(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, loaded.Status)

	loaded, err = store.GetBooking(context.Background(), confirmed.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, loaded.Status)

	cancelled, err = store.CancelStalePending(context.Background(), testTime.Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, cancelled)
}

func TestInsertPaymentUniquePerBooking(t *testing.T) {
	store, db := newTestStore(t)
	seedField(t, db, "field-1", "owner-1", "40")
	record := seedBooking(t, store, "field-1", "player-1", testTime, testTime.Add(time.Hour), booking.StatusConfirmed)

	payment := booking.Payment{
		BookingID:  record.ID,
		Amount:     decimal.RequireFromString("80"),
		Method:     "card",
		Status:     booking.PaymentSucceeded,
		GatewayRef: "sim-1",
		CreatedAt:  testTime,
	}
	require.NoError(t, store.InsertPayment(context.Background(), &payment))
	require.NotEmpty(t, payment.ID)

	duplicate := booking.Payment{
		BookingID: record.ID,
		Amount:    decimal.RequireFromString("80"),
		Status:    booking.PaymentSucceeded,
		CreatedAt: testTime,
	}
	err := store.InsertPayment(context.Background(), &duplicate)
	require.ErrorIs(t, err, booking.ErrDuplicatePayment)
}

func TestBlockLifecycle(t *testing.T) {
	store, db := newTestStore(t)
	seedField(t, db, "field-1", "owner-1", "40")

	record := booking.ScheduleBlock{
		FieldID:   "field-1",
		StartTime: testTime,
		EndTime:   testTime.Add(2 * time.Hour),
		Reason:    booking.BlockMaintenance,
		Note:      "resembrado",
		CreatedAt: testTime,
	}
	require.NoError(t, store.InsertBlock(context.Background(), &record))
	require.NotEmpty(t, record.ID)

	loaded, err := store.GetBlock(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.BlockMaintenance, loaded.Reason)

	overlapping, err := store.ListOverlappingBlocks(context.Background(), "field-1", testTime.Add(time.Hour), testTime.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, overlapping, 1)

	// Adjacent range is clear.
	overlapping, err = store.ListOverlappingBlocks(context.Background(), "field-1", testTime.Add(2*time.Hour), testTime.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, overlapping)

	require.NoError(t, store.DeleteBlock(context.Background(), record.ID))
	_, err = store.GetBlock(context.Background(), record.ID)
	require.ErrorIs(t, err, booking.ErrBlockNotFound)

	err = store.DeleteBlock(context.Background(), record.ID)
	require.ErrorIs(t, err, booking.ErrBlockNotFound)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	store, db := newTestStore(t)
	seedField(t, db, "field-1", "owner-1", "40")

	sentinel := errors.New("abort")
	err := store.WithTx(context.Background(), func(ctx context.Context, txStore booking.Store) error {
		record := booking.Booking{
			FieldID:    "field-1",
			PlayerID:   "player-1",
			StartTime:  testTime,
			EndTime:    testTime.Add(time.Hour),
			TotalPrice: decimal.RequireFromString("40"),
			Status:     booking.StatusConfirmed,
			CreatedAt:  testTime,
			UpdatedAt:  testTime,
		}
		if err := txStore.InsertBooking(ctx, &record); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	var count int64
	require.NoError(t, db.Model(&Booking{}).Count(&count).Error)
	assert.Zero(t, count, "rolled back booking must not persist")
}

func TestWithTxCommits(t *testing.T) {
	store, db := newTestStore(t)
	seedField(t, db, "field-1", "owner-1", "40")

	var created booking.Booking
	err := store.WithTx(context.Background(), func(ctx context.Context, txStore booking.Store) error {
		created = booking.Booking{
			FieldID:    "field-1",
			PlayerID:   "player-1",
			StartTime:  testTime,
			EndTime:    testTime.Add(time.Hour),
			TotalPrice: decimal.RequireFromString("40"),
			Status:     booking.StatusConfirmed,
			CreatedAt:  testTime,
			UpdatedAt:  testTime,
		}
		if err := txStore.InsertBooking(ctx, &created); err != nil {
			return err
		}
		return txStore.InsertPayment(ctx, &booking.Payment{
			BookingID: created.ID,
			Amount:    created.TotalPrice,
			Status:    booking.PaymentSucceeded,
			CreatedAt: testTime,
		})
	})
	require.NoError(t, err)

	_, err = store.GetBooking(context.Background(), created.ID)
	require.NoError(t, err)

	var paymentCount int64
	require.NoError(t, db.Model(&Payment{}).Where("booking_id = ?", created.ID).Count(&paymentCount).Error)
	assert.Equal(t, int64(1), paymentCount)
}
