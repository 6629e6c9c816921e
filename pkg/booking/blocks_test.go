package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBlock(t *testing.T) {
	service, store, _ := newServiceFixture(t)
	blockStart := time.Date(2025, time.March, 11, 8, 0, 0, 0, time.UTC)

	record, err := service.CreateBlock(context.Background(), "field-1", "owner-1", BlockInput{
		Start:  blockStart,
		End:    blockStart.Add(2 * time.Hour),
		Reason: BlockMaintenance,
		Note:   "resembrado de grass",
	})
	require.NoError(t, err)
	require.NotEmpty(t, record.ID)
	assert.Equal(t, BlockMaintenance, record.Reason)

	persisted, ok := store.blocks[record.ID]
	require.True(t, ok)
	assert.Equal(t, blockStart, persisted.StartTime)
}

func TestCreateBlockOwnershipReadsAsNotFound(t *testing.T) {
	service, _, _ := newServiceFixture(t)
	blockStart := time.Date(2025, time.March, 11, 8, 0, 0, 0, time.UTC)

	_, err := service.CreateBlock(context.Background(), "field-1", "other-owner", BlockInput{
		Start:  blockStart,
		End:    blockStart.Add(time.Hour),
		Reason: BlockPersonal,
	})
	require.ErrorIs(t, err, ErrFieldNotFound)
}

func TestCreateBlockInvalidRange(t *testing.T) {
	service, _, _ := newServiceFixture(t)
	blockStart := time.Date(2025, time.March, 11, 8, 0, 0, 0, time.UTC)

	_, err := service.CreateBlock(context.Background(), "field-1", "owner-1", BlockInput{
		Start:  blockStart,
		End:    blockStart,
		Reason: BlockEvent,
	})
	require.ErrorIs(t, err, ErrInvalidTimeRange)
}

func TestCreateBlockRejectsBookingConflicts(t *testing.T) {
	service, store, _ := newServiceFixture(t)
	blockStart := time.Date(2025, time.March, 11, 8, 0, 0, 0, time.UTC)

	store.addBooking(Booking{
		ID:        "booked",
		FieldID:   "field-1",
		PlayerID:  "player-1",
		StartTime: blockStart.Add(time.Hour),
		EndTime:   blockStart.Add(2 * time.Hour),
		Status:    StatusConfirmed,
	})

	_, err := service.CreateBlock(context.Background(), "field-1", "owner-1", BlockInput{
		Start:  blockStart,
		End:    blockStart.Add(3 * time.Hour),
		Reason: BlockEvent,
	})
	require.ErrorIs(t, err, ErrBookingConflicts)

	var conflictsError *BookingConflictsError
	require.ErrorAs(t, err, &conflictsError)
	require.Len(t, conflictsError.Conflicts, 1)
	assert.Equal(t, "booked", conflictsError.Conflicts[0].ID)

	// The conflicting booking is never cancelled by a block attempt.
	assert.Equal(t, StatusConfirmed, store.bookings["booked"].Status)
	assert.Empty(t, store.blocks)
}

func TestCreateBlockIgnoresCancelledBookings(t *testing.T) {
	service, store, _ := newServiceFixture(t)
	blockStart := time.Date(2025, time.March, 11, 8, 0, 0, 0, time.UTC)

	store.addBooking(Booking{
		ID:        "was-cancelled",
		FieldID:   "field-1",
		PlayerID:  "player-1",
		StartTime: blockStart,
		EndTime:   blockStart.Add(time.Hour),
		Status:    StatusCancelled,
	})

	_, err := service.CreateBlock(context.Background(), "field-1", "owner-1", BlockInput{
		Start:  blockStart,
		End:    blockStart.Add(2 * time.Hour),
		Reason: BlockMaintenance,
	})
	require.NoError(t, err)
}

func TestCreateBlockRejectsOverlappingBlock(t *testing.T) {
	service, store, _ := newServiceFixture(t)
	blockStart := time.Date(2025, time.March, 11, 8, 0, 0, 0, time.UTC)

	store.addBlock(ScheduleBlock{
		ID:        "existing",
		FieldID:   "field-1",
		StartTime: blockStart,
		EndTime:   blockStart.Add(2 * time.Hour),
		Reason:    BlockMaintenance,
	})

	_, err := service.CreateBlock(context.Background(), "field-1", "owner-1", BlockInput{
		Start:  blockStart.Add(time.Hour),
		End:    blockStart.Add(3 * time.Hour),
		Reason: BlockPersonal,
	})
	require.ErrorIs(t, err, ErrBlockOverlaps)

	// An adjacent block starting at the existing one's end is fine.
	_, err = service.CreateBlock(context.Background(), "field-1", "owner-1", BlockInput{
		Start:  blockStart.Add(2 * time.Hour),
		End:    blockStart.Add(3 * time.Hour),
		Reason: BlockPersonal,
	})
	require.NoError(t, err)
}

func TestDeleteBlock(t *testing.T) {
	service, store, _ := newServiceFixture(t)
	blockStart := time.Date(2025, time.March, 11, 8, 0, 0, 0, time.UTC)

	store.addBlock(ScheduleBlock{
		ID:        "block-1",
		FieldID:   "field-1",
		StartTime: blockStart,
		EndTime:   blockStart.Add(time.Hour),
		Reason:    BlockMaintenance,
	})

	// A non-owner sees not-found, not forbidden.
	_, err := service.DeleteBlock(context.Background(), "block-1", "other-owner")
	require.ErrorIs(t, err, ErrBlockNotFound)
	require.Contains(t, store.blocks, "block-1")

	removed, err := service.DeleteBlock(context.Background(), "block-1", "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "block-1", removed.ID)
	assert.NotContains(t, store.blocks, "block-1")

	_, err = service.DeleteBlock(context.Background(), "block-1", "owner-1")
	require.ErrorIs(t, err, ErrBlockNotFound)
}

func TestListBlocks(t *testing.T) {
	service, store, _ := newServiceFixture(t)
	dayStart := time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC)

	store.addBlock(ScheduleBlock{
		ID:        "inside",
		FieldID:   "field-1",
		StartTime: dayStart.Add(8 * time.Hour),
		EndTime:   dayStart.Add(10 * time.Hour),
		Reason:    BlockMaintenance,
	})
	store.addBlock(ScheduleBlock{
		ID:        "next-day",
		FieldID:   "field-1",
		StartTime: dayStart.Add(26 * time.Hour),
		EndTime:   dayStart.Add(28 * time.Hour),
		Reason:    BlockEvent,
	})

	blocks, err := service.ListBlocks(context.Background(), "field-1", dayStart, dayStart.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "inside", blocks[0].ID)
}
