package booking

import (
	"context"
	"time"
)

// BlockInput carries an owner's request to close a field over a range.
type BlockInput struct {
	Start  time.Time
	End    time.Time
	Reason BlockReason
	Note   string
}

// CreateBlock declares a closure on a field. Checks run in order:
// ownership, time-range validity, booking conflicts, block overlap. A
// range containing non-cancelled bookings is rejected with the conflicts
// attached for operator review; the bookings are left untouched.
func (service *Service) CreateBlock(ctx context.Context, fieldID string, ownerID string, input BlockInput) (*ScheduleBlock, error) {
	record, operationError := service.createBlock(ctx, fieldID, ownerID, input)
	service.logOperation(ctx, OperationLog{
		Operation: operationCreateBlock,
		UserID:    ownerID,
		FieldID:   fieldID,
		Error:     operationError,
	})
	return record, operationError
}

func (service *Service) createBlock(ctx context.Context, fieldID string, ownerID string, input BlockInput) (*ScheduleBlock, error) {
	field, err := service.store.GetField(ctx, fieldID)
	if err != nil {
		return nil, err
	}
	// Ownership is re-derived from the field row; a caller-supplied owner
	// id is never trusted on its own. Not-owned reads as not-found.
	if field.OwnerID != ownerID {
		return nil, ErrFieldNotFound
	}
	if !input.End.After(input.Start) {
		return nil, ErrInvalidTimeRange
	}

	record := &ScheduleBlock{
		FieldID:   field.ID,
		StartTime: input.Start,
		EndTime:   input.End,
		Reason:    input.Reason,
		Note:      input.Note,
		CreatedAt: service.nowFn(),
	}
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		conflicts, err := transactionStore.ListOverlappingBookings(ctx, field.ID, input.Start, input.End, "")
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &BookingConflictsError{Conflicts: conflicts}
		}
		overlapping, err := transactionStore.ListOverlappingBlocks(ctx, field.ID, input.Start, input.End)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return ErrBlockOverlaps
		}
		return transactionStore.InsertBlock(ctx, record)
	})
	if operationError != nil {
		return nil, operationError
	}
	return record, nil
}

// DeleteBlock removes a closure. There is no update-in-place; owners
// delete and recreate. A block on a field the caller does not own reads
// as not-found.
func (service *Service) DeleteBlock(ctx context.Context, blockID string, ownerID string) (*ScheduleBlock, error) {
	record, operationError := service.deleteBlock(ctx, blockID, ownerID)
	service.logOperation(ctx, OperationLog{
		Operation: operationDeleteBlock,
		UserID:    ownerID,
		Error:     operationError,
	})
	return record, operationError
}

func (service *Service) deleteBlock(ctx context.Context, blockID string, ownerID string) (*ScheduleBlock, error) {
	record, err := service.store.GetBlock(ctx, blockID)
	if err != nil {
		return nil, err
	}
	field, err := service.store.GetField(ctx, record.FieldID)
	if err != nil {
		return nil, err
	}
	if field.OwnerID != ownerID {
		return nil, ErrBlockNotFound
	}
	if err := service.store.DeleteBlock(ctx, blockID); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListBlocks returns the blocks intersecting [from, to) on a field.
func (service *Service) ListBlocks(ctx context.Context, fieldID string, from, to time.Time) ([]ScheduleBlock, error) {
	return service.store.ListBlocks(ctx, fieldID, from, to)
}
