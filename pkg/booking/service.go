package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	operationCreateBooking     = "create_booking"
	operationCancelBooking     = "cancel_booking"
	operationRescheduleBooking = "reschedule_booking"
	operationCreateBlock       = "create_block"
	operationDeleteBlock       = "delete_block"
	operationExpireStale       = "expire_stale"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	paymentMethodCash = "cash"

	gatewayRefCashPrefix      = "cash"
	gatewayRefSimulatedPrefix = "sim"
)

// Service contains the booking domain logic over a Store.
type Service struct {
	store   Store
	nowFn   func() time.Time
	logger  OperationLogger
	metrics *Metrics
	outbox  Outbox
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// CreateBookingInput carries a booking request. The price is always
// computed server-side; there is deliberately no price field here.
type CreateBookingInput struct {
	UserID        string
	Role          Role
	FieldID       string
	Start         time.Time
	End           time.Time
	PaymentMethod string
	MatchName     string
	GuestName     string
	GuestPhone    string
}

// CreateBooking validates, prices, and atomically persists a booking with
// its payment record. Side effects (mail, chat room, realtime event) are
// enqueued after the transaction commits and never fail the booking.
func (service *Service) CreateBooking(ctx context.Context, input CreateBookingInput) (*Booking, error) {
	record, field, operationError := service.createBooking(ctx, input)
	service.logOperation(ctx, OperationLog{
		Operation: operationCreateBooking,
		UserID:    input.UserID,
		FieldID:   input.FieldID,
		Error:     operationError,
	})
	if operationError != nil {
		return nil, operationError
	}
	service.metrics.countBookingCreated(string(input.Role))
	service.enqueue(Intent{
		Kind:       IntentBookingConfirmed,
		Booking:    *record,
		Field:      field,
		OccurredAt: service.nowFn(),
	})
	return record, nil
}

func (service *Service) createBooking(ctx context.Context, input CreateBookingInput) (*Booking, Field, error) {
	if !input.End.After(input.Start) {
		return nil, Field{}, ErrInvalidTimeRange
	}
	field, err := service.store.GetField(ctx, input.FieldID)
	if err != nil {
		return nil, Field{}, err
	}
	totalPrice, err := service.priceForField(ctx, field, input.Start, input.End)
	if err != nil {
		return nil, Field{}, err
	}

	playerID := input.UserID
	switch input.Role {
	case RoleManager:
		if field.OwnerID != input.UserID {
			return nil, Field{}, ErrUnauthorizedFieldAccess
		}
		if strings.TrimSpace(input.GuestName) != "" {
			playerID = ""
		}
	case RolePlayer:
		if strings.TrimSpace(input.UserID) == "" {
			return nil, Field{}, ErrPlayerIDRequired
		}
		input.GuestName = ""
		input.GuestPhone = ""
	default:
		return nil, Field{}, fmt.Errorf("%w: %q", ErrInvalidRole, input.Role)
	}

	now := service.nowFn()
	record := &Booking{
		FieldID:       field.ID,
		PlayerID:      playerID,
		GuestName:     input.GuestName,
		GuestPhone:    input.GuestPhone,
		MatchName:     input.MatchName,
		StartTime:     input.Start,
		EndTime:       input.End,
		TotalPrice:    totalPrice,
		Status:        StatusConfirmed,
		PaymentMethod: input.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// Block and overlap checks run inside the same transaction as the
	// inserts; the store locks candidate overlapping rows so two racing
	// requests cannot both pass the check.
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		blocks, err := transactionStore.ListOverlappingBlocks(ctx, field.ID, input.Start, input.End)
		if err != nil {
			return err
		}
		if len(blocks) > 0 {
			return ErrSlotBlocked
		}
		taken, err := transactionStore.ListOverlappingBookings(ctx, field.ID, input.Start, input.End, "")
		if err != nil {
			return err
		}
		if len(taken) > 0 {
			return ErrSlotTaken
		}
		if err := transactionStore.InsertBooking(ctx, record); err != nil {
			return err
		}
		payment := &Payment{
			BookingID:  record.ID,
			Amount:     record.TotalPrice,
			Method:     input.PaymentMethod,
			Status:     PaymentSucceeded,
			GatewayRef: gatewayReference(input.Role, record, input.PaymentMethod),
			CreatedAt:  now,
		}
		return transactionStore.InsertPayment(ctx, payment)
	})
	if operationError != nil {
		return nil, Field{}, operationError
	}
	return record, field, nil
}

// gatewayReference distinguishes cash/manager bookings from simulated
// player payments on the synthetic gateway.
func gatewayReference(role Role, record *Booking, method string) string {
	if role == RoleManager || record.IsGuest() || strings.EqualFold(method, paymentMethodCash) {
		return gatewayRefCashPrefix + "-" + uuid.NewString()
	}
	return gatewayRefSimulatedPrefix + "-" + uuid.NewString()
}

// CancelBooking transitions a booking to cancelled. Only the booking's
// player or the owning field's owner may cancel; cancelled is terminal.
func (service *Service) CancelBooking(ctx context.Context, bookingID string, userID string) (*Booking, error) {
	record, field, operationError := service.cancelBooking(ctx, bookingID, userID)
	service.logOperation(ctx, OperationLog{
		Operation: operationCancelBooking,
		UserID:    userID,
		BookingID: bookingID,
		Error:     operationError,
	})
	if operationError != nil {
		return nil, operationError
	}
	service.metrics.countBookingCancelled()
	service.enqueue(Intent{
		Kind:       IntentBookingCancelled,
		Booking:    *record,
		Field:      field,
		OccurredAt: service.nowFn(),
	})
	return record, nil
}

func (service *Service) cancelBooking(ctx context.Context, bookingID string, userID string) (*Booking, Field, error) {
	record, err := service.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, Field{}, err
	}
	if record.Status == StatusCancelled {
		return nil, Field{}, ErrBookingAlreadyCancelled
	}
	field, err := service.store.GetField(ctx, record.FieldID)
	if err != nil {
		return nil, Field{}, err
	}
	if !callerParticipates(record, field, userID) {
		return nil, Field{}, ErrUnauthorizedCancellation
	}
	if err := service.store.UpdateBookingStatus(ctx, bookingID, record.Status, StatusCancelled); err != nil {
		return nil, Field{}, err
	}
	record.Status = StatusCancelled
	record.UpdatedAt = service.nowFn()
	return &record, field, nil
}

// RescheduleBooking moves a booking to a new range in place, re-validating
// conflicts with the booking's own id excluded. The price is not
// recomputed.
func (service *Service) RescheduleBooking(ctx context.Context, bookingID string, newStart, newEnd time.Time, userID string) (*Booking, error) {
	record, field, operationError := service.rescheduleBooking(ctx, bookingID, newStart, newEnd, userID)
	service.logOperation(ctx, OperationLog{
		Operation: operationRescheduleBooking,
		UserID:    userID,
		BookingID: bookingID,
		Error:     operationError,
	})
	if operationError != nil {
		return nil, operationError
	}
	service.metrics.countBookingRescheduled()
	service.enqueue(Intent{
		Kind:       IntentBookingRescheduled,
		Booking:    *record,
		Field:      field,
		OccurredAt: service.nowFn(),
	})
	return record, nil
}

func (service *Service) rescheduleBooking(ctx context.Context, bookingID string, newStart, newEnd time.Time, userID string) (*Booking, Field, error) {
	if !newEnd.After(newStart) {
		return nil, Field{}, ErrInvalidTimeRange
	}
	record, err := service.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, Field{}, err
	}
	if record.Status == StatusCancelled {
		return nil, Field{}, ErrBookingAlreadyCancelled
	}
	field, err := service.store.GetField(ctx, record.FieldID)
	if err != nil {
		return nil, Field{}, err
	}
	if !callerParticipates(record, field, userID) {
		return nil, Field{}, ErrUnauthorized
	}
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		blocks, err := transactionStore.ListOverlappingBlocks(ctx, record.FieldID, newStart, newEnd)
		if err != nil {
			return err
		}
		if len(blocks) > 0 {
			return ErrSlotBlocked
		}
		taken, err := transactionStore.ListOverlappingBookings(ctx, record.FieldID, newStart, newEnd, record.ID)
		if err != nil {
			return err
		}
		if len(taken) > 0 {
			return ErrSlotTaken
		}
		return transactionStore.UpdateBookingTimes(ctx, record.ID, newStart, newEnd)
	})
	if operationError != nil {
		return nil, Field{}, operationError
	}
	record.StartTime = newStart
	record.EndTime = newEnd
	record.UpdatedAt = service.nowFn()
	return &record, field, nil
}

// GetBooking returns a single booking.
func (service *Service) GetBooking(ctx context.Context, bookingID string) (Booking, error) {
	return service.store.GetBooking(ctx, bookingID)
}

// FieldSchedule returns the bookings and blocks occupying a field inside
// [from, to) for the player-facing availability view.
func (service *Service) FieldSchedule(ctx context.Context, fieldID string, from, to time.Time) (FieldSchedule, error) {
	if _, err := service.store.GetField(ctx, fieldID); err != nil {
		return FieldSchedule{}, err
	}
	bookings, err := service.store.ListBookingsForField(ctx, fieldID, from, to)
	if err != nil {
		return FieldSchedule{}, err
	}
	blocks, err := service.store.ListBlocks(ctx, fieldID, from, to)
	if err != nil {
		return FieldSchedule{}, err
	}
	return FieldSchedule{Bookings: bookings, Blocks: blocks}, nil
}

// ExpireStaleBookings cancels pending bookings older than the supplied
// age. Idempotent: it only matches still-pending, still-stale rows.
func (service *Service) ExpireStaleBookings(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := service.nowFn().Add(-olderThan)
	cancelled, operationError := service.store.CancelStalePending(ctx, cutoff)
	service.logOperation(ctx, OperationLog{
		Operation: operationExpireStale,
		Error:     operationError,
	})
	if operationError != nil {
		return 0, operationError
	}
	service.metrics.countExpiredPending(cancelled)
	return cancelled, nil
}

func callerParticipates(record Booking, field Field, userID string) bool {
	if userID == "" {
		return false
	}
	return userID == record.PlayerID || userID == field.OwnerID
}

func (service *Service) enqueue(intent Intent) {
	if service.outbox == nil {
		return
	}
	service.outbox.Enqueue(intent)
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
