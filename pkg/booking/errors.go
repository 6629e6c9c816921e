package booking

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the booking service. The slot
// errors keep their Spanish names from the product surface: bloqueado is
// an owner block, ocupado is another booking.
var (
	ErrFieldNotFound            = errors.New("field not found")
	ErrBookingNotFound          = errors.New("booking not found")
	ErrBlockNotFound            = errors.New("schedule block not found")
	ErrBookingAlreadyCancelled  = errors.New("booking already cancelled")
	ErrUnauthorized             = errors.New("caller is not the booking player or field owner")
	ErrUnauthorizedFieldAccess  = errors.New("field is not managed by this user")
	ErrUnauthorizedCancellation = errors.New("caller may not cancel this booking")
	ErrPlayerIDRequired         = errors.New("player identity is required")
	ErrInvalidTimeRange         = errors.New("start time must be before end time")
	ErrSlotBlocked              = errors.New("horario bloqueado")
	ErrSlotTaken                = errors.New("horario ocupado")
	ErrBookingConflicts         = errors.New("bookings exist inside the requested block range")
	ErrBlockOverlaps            = errors.New("an existing block overlaps the requested range")
	ErrDuplicatePayment         = errors.New("payment already recorded for booking")
	ErrInvalidRole              = errors.New("invalid role")
	ErrInvalidBlockReason       = errors.New("invalid block reason")
	ErrInvalidServiceConfig     = errors.New("invalid service config")
)

// BookingConflictsError rejects a schedule block and carries the
// conflicting bookings for operator review. Blocks never retroactively
// cancel bookings.
type BookingConflictsError struct {
	Conflicts []Booking
}

// Error returns the formatted message.
func (conflictsError *BookingConflictsError) Error() string {
	return fmt.Sprintf("%v: %d conflicting", ErrBookingConflicts, len(conflictsError.Conflicts))
}

// Unwrap ties the payload error to its sentinel.
func (conflictsError *BookingConflictsError) Unwrap() error {
	return ErrBookingConflicts
}

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
