package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// stubStore is an in-memory Store for service tests. WithTx snapshots
// state and restores it when fn fails, mirroring transactional rollback.
type stubStore struct {
	mu         sync.Mutex
	fields     map[string]Field
	promotions []Promotion
	bookings   map[string]Booking
	blocks     map[string]ScheduleBlock
	payments   map[string]Payment

	failPaymentInsert error
}

func newStubStore() *stubStore {
	return &stubStore{
		fields:   make(map[string]Field),
		bookings: make(map[string]Booking),
		blocks:   make(map[string]ScheduleBlock),
		payments: make(map[string]Payment),
	}
}

func (store *stubStore) addField(field Field) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.fields[field.ID] = field
}

func (store *stubStore) addPromotion(promotion Promotion) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.promotions = append(store.promotions, promotion)
}

func (store *stubStore) addBooking(record Booking) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.bookings[record.ID] = record
}

func (store *stubStore) addBlock(record ScheduleBlock) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.blocks[record.ID] = record
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	store.mu.Lock()
	bookingsSnapshot := copyMap(store.bookings)
	blocksSnapshot := copyMap(store.blocks)
	paymentsSnapshot := copyMap(store.payments)
	store.mu.Unlock()

	if err := fn(ctx, store); err != nil {
		store.mu.Lock()
		store.bookings = bookingsSnapshot
		store.blocks = blocksSnapshot
		store.payments = paymentsSnapshot
		store.mu.Unlock()
		return err
	}
	return nil
}

func (store *stubStore) GetField(ctx context.Context, fieldID string) (Field, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	field, ok := store.fields[fieldID]
	if !ok {
		return Field{}, ErrFieldNotFound
	}
	return field, nil
}

func (store *stubStore) ListActivePromotions(ctx context.Context, fieldID string, bookingDate time.Time) ([]Promotion, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	var eligible []Promotion
	for _, promotion := range store.promotions {
		if promotion.FieldID != fieldID || !promotion.IsActive {
			continue
		}
		if bookingDate.Before(promotion.StartDate) || bookingDate.After(promotion.EndDate) {
			continue
		}
		eligible = append(eligible, promotion)
	}
	return eligible, nil
}

func (store *stubStore) GetBooking(ctx context.Context, bookingID string) (Booking, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	record, ok := store.bookings[bookingID]
	if !ok {
		return Booking{}, ErrBookingNotFound
	}
	return record, nil
}

func (store *stubStore) ListOverlappingBookings(ctx context.Context, fieldID string, start, end time.Time, excludeBookingID string) ([]Booking, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	var matches []Booking
	for _, record := range store.bookings {
		if record.FieldID != fieldID || record.Status == StatusCancelled || record.ID == excludeBookingID {
			continue
		}
		if Overlaps(record.StartTime, record.EndTime, start, end) {
			matches = append(matches, record)
		}
	}
	return matches, nil
}

func (store *stubStore) ListBookingsForField(ctx context.Context, fieldID string, from, to time.Time) ([]Booking, error) {
	return store.ListOverlappingBookings(ctx, fieldID, from, to, "")
}

func (store *stubStore) InsertBooking(ctx context.Context, record *Booking) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	store.bookings[record.ID] = *record
	return nil
}

func (store *stubStore) UpdateBookingStatus(ctx context.Context, bookingID string, from, to BookingStatus) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	record, ok := store.bookings[bookingID]
	if !ok {
		return ErrBookingNotFound
	}
	if record.Status != from {
		return ErrBookingAlreadyCancelled
	}
	record.Status = to
	store.bookings[bookingID] = record
	return nil
}

func (store *stubStore) UpdateBookingTimes(ctx context.Context, bookingID string, start, end time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	record, ok := store.bookings[bookingID]
	if !ok {
		return ErrBookingNotFound
	}
	record.StartTime = start
	record.EndTime = end
	store.bookings[bookingID] = record
	return nil
}

func (store *stubStore) CancelStalePending(ctx context.Context, createdBefore time.Time) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	var cancelled int64
	for id, record := range store.bookings {
		if record.Status == StatusPending && record.CreatedAt.Before(createdBefore) {
			record.Status = StatusCancelled
			store.bookings[id] = record
			cancelled++
		}
	}
	return cancelled, nil
}

func (store *stubStore) InsertPayment(ctx context.Context, record *Payment) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.failPaymentInsert != nil {
		return store.failPaymentInsert
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if _, exists := store.payments[record.BookingID]; exists {
		return ErrDuplicatePayment
	}
	store.payments[record.BookingID] = *record
	return nil
}

func (store *stubStore) GetBlock(ctx context.Context, blockID string) (ScheduleBlock, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	record, ok := store.blocks[blockID]
	if !ok {
		return ScheduleBlock{}, ErrBlockNotFound
	}
	return record, nil
}

func (store *stubStore) ListOverlappingBlocks(ctx context.Context, fieldID string, start, end time.Time) ([]ScheduleBlock, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	var matches []ScheduleBlock
	for _, record := range store.blocks {
		if record.FieldID != fieldID {
			continue
		}
		if Overlaps(record.StartTime, record.EndTime, start, end) {
			matches = append(matches, record)
		}
	}
	return matches, nil
}

func (store *stubStore) ListBlocks(ctx context.Context, fieldID string, from, to time.Time) ([]ScheduleBlock, error) {
	return store.ListOverlappingBlocks(ctx, fieldID, from, to)
}

func (store *stubStore) InsertBlock(ctx context.Context, record *ScheduleBlock) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	store.blocks[record.ID] = *record
	return nil
}

func (store *stubStore) DeleteBlock(ctx context.Context, blockID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.blocks[blockID]; !ok {
		return ErrBlockNotFound
	}
	delete(store.blocks, blockID)
	return nil
}

func copyMap[V any](source map[string]V) map[string]V {
	clone := make(map[string]V, len(source))
	for key, value := range source {
		clone[key] = value
	}
	return clone
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
