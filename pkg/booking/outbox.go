package booking

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// IntentKind enumerates side-effect intents raised by the core after a
// booking operation commits.
type IntentKind string

const (
	IntentBookingConfirmed   IntentKind = "booking_confirmed"
	IntentBookingCancelled   IntentKind = "booking_cancelled"
	IntentBookingRescheduled IntentKind = "booking_rescheduled"
)

// Intent is a side-effect request. It carries the committed booking and
// its field; the dispatcher resolves recipients from the ids.
type Intent struct {
	Kind       IntentKind
	Booking    Booking
	Field      Field
	OccurredAt time.Time
}

// Event is a realtime notification addressed to a logical channel.
type Event struct {
	Name    string
	Channel string
	Payload map[string]any
}

// Outbox accepts side-effect intents. Enqueue must never block or fail
// the calling operation.
type Outbox interface {
	Enqueue(intent Intent)
}

// Mailer sends booking notifications. Failures are logged and swallowed
// by the dispatcher.
type Mailer interface {
	SendBookingConfirmation(ctx context.Context, intent Intent) error
	SendCancellationNotice(ctx context.Context, intent Intent) error
	SendRescheduleNotice(ctx context.Context, intent Intent) error
}

// ChatRoomCreator opens a chat room for a confirmed booking.
type ChatRoomCreator interface {
	CreateRoom(ctx context.Context, roomID string, name string, initialMemberID string) error
}

// EventEmitter delivers realtime events at most once, best effort.
type EventEmitter interface {
	Emit(ctx context.Context, event Event) error
}

// ChannelOutbox buffers intents on a channel for a Dispatcher. A full
// buffer drops the intent with a warning rather than stalling a booking.
type ChannelOutbox struct {
	intents chan Intent
	logger  *zap.Logger
}

// NewChannelOutbox returns an outbox with the given buffer size.
func NewChannelOutbox(size int, logger *zap.Logger) *ChannelOutbox {
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChannelOutbox{intents: make(chan Intent, size), logger: logger}
}

// Enqueue adds an intent without blocking.
func (outbox *ChannelOutbox) Enqueue(intent Intent) {
	select {
	case outbox.intents <- intent:
	default:
		outbox.logger.Warn("outbox full, dropping side-effect intent",
			zap.String("kind", string(intent.Kind)),
			zap.String("booking_id", intent.Booking.ID))
	}
}

// Intents exposes the consumer side for a Dispatcher.
func (outbox *ChannelOutbox) Intents() <-chan Intent {
	return outbox.intents
}

// OwnerChannel is the logical realtime channel for a field owner's
// dashboard.
func OwnerChannel(ownerID string) string {
	return "owner:" + ownerID
}

// PlayerChannel is the logical realtime channel for a player's bookings
// view.
func PlayerChannel(playerID string) string {
	return "player:" + playerID
}

const dispatchTimeout = 5 * time.Second

// Dispatcher consumes side-effect intents and fans them out to the mail,
// chat, and realtime sinks. Every sink error is logged and swallowed; a
// persisted booking is never reported as failed because a notification
// could not be delivered.
type Dispatcher struct {
	intents <-chan Intent
	mailer  Mailer
	chat    ChatRoomCreator
	events  EventEmitter
	logger  *zap.Logger
}

// NewDispatcher wires a Dispatcher over an outbox. Nil sinks are skipped.
func NewDispatcher(outbox *ChannelOutbox, mailer Mailer, chat ChatRoomCreator, events EventEmitter, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		intents: outbox.Intents(),
		mailer:  mailer,
		chat:    chat,
		events:  events,
		logger:  logger,
	}
}

// Run consumes intents until the context is cancelled.
func (dispatcher *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case intent := <-dispatcher.intents:
			dispatcher.Dispatch(ctx, intent)
		}
	}
}

// Dispatch delivers a single intent to every sink.
func (dispatcher *Dispatcher) Dispatch(ctx context.Context, intent Intent) {
	dispatchCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	switch intent.Kind {
	case IntentBookingConfirmed:
		dispatcher.mail(dispatchCtx, intent, "confirmation", dispatcher.sendConfirmation)
		dispatcher.openChatRoom(dispatchCtx, intent)
		dispatcher.emit(dispatchCtx, Event{
			Name:    "new_booking",
			Channel: OwnerChannel(intent.Field.OwnerID),
			Payload: eventPayload(intent),
		})
	case IntentBookingCancelled:
		dispatcher.mail(dispatchCtx, intent, "cancellation", dispatcher.sendCancellation)
		dispatcher.emit(dispatchCtx, Event{
			Name:    "booking_cancelled",
			Channel: OwnerChannel(intent.Field.OwnerID),
			Payload: eventPayload(intent),
		})
		if !intent.Booking.IsGuest() {
			dispatcher.emit(dispatchCtx, Event{
				Name:    "booking_cancelled",
				Channel: PlayerChannel(intent.Booking.PlayerID),
				Payload: eventPayload(intent),
			})
		}
	case IntentBookingRescheduled:
		dispatcher.mail(dispatchCtx, intent, "reschedule", dispatcher.sendReschedule)
		dispatcher.emit(dispatchCtx, Event{
			Name:    "booking_updated",
			Channel: OwnerChannel(intent.Field.OwnerID),
			Payload: eventPayload(intent),
		})
		if !intent.Booking.IsGuest() {
			dispatcher.emit(dispatchCtx, Event{
				Name:    "booking_updated",
				Channel: PlayerChannel(intent.Booking.PlayerID),
				Payload: eventPayload(intent),
			})
		}
	default:
		dispatcher.logger.Warn("unknown side-effect intent", zap.String("kind", string(intent.Kind)))
	}
}

func (dispatcher *Dispatcher) sendConfirmation(ctx context.Context, intent Intent) error {
	return dispatcher.mailer.SendBookingConfirmation(ctx, intent)
}

func (dispatcher *Dispatcher) sendCancellation(ctx context.Context, intent Intent) error {
	return dispatcher.mailer.SendCancellationNotice(ctx, intent)
}

func (dispatcher *Dispatcher) sendReschedule(ctx context.Context, intent Intent) error {
	return dispatcher.mailer.SendRescheduleNotice(ctx, intent)
}

func (dispatcher *Dispatcher) mail(ctx context.Context, intent Intent, label string, send func(context.Context, Intent) error) {
	if dispatcher.mailer == nil {
		return
	}
	if err := send(ctx, intent); err != nil {
		dispatcher.logger.Warn("notification mail failed",
			zap.String("notice", label),
			zap.String("booking_id", intent.Booking.ID),
			zap.Error(err))
	}
}

// Chat rooms are only opened for registered players, never guests.
func (dispatcher *Dispatcher) openChatRoom(ctx context.Context, intent Intent) {
	if dispatcher.chat == nil || intent.Booking.IsGuest() {
		return
	}
	roomName := intent.Booking.MatchName
	if roomName == "" {
		roomName = intent.Field.Name
	}
	if err := dispatcher.chat.CreateRoom(ctx, intent.Booking.ID, roomName, intent.Booking.PlayerID); err != nil {
		dispatcher.logger.Warn("chat room creation failed",
			zap.String("booking_id", intent.Booking.ID),
			zap.Error(err))
	}
}

func (dispatcher *Dispatcher) emit(ctx context.Context, event Event) {
	if dispatcher.events == nil {
		return
	}
	if err := dispatcher.events.Emit(ctx, event); err != nil {
		dispatcher.logger.Warn("realtime emit failed",
			zap.String("event", event.Name),
			zap.String("channel", event.Channel),
			zap.Error(err))
	}
}

func eventPayload(intent Intent) map[string]any {
	return map[string]any{
		"booking_id": intent.Booking.ID,
		"field_id":   intent.Field.ID,
		"start":      intent.Booking.StartTime.UTC().Format(time.RFC3339),
		"end":        intent.Booking.EndTime.UTC().Format(time.RFC3339),
		"status":     string(intent.Booking.Status),
	}
}
