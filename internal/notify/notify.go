// Package notify holds the default side-effect sinks. The mail and chat
// subsystems are external collaborators; in this deployment they are
// simulated by structured log lines so operators can trace deliveries.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/matchpoint-pe/fieldbook/pkg/booking"
)

// LogMailer satisfies booking.Mailer by logging each notice.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer wraps a zap logger.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (mailer *LogMailer) SendBookingConfirmation(_ context.Context, intent booking.Intent) error {
	mailer.logger.Info("booking confirmation mail",
		zap.String("booking_id", intent.Booking.ID),
		zap.String("player_id", intent.Booking.PlayerID),
		zap.String("owner_id", intent.Field.OwnerID))
	return nil
}

func (mailer *LogMailer) SendCancellationNotice(_ context.Context, intent booking.Intent) error {
	mailer.logger.Info("booking cancellation mail",
		zap.String("booking_id", intent.Booking.ID),
		zap.String("player_id", intent.Booking.PlayerID),
		zap.String("owner_id", intent.Field.OwnerID))
	return nil
}

func (mailer *LogMailer) SendRescheduleNotice(_ context.Context, intent booking.Intent) error {
	mailer.logger.Info("booking reschedule mail",
		zap.String("booking_id", intent.Booking.ID),
		zap.String("player_id", intent.Booking.PlayerID),
		zap.String("owner_id", intent.Field.OwnerID))
	return nil
}

// LogChatService satisfies booking.ChatRoomCreator by logging room
// creation requests destined for the external chat subsystem.
type LogChatService struct {
	logger *zap.Logger
}

// NewLogChatService wraps a zap logger.
func NewLogChatService(logger *zap.Logger) *LogChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogChatService{logger: logger}
}

func (chat *LogChatService) CreateRoom(_ context.Context, roomID string, name string, initialMemberID string) error {
	chat.logger.Info("chat room requested",
		zap.String("room_id", roomID),
		zap.String("name", name),
		zap.String("member_id", initialMemberID))
	return nil
}

// LogEmitter satisfies booking.EventEmitter when no broker is configured.
type LogEmitter struct {
	logger *zap.Logger
}

// NewLogEmitter wraps a zap logger.
func NewLogEmitter(logger *zap.Logger) *LogEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogEmitter{logger: logger}
}

func (emitter *LogEmitter) Emit(_ context.Context, event booking.Event) error {
	emitter.logger.Info("realtime event",
		zap.String("event", event.Name),
		zap.String("channel", event.Channel))
	return nil
}
