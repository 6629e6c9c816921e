package booking

import (
	"context"

	"go.uber.org/zap"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service
// operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing booking operation.
type OperationLog struct {
	Operation string
	UserID    string
	FieldID   string
	BookingID string
	Status    string
	Error     error
}

// WithOperationLogger wires a logger that receives callbacks for every
// operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithMetrics wires prometheus counters for booking operations.
func WithMetrics(metrics *Metrics) ServiceOption {
	return func(service *Service) {
		service.metrics = metrics
	}
}

// WithOutbox wires the side-effect outbox intents are enqueued to after
// a successful operation.
func WithOutbox(outbox Outbox) ServiceOption {
	return func(service *Service) {
		service.outbox = outbox
	}
}

// ZapOperationLogger adapts a zap.Logger to the OperationLogger contract.
type ZapOperationLogger struct {
	logger *zap.Logger
}

// NewZapOperationLogger wraps a zap logger.
func NewZapOperationLogger(logger *zap.Logger) *ZapOperationLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapOperationLogger{logger: logger}
}

// LogOperation writes one structured line per operation.
func (operationLogger *ZapOperationLogger) LogOperation(_ context.Context, entry OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	if entry.UserID != "" {
		fields = append(fields, zap.String("user_id", entry.UserID))
	}
	if entry.FieldID != "" {
		fields = append(fields, zap.String("field_id", entry.FieldID))
	}
	if entry.BookingID != "" {
		fields = append(fields, zap.String("booking_id", entry.BookingID))
	}
	if entry.Error != nil {
		operationLogger.logger.Warn("booking operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	operationLogger.logger.Info("booking operation", fields...)
}
