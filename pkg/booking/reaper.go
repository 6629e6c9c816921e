package booking

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	defaultReaperInterval = 10 * time.Minute
	defaultPendingTTL     = 15 * time.Minute
)

// ReaperConfig tunes the expiry sweep.
type ReaperConfig struct {
	// Interval is how often the sweep runs.
	Interval time.Duration
	// PendingTTL is how long a pending booking may hold its slot before
	// it is cancelled.
	PendingTTL time.Duration
}

// Reaper periodically cancels stale pending bookings to release held
// slots. Sweep failures are logged and never crash the host process.
type Reaper struct {
	service *Service
	config  ReaperConfig
	metrics *Metrics
	logger  *zap.Logger
}

// NewReaper wires a Reaper with defaulted configuration.
func NewReaper(service *Service, config ReaperConfig, metrics *Metrics, logger *zap.Logger) *Reaper {
	if config.Interval <= 0 {
		config.Interval = defaultReaperInterval
	}
	if config.PendingTTL <= 0 {
		config.PendingTTL = defaultPendingTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reaper{service: service, config: config, metrics: metrics, logger: logger}
}

// Run sweeps on the configured interval until the context is cancelled.
func (reaper *Reaper) Run(ctx context.Context) {
	reaper.logger.Info("expiry reaper started",
		zap.Duration("interval", reaper.config.Interval),
		zap.Duration("pending_ttl", reaper.config.PendingTTL))

	ticker := time.NewTicker(reaper.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			reaper.logger.Info("expiry reaper stopped")
			return
		case <-ticker.C:
			reaper.Sweep(ctx)
		}
	}
}

// Sweep runs one expiry pass and returns the count cancelled. Re-running
// it harms nothing: only still-pending, still-stale rows match.
func (reaper *Reaper) Sweep(ctx context.Context) int64 {
	cancelled, err := reaper.service.ExpireStaleBookings(ctx, reaper.config.PendingTTL)
	if err != nil {
		reaper.metrics.countReaperSweep(operationStatusError)
		reaper.logger.Error("expiry sweep failed", zap.Error(err))
		return 0
	}
	reaper.metrics.countReaperSweep(operationStatusOK)
	if cancelled > 0 {
		reaper.logger.Info("expired stale pending bookings", zap.Int64("cancelled", cancelled))
	}
	return cancelled
}
