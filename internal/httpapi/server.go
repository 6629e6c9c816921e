package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/matchpoint-pe/fieldbook/pkg/booking"
)

const (
	headerUserID   = "X-User-Id"
	headerUserRole = "X-User-Role"

	contextKeyUserID = "user_id"
	contextKeyRole   = "user_role"
)

// Core is the slice of the booking service the HTTP surface consumes.
type Core interface {
	CreateBooking(ctx context.Context, input booking.CreateBookingInput) (*booking.Booking, error)
	CancelBooking(ctx context.Context, bookingID string, userID string) (*booking.Booking, error)
	RescheduleBooking(ctx context.Context, bookingID string, newStart, newEnd time.Time, userID string) (*booking.Booking, error)
	GetBooking(ctx context.Context, bookingID string) (booking.Booking, error)
	FieldSchedule(ctx context.Context, fieldID string, from, to time.Time) (booking.FieldSchedule, error)
	CreateBlock(ctx context.Context, fieldID string, ownerID string, input booking.BlockInput) (*booking.ScheduleBlock, error)
	DeleteBlock(ctx context.Context, blockID string, ownerID string) (*booking.ScheduleBlock, error)
	ListBlocks(ctx context.Context, fieldID string, from, to time.Time) ([]booking.ScheduleBlock, error)
}

// Run boots the HTTP surface and blocks until the context is cancelled.
func Run(ctx context.Context, cfg Config, core Core, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	router := setupRouter(cfg, core, gatherer, logger)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, core Core, gatherer prometheus.Gatherer, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", headerUserID, headerUserRole},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	handler := &httpHandler{core: core, cfg: cfg, logger: logger}

	api := router.Group("/api")
	api.Use(identityMiddleware())

	api.POST("/bookings", handler.handleCreateBooking)
	api.GET("/bookings/:id", handler.handleGetBooking)
	api.DELETE("/bookings/:id", handler.handleCancelBooking)
	api.PATCH("/bookings/:id/schedule", handler.handleRescheduleBooking)
	api.GET("/fields/:id/availability", handler.handleFieldSchedule)
	api.GET("/fields/:id/bookings", handler.handleFieldSchedule)
	api.POST("/fields/:id/blocks", handler.handleCreateBlock)
	api.GET("/fields/:id/blocks", handler.handleListBlocks)
	api.DELETE("/blocks/:id", handler.handleDeleteBlock)

	return router
}

// identityMiddleware trusts the gateway-verified identity headers. The
// core never verifies credentials itself; JWT validation happens at the
// edge.
func identityMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := ctx.GetHeader(headerUserID)
		if userID == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing identity"))
			return
		}
		ctx.Set(contextKeyUserID, userID)
		ctx.Set(contextKeyRole, ctx.GetHeader(headerUserRole))
		ctx.Next()
	}
}

type httpHandler struct {
	core   Core
	cfg    Config
	logger *zap.Logger
}

type createBookingRequest struct {
	FieldID       string `json:"field_id" binding:"required"`
	Start         string `json:"start" binding:"required"`
	End           string `json:"end" binding:"required"`
	PaymentMethod string `json:"payment_method"`
	MatchName     string `json:"match_name"`
	GuestName     string `json:"guest_name"`
	GuestPhone    string `json:"guest_phone"`
}

type rescheduleRequest struct {
	Start string `json:"start" binding:"required"`
	End   string `json:"end" binding:"required"`
}

type createBlockRequest struct {
	Start  string `json:"start" binding:"required"`
	End    string `json:"end" binding:"required"`
	Reason string `json:"reason" binding:"required"`
	Note   string `json:"note"`
}

func (handler *httpHandler) handleCreateBooking(ctx *gin.Context) {
	var request createBookingRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	start, end, ok := parseRange(ctx, request.Start, request.End)
	if !ok {
		return
	}
	role, err := booking.ParseRole(ctx.GetString(contextKeyRole))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_role", "unknown role"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
	defer cancel()

	record, err := handler.core.CreateBooking(requestCtx, booking.CreateBookingInput{
		UserID:        ctx.GetString(contextKeyUserID),
		Role:          role,
		FieldID:       request.FieldID,
		Start:         start,
		End:           end,
		PaymentMethod: request.PaymentMethod,
		MatchName:     request.MatchName,
		GuestName:     request.GuestName,
		GuestPhone:    request.GuestPhone,
	})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"booking": bookingPayload(*record)})
}

func (handler *httpHandler) handleGetBooking(ctx *gin.Context) {
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
	defer cancel()

	record, err := handler.core.GetBooking(requestCtx, ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"booking": bookingPayload(record)})
}

func (handler *httpHandler) handleCancelBooking(ctx *gin.Context) {
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
	defer cancel()

	record, err := handler.core.CancelBooking(requestCtx, ctx.Param("id"), ctx.GetString(contextKeyUserID))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"booking": bookingPayload(*record)})
}

func (handler *httpHandler) handleRescheduleBooking(ctx *gin.Context) {
	var request rescheduleRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	start, end, ok := parseRange(ctx, request.Start, request.End)
	if !ok {
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
	defer cancel()

	record, err := handler.core.RescheduleBooking(requestCtx, ctx.Param("id"), start, end, ctx.GetString(contextKeyUserID))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"booking": bookingPayload(*record)})
}

func (handler *httpHandler) handleFieldSchedule(ctx *gin.Context) {
	from, to, ok := parseWindow(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
	defer cancel()

	schedule, err := handler.core.FieldSchedule(requestCtx, ctx.Param("id"), from, to)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	bookings := make([]gin.H, 0, len(schedule.Bookings))
	for _, record := range schedule.Bookings {
		bookings = append(bookings, bookingPayload(record))
	}
	blocks := make([]gin.H, 0, len(schedule.Blocks))
	for _, block := range schedule.Blocks {
		blocks = append(blocks, blockPayload(block))
	}
	ctx.JSON(http.StatusOK, gin.H{"bookings": bookings, "blocks": blocks})
}

func (handler *httpHandler) handleCreateBlock(ctx *gin.Context) {
	var request createBlockRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	start, end, ok := parseRange(ctx, request.Start, request.End)
	if !ok {
		return
	}
	reason, err := booking.ParseBlockReason(request.Reason)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_reason", "reason must be maintenance, personal, or event"))
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
	defer cancel()

	record, err := handler.core.CreateBlock(requestCtx, ctx.Param("id"), ctx.GetString(contextKeyUserID), booking.BlockInput{
		Start:  start,
		End:    end,
		Reason: reason,
		Note:   request.Note,
	})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"block": blockPayload(*record)})
}

func (handler *httpHandler) handleListBlocks(ctx *gin.Context) {
	from, to, ok := parseWindow(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
	defer cancel()

	blocks, err := handler.core.ListBlocks(requestCtx, ctx.Param("id"), from, to)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payload := make([]gin.H, 0, len(blocks))
	for _, block := range blocks {
		payload = append(payload, blockPayload(block))
	}
	ctx.JSON(http.StatusOK, gin.H{"blocks": payload})
}

func (handler *httpHandler) handleDeleteBlock(ctx *gin.Context) {
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
	defer cancel()

	record, err := handler.core.DeleteBlock(requestCtx, ctx.Param("id"), ctx.GetString(contextKeyUserID))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"block": blockPayload(*record)})
}

// respondError maps domain error kinds to HTTP statuses: conflict 409,
// not-found 404, forbidden 403, validation 400. Infrastructure failures
// surface generically.
func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	var conflictsError *booking.BookingConflictsError
	if errors.As(err, &conflictsError) {
		conflicts := make([]gin.H, 0, len(conflictsError.Conflicts))
		for _, record := range conflictsError.Conflicts {
			conflicts = append(conflicts, bookingPayload(record))
		}
		ctx.JSON(http.StatusConflict, gin.H{
			"error": gin.H{
				"code":      "booking_conflicts",
				"message":   "bookings exist inside the requested range",
				"conflicts": conflicts,
			},
		})
		return
	}

	switch {
	case errors.Is(err, booking.ErrFieldNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse("field_not_found", "field not found"))
	case errors.Is(err, booking.ErrBookingNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse("booking_not_found", "booking not found"))
	case errors.Is(err, booking.ErrBlockNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse("block_not_found", "schedule block not found"))
	case errors.Is(err, booking.ErrUnauthorized),
		errors.Is(err, booking.ErrUnauthorizedFieldAccess),
		errors.Is(err, booking.ErrUnauthorizedCancellation):
		ctx.JSON(http.StatusForbidden, errorResponse("forbidden", "you do not have access to this resource"))
	case errors.Is(err, booking.ErrPlayerIDRequired):
		ctx.JSON(http.StatusBadRequest, errorResponse("player_id_required", "player identity is required"))
	case errors.Is(err, booking.ErrInvalidTimeRange):
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_time_range", "start must be before end"))
	case errors.Is(err, booking.ErrInvalidRole), errors.Is(err, booking.ErrInvalidBlockReason):
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", err.Error()))
	case errors.Is(err, booking.ErrSlotBlocked):
		ctx.JSON(http.StatusConflict, errorResponse("horario_bloqueado", "the requested range is blocked by the field owner"))
	case errors.Is(err, booking.ErrSlotTaken):
		ctx.JSON(http.StatusConflict, errorResponse("horario_ocupado", "the requested range is already booked"))
	case errors.Is(err, booking.ErrBlockOverlaps):
		ctx.JSON(http.StatusConflict, errorResponse("block_overlaps", "an existing block overlaps the requested range"))
	case errors.Is(err, booking.ErrBookingAlreadyCancelled):
		ctx.JSON(http.StatusConflict, errorResponse("booking_already_cancelled", "the booking is already cancelled"))
	default:
		handler.logger.Error("internal error", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "something went wrong"))
	}
}

func parseRange(ctx *gin.Context, rawStart, rawEnd string) (time.Time, time.Time, bool) {
	start, err := time.Parse(time.RFC3339, rawStart)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_time", "start must be RFC3339"))
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, rawEnd)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_time", "end must be RFC3339"))
		return time.Time{}, time.Time{}, false
	}
	return start.UTC(), end.UTC(), true
}

// parseWindow reads the from/to query window, defaulting to the next
// seven days.
func parseWindow(ctx *gin.Context) (time.Time, time.Time, bool) {
	now := time.Now().UTC()
	from := now
	to := now.Add(7 * 24 * time.Hour)
	if raw := ctx.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("invalid_time", "from must be RFC3339"))
			return time.Time{}, time.Time{}, false
		}
		from = parsed.UTC()
	}
	if raw := ctx.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("invalid_time", "to must be RFC3339"))
			return time.Time{}, time.Time{}, false
		}
		to = parsed.UTC()
	}
	return from, to, true
}

func bookingPayload(record booking.Booking) gin.H {
	return gin.H{
		"id":             record.ID,
		"field_id":       record.FieldID,
		"player_id":      record.PlayerID,
		"guest_name":     record.GuestName,
		"match_name":     record.MatchName,
		"start":          record.StartTime.UTC().Format(time.RFC3339),
		"end":            record.EndTime.UTC().Format(time.RFC3339),
		"total_price":    record.TotalPrice.StringFixed(2),
		"status":         string(record.Status),
		"payment_method": record.PaymentMethod,
	}
}

func blockPayload(record booking.ScheduleBlock) gin.H {
	return gin.H{
		"id":       record.ID,
		"field_id": record.FieldID,
		"start":    record.StartTime.UTC().Format(time.RFC3339),
		"end":      record.EndTime.UTC().Format(time.RFC3339),
		"reason":   string(record.Reason),
		"note":     record.Note,
	}
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
