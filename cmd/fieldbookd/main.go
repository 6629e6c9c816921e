package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/matchpoint-pe/fieldbook/internal/httpapi"
	"github.com/matchpoint-pe/fieldbook/internal/mq"
	"github.com/matchpoint-pe/fieldbook/internal/notify"
	"github.com/matchpoint-pe/fieldbook/internal/store/gormstore"
	"github.com/matchpoint-pe/fieldbook/pkg/booking"
)

const (
	flagDatabaseURL    = "database-url"
	flagListenAddr     = "listen-addr"
	flagAMQPURL        = "amqp-url"
	flagAllowedOrigins = "allowed-origins"
	flagReaperInterval = "reaper-interval"
	flagPendingTTL     = "pending-ttl"

	configKeyDatabaseURL    = "database_url"
	configKeyListenAddr     = "listen_addr"
	configKeyAMQPURL        = "amqp_url"
	configKeyAllowedOrigins = "allowed_origins"
	configKeyReaperInterval = "reaper_interval"
	configKeyPendingTTL     = "pending_ttl"

	defaultDatabaseURL = "sqlite:///tmp/fieldbook.db"
	defaultListenAddr  = ":8080"
	defaultAMQPURL     = ""

	metricsNamespace = "fieldbook"
	eventsExchange   = "fieldbook.events"
	outboxBufferSize = 256
)

type runtimeConfig struct {
	DatabaseURL    string
	ListenAddr     string
	AMQPURL        string
	AllowedOrigins string
	ReaperInterval time.Duration
	PendingTTL     time.Duration
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fieldbookd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "fieldbookd",
		Short:         "Field booking API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL connection string or sqlite path")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().String(flagAMQPURL, defaultAMQPURL, "RabbitMQ URL for realtime events (empty logs events instead)")
	cmd.Flags().String(flagAllowedOrigins, "", "Comma-delimited CORS origins")
	cmd.Flags().Duration(flagReaperInterval, 10*time.Minute, "How often stale pending bookings are swept")
	cmd.Flags().Duration(flagPendingTTL, 15*time.Minute, "How long a pending booking may hold its slot")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	bindings := map[string]string{
		configKeyDatabaseURL:    "DATABASE_URL",
		configKeyListenAddr:     "LISTEN_ADDR",
		configKeyAMQPURL:        "AMQP_URL",
		configKeyAllowedOrigins: "ALLOWED_ORIGINS",
		configKeyReaperInterval: "REAPER_INTERVAL",
		configKeyPendingTTL:     "PENDING_TTL",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}
	flags := map[string]string{
		configKeyDatabaseURL:    flagDatabaseURL,
		configKeyListenAddr:     flagListenAddr,
		configKeyAMQPURL:        flagAMQPURL,
		configKeyAllowedOrigins: flagAllowedOrigins,
		configKeyReaperInterval: flagReaperInterval,
		configKeyPendingTTL:     flagPendingTTL,
	}
	for key, flag := range flags {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	cfg.AMQPURL = viper.GetString(configKeyAMQPURL)
	cfg.AllowedOrigins = viper.GetString(configKeyAllowedOrigins)
	cfg.ReaperInterval = viper.GetDuration(configKeyReaperInterval)
	cfg.PendingTTL = viper.GetDuration(configKeyPendingTTL)
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()

	store := gormstore.New(gormDB)
	if driver == "sqlite" {
		if err := store.Migrate(); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	metrics := booking.NewMetrics(metricsNamespace, registry)

	outbox := booking.NewChannelOutbox(outboxBufferSize, logger)
	clock := func() time.Time { return time.Now().UTC() }
	service, err := booking.NewService(store, clock,
		booking.WithOperationLogger(booking.NewZapOperationLogger(logger)),
		booking.WithMetrics(metrics),
		booking.WithOutbox(outbox),
	)
	if err != nil {
		return fmt.Errorf("booking service init: %w", err)
	}

	var emitter booking.EventEmitter = notify.NewLogEmitter(logger)
	if cfg.AMQPURL != "" {
		publisher, err := mq.NewPublisher(cfg.AMQPURL, eventsExchange)
		if err != nil {
			return fmt.Errorf("amqp connect: %w", err)
		}
		defer func() { _ = publisher.Close() }()
		emitter = publisher
	}

	dispatcher := booking.NewDispatcher(outbox,
		notify.NewLogMailer(logger),
		notify.NewLogChatService(logger),
		emitter,
		logger,
	)
	go dispatcher.Run(ctx)

	reaper := booking.NewReaper(service, booking.ReaperConfig{
		Interval:   cfg.ReaperInterval,
		PendingTTL: cfg.PendingTTL,
	}, metrics, logger)
	go reaper.Run(ctx)

	apiConfig := httpapi.Config{
		ListenAddr:     cfg.ListenAddr,
		AllowedOrigins: httpapi.ParseAllowedOrigins(cfg.AllowedOrigins),
	}
	if err := apiConfig.Validate(); err != nil {
		return err
	}
	return httpapi.Run(ctx, apiConfig, service, registry, logger)
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, "", err
	}

	var db *gorm.DB
	gormConfig := &gorm.Config{}
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), gormConfig)
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, driver, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "fieldbook.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}
