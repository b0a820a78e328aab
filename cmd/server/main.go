package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	valkey "github.com/valkey-io/valkey-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/adeeb897/soup-kitchen-scheduler/email"
	"github.com/adeeb897/soup-kitchen-scheduler/migrate"
	"github.com/adeeb897/soup-kitchen-scheduler/reminder"
	"github.com/adeeb897/soup-kitchen-scheduler/server"
	"github.com/adeeb897/soup-kitchen-scheduler/store"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("APP_ENV") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg := server.LoadConfig()

	if err := migrate.RunFromEnv(); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	opts := []server.Option{server.WithLogger(logger)}

	var db *gorm.DB
	if dsn := cfg.DBDSN(); dsn != "" {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("database connection failed")
		}
		opts = append(opts, server.WithDB(db))
	} else {
		logger.Warn().Msg("no database configured, scheduling endpoints disabled")
	}

	pending, err := buildPendingStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("pending auth store setup failed")
	}
	defer pending.Close()
	opts = append(opts, server.WithPendingAuthStore(pending))

	sender, err := buildSender(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("email sender setup failed")
	}
	opts = append(opts, server.WithSender(sender))

	srv := server.NewServer(cfg, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Reminder.Enabled && db != nil {
		stopReminders := startReminders(ctx, cfg, db, sender, logger)
		defer stopReminders()
	}

	if err := srv.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
	logger.Info().Msg("shutdown complete")
}

func buildPendingStore(cfg *server.AppConfig, logger zerolog.Logger) (store.PendingAuthStore, error) {
	switch strings.ToLower(cfg.PendingAuth.Backend) {
	case "buntdb":
		return store.NewBuntPendingAuthStore(cfg.PendingAuth.BuntPath, store.DefaultPendingAuthTTL, logger)
	case "valkey":
		return store.NewValkeyPendingAuthStore(cfg.PendingAuth.ValkeyAddr, "scheduler:", store.DefaultPendingAuthTTL, logger)
	default:
		return store.NewMemoryPendingAuthStore(store.WithLogger(logger)), nil
	}
}

func buildSender(cfg *server.AppConfig) (email.Sender, error) {
	return email.Factory(&email.ProviderConfig{
		ProviderType: email.ProviderType(cfg.Email.Provider),
		FromAddress:  cfg.Email.FromAddress,
		FromName:     cfg.Email.FromName,
		Config:       []byte(cfg.Email.Config),
		AppName:      cfg.Email.AppName,
		SupportEmail: cfg.Email.SupportEmail,
	})
}

// startReminders launches the reminder scheduler and returns a stop func
// that releases the leader lock and closes its Valkey client on shutdown.
func startReminders(ctx context.Context, cfg *server.AppConfig, db *gorm.DB, sender email.Sender, logger zerolog.Logger) func() {
	schedOpts := []reminder.Option{
		reminder.WithLogger(logger),
		reminder.WithInterval(time.Duration(cfg.Reminder.IntervalMinutes) * time.Minute),
		reminder.WithLeadTime(time.Duration(cfg.Reminder.LeadHours) * time.Hour),
		reminder.WithBranding(cfg.Email.AppName, cfg.Email.SupportEmail),
	}
	stop := func() {}

	// With a Valkey backend available, elect a single reminder sender so
	// multi-instance deployments do not double-email volunteers.
	if strings.ToLower(cfg.PendingAuth.Backend) == "valkey" {
		client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{cfg.PendingAuth.ValkeyAddr}})
		if err != nil {
			logger.Error().Err(err).Msg("valkey client for leader election failed, reminders run unguarded")
		} else {
			le := store.NewLeaderElection(client, "scheduler:", store.LeaderElectionConfig{}, logger)
			le.Start(ctx)
			schedOpts = append(schedOpts, reminder.WithLeaderGate(le.IsLeader))
			stop = func() {
				le.Stop()
				client.Close()
			}
		}
	}

	sched := reminder.New(store.NewSignupStore(db), sender, schedOpts...)
	go sched.Run(ctx)
	logger.Info().
		Int("interval_minutes", cfg.Reminder.IntervalMinutes).
		Int("lead_hours", cfg.Reminder.LeadHours).
		Msg("reminder scheduler started")
	return stop
}
