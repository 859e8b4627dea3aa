package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vendorhub/vendor-engage/internal/config"
	"github.com/vendorhub/vendor-engage/internal/db"
	"github.com/vendorhub/vendor-engage/internal/logger"
	"github.com/vendorhub/vendor-engage/internal/metrics"
	"github.com/vendorhub/vendor-engage/internal/repository"
	"github.com/vendorhub/vendor-engage/internal/scheduler"
	"github.com/vendorhub/vendor-engage/internal/whatsapp"
)

var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Run the reminder schedulers (location, support, catch-up)",
	RunE:  runReminders,
}

func runReminders(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(cfg.Log.Level)
	log := logger.Log
	defer func() { _ = log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	mysqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
		PingTimeout:     cfg.MySQL.PingTimeout,
	})
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer mysqlDB.Close()

	var archiveRepo repository.ArchiveRepository
	chDB, err := db.NewClickHouseConnection(db.ClickHouseOpts{
		DSN:             cfg.ClickHouse.DSN,
		MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
		MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
		PingTimeout:     cfg.ClickHouse.PingTimeout,
	})
	if err != nil {
		log.Warn("clickhouse unavailable, message archive disabled", zap.Error(err))
	} else {
		defer func() { _ = chDB.Close() }()
		archiveRepo = repository.NewArchiveRepository(chDB)
	}

	waClient := whatsapp.NewClient(cfg.WhatsApp)
	if !waClient.Enabled() {
		// Fatal for a sender-only process: every tick would fail.
		return errors.New("whatsapp credentials missing")
	}

	sched, err := scheduler.New(
		repository.NewVendorsRepository(mysqlDB),
		repository.NewContactsRepository(mysqlDB),
		repository.NewMessagesRepository(mysqlDB),
		repository.NewReminderLogRepository(mysqlDB),
		repository.NewDispatchLogRepository(mysqlDB),
		archiveRepo,
		waClient,
		cfg.Scheduler,
		cfg.Templates,
		cfg.WhatsApp.PhoneNumberID,
		log,
	)
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info(">> reminder worker started",
		zap.Duration("location_interval", cfg.Scheduler.LocationInterval),
		zap.Duration("support_interval", cfg.Scheduler.SupportInterval),
		zap.Int("catchup_hour", cfg.Scheduler.CatchupHour),
	)

	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
