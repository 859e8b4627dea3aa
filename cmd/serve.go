package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vendorhub/vendor-engage/internal/config"
	"github.com/vendorhub/vendor-engage/internal/db"
	"github.com/vendorhub/vendor-engage/internal/flow"
	httpSrv "github.com/vendorhub/vendor-engage/internal/http"
	"github.com/vendorhub/vendor-engage/internal/idempotency"
	"github.com/vendorhub/vendor-engage/internal/logger"
	"github.com/vendorhub/vendor-engage/internal/metrics"
	"github.com/vendorhub/vendor-engage/internal/relay"
	"github.com/vendorhub/vendor-engage/internal/repository"
	"github.com/vendorhub/vendor-engage/internal/whatsapp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run webhook HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		// Redis backs idempotency and report rate limits; without it the
		// in-process fallback dedup still holds for a single instance.
		redisClient, err := db.NewRedisClient(db.RedisOpts{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			log.Warn("redis unavailable, idempotency falls back to in-process set", zap.Error(err))
			redisClient = nil
		} else {
			defer func() { _ = redisClient.Close() }()
		}

		// ClickHouse is the optional report archive; the core path runs without it.
		var chDB *sqlx.DB
		chDB, err = db.NewClickHouseConnection(db.ClickHouseOpts{
			DSN:             cfg.ClickHouse.DSN,
			MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
			MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
			ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
			PingTimeout:     cfg.ClickHouse.PingTimeout,
		})
		if err != nil {
			log.Warn("clickhouse unavailable, message archive disabled", zap.Error(err))
			chDB = nil
		} else {
			defer func() { _ = chDB.Close() }()
		}

		// repos
		vendorsRepo := repository.NewVendorsRepository(mysqlDB)
		contactsRepo := repository.NewContactsRepository(mysqlDB)
		messagesRepo := repository.NewMessagesRepository(mysqlDB)
		flowLogsRepo := repository.NewFlowLogsRepository(mysqlDB)
		var archiveRepo repository.ArchiveRepository
		if chDB != nil {
			archiveRepo = repository.NewArchiveRepository(chDB)
		}

		// transport
		waClient := whatsapp.NewClient(cfg.WhatsApp)
		if !waClient.Enabled() {
			log.Error("whatsapp credentials missing: inbound flows will not produce replies")
		}

		guard := idempotency.New(redisClient, cfg.Scheduler.IdempotencyTTL, log)
		eventRelay := relay.New(cfg.Relay, log)
		defer func() { _ = eventRelay.Close() }()

		classifier := flow.NewClassifier(
			vendorsRepo, messagesRepo, flowLogsRepo, archiveRepo,
			waClient, cfg.WhatsApp.PhoneNumberID, log,
		)
		processor := flow.NewProcessor(
			guard, contactsRepo, messagesRepo, archiveRepo,
			classifier, eventRelay, cfg.WhatsApp.PhoneNumberID, log,
		)

		server := httpSrv.NewServer(cfg, chDB, redisClient, processor, log)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil {
				log.Error("http server exited", zap.Error(err))
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}
