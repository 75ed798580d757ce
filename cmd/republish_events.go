package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/psds-microservice/support-bot/internal/application"
	"github.com/psds-microservice/support-bot/internal/config"
	"github.com/psds-microservice/support-bot/internal/database"
	"github.com/psds-microservice/support-bot/internal/logger"
	"github.com/psds-microservice/support-bot/internal/repository"
	"github.com/psds-microservice/support-bot/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var republishEventsCmd = &cobra.Command{
	Use:   "republish-events",
	Short: "Publish a ticket.snapshot event for every ticket to the configured broker",
	RunE:  runRepublishEvents,
}

func runRepublishEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadDBConfig()
	if err != nil {
		return err
	}
	if cfg.Events.Broker == config.BrokerNone {
		return errors.New("republish-events: EVENTS_BROKER is not set")
	}
	log, err := logger.New(cfg.LogLevel, cfg.AppEnv)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	db, err := database.Open(cfg.DSN())
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	events, err := application.NewEventSink(cfg, log)
	if err != nil {
		return err
	}
	defer events.Close()

	tickets := service.NewTicketService(
		repository.NewTicketRepository(db),
		repository.NewUserRepository(db),
		repository.NewMessageRepository(db),
		nil, events.Producer, service.TicketOptions{}, log,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	n, err := tickets.RepublishAll(ctx)
	if err != nil {
		return fmt.Errorf("republish-events: after %d tickets: %w", n, err)
	}
	log.Info("republish-events: done", zap.Int("tickets", n), zap.String("broker", cfg.Events.Broker))
	return nil
}
