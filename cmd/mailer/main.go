package main

import (
	"context"
	"meistro/internal/mailer/repository"
	"meistro/internal/mailer/service"
	"meistro/pkg/config"
	"meistro/pkg/kafka"
	kafka_config "meistro/pkg/kafka/config"
	kafkamiddleware "meistro/pkg/kafka/middleware"
	"meistro/pkg/mail"
	"os"
	"os/signal"
	"syscall"
)

const (
	ServiceName = "meistro-mailer"

	bookingGroupID = "meistro-mailer-bookings"
	chatGroupID    = "meistro-mailer-chat"
)

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	kafkaCfg := kafka_config.Load()

	prefsRepo := repository.NewMongoPrefsRepository(cfg)
	mailer := service.NewMailerService(prefsRepo, newSender(cfg), cfg.PrefsPortalURL, cfg.Log)

	metrics := kafkamiddleware.NewMetrics()

	bookingConsumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.BookingEventsTopic,
		bookingGroupID,
		cfg.BookingEventsDLQTopic,
		mailer.HandleBookingEvent,
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create booking events consumer", "error", err)
	}
	bookingConsumer.Use(kafkamiddleware.ConsumerLogging(cfg.Log))
	bookingConsumer.Use(metrics.Consumer())

	chatConsumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.ChatEventsTopic,
		chatGroupID,
		cfg.ChatEventsDLQTopic,
		mailer.HandleChatEvent,
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create chat events consumer", "error", err)
	}
	chatConsumer.Use(kafkamiddleware.ConsumerLogging(cfg.Log))
	chatConsumer.Use(metrics.Consumer())

	ctx := context.Background()
	consumerErrors := make(chan error, 2)

	go func() {
		cfg.Log.Info("Starting booking events consumer", "topic", cfg.BookingEventsTopic, "group_id", bookingGroupID)
		consumerErrors <- bookingConsumer.Start(ctx)
	}()
	go func() {
		cfg.Log.Info("Starting chat events consumer", "topic", cfg.ChatEventsTopic, "group_id", chatGroupID)
		consumerErrors <- chatConsumer.Start(ctx)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-consumerErrors:
		cfg.Log.Error("Consumer stopped unexpectedly", "error", err)

	case sig := <-shutdown:
		cfg.Log.Info("Shutdown signal received", "signal", sig)
	}

	cfg.Log.Info("Stopping consumers...")
	if err := bookingConsumer.Close(); err != nil {
		cfg.Log.Error("Failed to close booking events consumer", "error", err)
	}
	if err := chatConsumer.Close(); err != nil {
		cfg.Log.Error("Failed to close chat events consumer", "error", err)
	}

	cfg.GracefulShutdown()
	cfg.Log.Info("Mailer stopped",
		"emails_sent", mailer.Sent(),
		"emails_skipped", mailer.Skipped(),
		"send_failures", mailer.Failures(),
	)
}

// newSender picks SMTP when an address is configured, otherwise logs emails
// to stdout for local development.
func newSender(cfg *config.Config) mail.Sender {
	if cfg.SMTPAddr != "" {
		cfg.Log.Info("Using SMTP sender", "addr", cfg.SMTPAddr, "from", cfg.SMTPFrom)
		return mail.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPFrom)
	}
	cfg.Log.Info("No SMTP address configured, logging emails to console")
	return mail.NewConsoleSender(cfg.Log)
}
