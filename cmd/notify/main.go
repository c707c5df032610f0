package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/stillpoint/massage-bookings/internal/notify"
	"github.com/stillpoint/massage-bookings/internal/platform/mailer"
	"github.com/stillpoint/massage-bookings/pkg/config"
	"github.com/stillpoint/massage-bookings/pkg/events"
	"github.com/stillpoint/massage-bookings/pkg/logger"
	mw "github.com/stillpoint/massage-bookings/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	var mail mailer.Service
	if cfg.Email.DevMode || cfg.Email.MailerSendKey == "" {
		logger.Info("Email dev mode: printing emails to logs")
		mail = mailer.NewDevMailer()
	} else {
		mail = mailer.NewMailer(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.SMTPFrom)
	}

	consumer := notify.NewConsumer(eventBus, mail)
	if err := consumer.Start(); err != nil {
		logger.Error("Failed to subscribe to booking events", "error", err)
		os.Exit(1)
	}

	// Health endpoint only; all real work arrives over NATS.
	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("notify"))
	r.Use(mw.Logging)
	r.Use(mw.Health)

	go func() {
		logger.Info("Starting notify service", "port", "8086")
		if err := http.ListenAndServe(":8086", r); err != nil {
			logger.Error("Notify service error", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down notify service...")
}
