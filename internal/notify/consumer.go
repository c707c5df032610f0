// Package notify turns booking events into outbound email. It runs in the
// notify worker, off a NATS queue group, so a slow mail provider never
// sits in the booking request path.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stillpoint/massage-bookings/internal/platform/mailer"
	"github.com/stillpoint/massage-bookings/pkg/events"
	"github.com/stillpoint/massage-bookings/pkg/logger"
)

const queueGroup = "notify"

type Consumer struct {
	bus    events.Subscriber
	mailer mailer.Service
}

func NewConsumer(bus events.Subscriber, m mailer.Service) *Consumer {
	return &Consumer{bus: bus, mailer: m}
}

// Start subscribes to the booking subjects. Send failures are logged and
// dropped; a missed confirmation email never blocks or retries into the
// booking flow.
func (c *Consumer) Start() error {
	subjects := []string{events.AppointmentBooked, events.ConsultationBooked}
	for _, subject := range subjects {
		if err := c.bus.QueueSubscribe(subject, queueGroup, c.handleBooked); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
	}
	if err := c.bus.QueueSubscribe(events.AppointmentCanceled, queueGroup, c.handleCanceled); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", events.AppointmentCanceled, err)
	}
	return nil
}

func (c *Consumer) handleBooked(msg *events.Message) {
	var event events.AppointmentBookedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("Failed to decode booking event", "error", err, "subject", msg.Subject)
		return
	}

	confirmation := mailer.BookingConfirmation{
		Email:              event.ClientEmail,
		Name:               event.ClientName,
		ConfirmationNumber: event.ConfirmationNumber,
		ServiceName:        event.ServiceName,
		Date:               event.Date,
		StartTime:          event.StartsAt.Format("3:04 PM"),
		IsConsultation:     event.IsConsultation,
		RoomURL:            event.RoomURL,
		RoomPending:        event.RoomPending,
		PaymentNote:        paymentNote(event.PaymentPreference),
	}

	if err := c.mailer.SendBookingConfirmation(confirmation); err != nil {
		logger.Error("Failed to send booking confirmation",
			"error", err,
			"appointment_id", event.AppointmentID,
			"recipient", event.ClientEmail,
		)
		return
	}

	logger.Info("Booking confirmation sent",
		"appointment_id", event.AppointmentID,
		"confirmation_number", event.ConfirmationNumber,
	)
}

func (c *Consumer) handleCanceled(msg *events.Message) {
	var event events.AppointmentCanceledEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("Failed to decode cancellation event", "error", err)
		return
	}

	subject := "Your Stillpoint appointment has been canceled"
	text := fmt.Sprintf(
		"Your appointment was canceled on %s.\n\nIf this was unexpected, please call the practice.\n",
		event.CanceledAt.Format(time.RFC1123),
	)
	if _, err := c.mailer.Send(event.ClientEmail, "", subject, text, ""); err != nil {
		logger.Error("Failed to send cancellation notice", "error", err, "appointment_id", event.AppointmentID)
	}
}

func paymentNote(pref string) string {
	switch pref {
	case "pay_now":
		return "paid in full, thank you"
	case "pay_at_appointment":
		return "due at your appointment"
	case "pay_cash":
		return "cash due at your appointment"
	default:
		return ""
	}
}
