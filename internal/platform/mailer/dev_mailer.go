package mailer

import (
	"github.com/stillpoint/massage-bookings/pkg/logger"
)

// DevMailer logs messages instead of sending them. Used when
// EMAIL_DEV_MODE is on or no MailerSend key is configured.
type DevMailer struct{}

func NewDevMailer() *DevMailer { return &DevMailer{} }

func (m *DevMailer) Send(toEmail, toName, subject, text, html string) (string, error) {
	logger.Info("DEV EMAIL",
		"to", toEmail,
		"name", toName,
		"subject", subject,
		"body", text,
	)
	return "dev-message-id", nil
}

func (m *DevMailer) SendBookingConfirmation(c BookingConfirmation) error {
	logger.Info("DEV EMAIL booking confirmation",
		"to", c.Email,
		"confirmation_number", c.ConfirmationNumber,
		"service", c.ServiceName,
		"date", c.Date,
		"room_url", c.RoomURL,
		"room_pending", c.RoomPending,
	)
	return nil
}
