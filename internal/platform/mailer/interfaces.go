package mailer

// BookingConfirmation is everything the confirmation email template needs.
type BookingConfirmation struct {
	Email              string
	Name               string
	ConfirmationNumber string
	ServiceName        string
	Date               string
	StartTime          string
	IsConsultation     bool
	RoomURL            string
	RoomPending        bool
	PaymentNote        string
}

type Service interface {
	Send(toEmail, toName, subject, text, html string) (string, error)
	SendBookingConfirmation(c BookingConfirmation) error
}
