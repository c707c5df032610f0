package domain

import "time"

// Service is an offering on the practice's menu. Consultations are free
// intro sessions and follow a shorter booking path than paid massage work.
type Service struct {
	ID             int64         `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"description,omitempty"`
	Duration       time.Duration `json:"duration"`
	PriceCents     int64         `json:"price_cents"`
	IsConsultation bool          `json:"is_consultation"`
	Active         bool          `json:"active"`
}

type ConsultationType string

const (
	ConsultationPhone    ConsultationType = "phone"
	ConsultationVideo    ConsultationType = "video"
	ConsultationInPerson ConsultationType = "in_person"
)

func ParseConsultationType(s string) (ConsultationType, bool) {
	switch ConsultationType(s) {
	case ConsultationPhone, ConsultationVideo, ConsultationInPerson:
		return ConsultationType(s), true
	default:
		return "", false
	}
}

type PaymentPreference string

const (
	PayNow           PaymentPreference = "pay_now"
	PayAtAppointment PaymentPreference = "pay_at_appointment"
	PayCash          PaymentPreference = "pay_cash"
)

func ParsePaymentPreference(s string) (PaymentPreference, bool) {
	switch PaymentPreference(s) {
	case PayNow, PayAtAppointment, PayCash:
		return PaymentPreference(s), true
	default:
		return "", false
	}
}

// TimeSlot is a bookable window on the calendar.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (s TimeSlot) IsZero() bool {
	return s.Start.IsZero() || s.End.IsZero()
}
