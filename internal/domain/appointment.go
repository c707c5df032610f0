package domain

import "time"

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCanceled  AppointmentStatus = "canceled"
)

func ParseAppointmentStatus(s string) (AppointmentStatus, bool) {
	switch AppointmentStatus(s) {
	case AppointmentPending, AppointmentConfirmed, AppointmentCompleted, AppointmentCanceled:
		return AppointmentStatus(s), true
	default:
		return "", false
	}
}

type PaymentStatus string

const (
	PaymentUnpaid            PaymentStatus = "unpaid"
	PaymentPendingCollection PaymentStatus = "pending_collection"
	PaymentPaid              PaymentStatus = "paid"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentNotRequired       PaymentStatus = "not_required"
)

type Appointment struct {
	ID                 int64             `json:"id"`
	ClientID           int64             `json:"client_id"`
	ServiceID          int64             `json:"service_id"`
	ServiceName        string            `json:"service_name"`
	Status             AppointmentStatus `json:"status"`
	Date               string            `json:"date"` // YYYY-MM-DD in practice-local time
	StartsAt           time.Time         `json:"starts_at"`
	EndsAt             time.Time         `json:"ends_at"`
	PriceCents         int64             `json:"price_cents"`
	PaymentPreference  PaymentPreference `json:"payment_preference,omitempty"`
	PaymentStatus      PaymentStatus     `json:"payment_status"`
	PaymentIntentID    string            `json:"payment_intent_id,omitempty"`
	ConfirmationNumber string            `json:"confirmation_number"`
	IntakeFormID       *int64            `json:"intake_form_id,omitempty"`
	RescheduledFromID  *int64            `json:"rescheduled_from_id,omitempty"`
	Notes              string            `json:"notes,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// AppointmentInput is what the commit path hands the persistence layer.
type AppointmentInput struct {
	ClientID           int64
	ServiceID          int64
	Date               string
	StartsAt           time.Time
	EndsAt             time.Time
	PriceCents         int64
	PaymentPreference  PaymentPreference
	PaymentStatus      PaymentStatus
	ConfirmationNumber string
	RescheduledFromID  *int64
	Notes              string
}

// Consultation rides alongside its appointment record. The room URL is
// filled in only for video consultations, and only when provisioning
// succeeded at booking time.
type Consultation struct {
	ID            int64            `json:"id"`
	AppointmentID int64            `json:"appointment_id"`
	Type          ConsultationType `json:"type"`
	RoomURL       string           `json:"room_url,omitempty"`
	Completed     bool             `json:"completed"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Business rules
const (
	MaxRescheduleCount = 2
	CancelCutoffHours  = 24
)

func (a *Appointment) CanCancel() bool {
	if a.Status == AppointmentCanceled || a.Status == AppointmentCompleted {
		return false
	}

	cutoffTime := a.StartsAt.Add(-CancelCutoffHours * time.Hour)
	return time.Now().Before(cutoffTime)
}

func (a *Appointment) CanReschedule() bool {
	return a.Status != AppointmentCanceled && a.Status != AppointmentCompleted
}

func (a *Appointment) IsOwner(clientID int64) bool {
	return a.ClientID == clientID
}
