package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/stillpoint/massage-bookings/internal/domain"
)

// Draft is the accumulating working record of a booking in progress. It is
// the single source of truth the commit path consumes; every wizard step
// reads and writes it through Update. One draft belongs to one browser
// session, keyed by ID in the draft store.
type Draft struct {
	ID string `json:"id"`

	Service          *domain.Service         `json:"service,omitempty"`
	IsConsultation   bool                    `json:"is_consultation"`
	ConsultationType domain.ConsultationType `json:"consultation_type,omitempty"`

	Date string           `json:"date,omitempty"` // YYYY-MM-DD
	Slot *domain.TimeSlot `json:"slot,omitempty"`

	ClientInfo *domain.ClientInfo `json:"client_info,omitempty"`
	ClientID   int64              `json:"client_id,omitempty"` // 0 for guests
	IsGuest    bool               `json:"is_guest"`

	IntakeFormID   int64                 `json:"intake_form_id,omitempty"`
	IntakeRequired bool                  `json:"intake_required"`
	IntakeFormType domain.IntakeFormType `json:"intake_form_type,omitempty"`

	PaymentPreference   domain.PaymentPreference `json:"payment_preference,omitempty"`
	PaymentIntentID     string                   `json:"payment_intent_id,omitempty"`
	PaymentClientSecret string                   `json:"payment_client_secret,omitempty"`
	PaymentConfirmed    bool                     `json:"payment_confirmed"`

	// AppointmentID is set exactly once, by the commit orchestrator. Its
	// presence marks the draft committed for the rest of its lifetime.
	AppointmentID      int64  `json:"appointment_id,omitempty"`
	ConfirmationNumber string `json:"confirmation_number,omitempty"`

	// RescheduleID points at a prior appointment being replaced.
	RescheduleID int64 `json:"reschedule_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Patch carries partial draft updates from a wizard step. Nil fields are
// left untouched.
type Patch struct {
	Service           *domain.Service           `json:"service,omitempty"`
	ConsultationType  *domain.ConsultationType  `json:"consultation_type,omitempty"`
	Date              *string                   `json:"date,omitempty"`
	Slot              *domain.TimeSlot          `json:"slot,omitempty"`
	ClientInfo        *domain.ClientInfo        `json:"client_info,omitempty"`
	PaymentPreference *domain.PaymentPreference `json:"payment_preference,omitempty"`
}

func NewDraft(rescheduleID int64) *Draft {
	now := time.Now()
	return &Draft{
		ID:           uuid.NewString(),
		IsGuest:      true,
		RescheduleID: rescheduleID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Update applies a partial patch. Changing the service resets everything
// downstream of step 1, since prices, consultation routing and intake
// requirements all hang off the service choice.
func (d *Draft) Update(p Patch) {
	if p.Service != nil {
		changed := d.Service == nil || d.Service.ID != p.Service.ID
		d.Service = p.Service
		d.IsConsultation = p.Service.IsConsultation
		if changed {
			d.ConsultationType = ""
			d.PaymentPreference = ""
			d.PaymentIntentID = ""
			d.PaymentClientSecret = ""
			d.PaymentConfirmed = false
		}
	}
	if p.ConsultationType != nil {
		d.ConsultationType = *p.ConsultationType
	}
	if p.Date != nil {
		d.Date = *p.Date
	}
	if p.Slot != nil {
		slot := *p.Slot
		d.Slot = &slot
	}
	if p.ClientInfo != nil {
		info := *p.ClientInfo
		info.Normalize()
		d.ClientInfo = &info
	}
	if p.PaymentPreference != nil {
		d.PaymentPreference = *p.PaymentPreference
	}

	// Consultations are free: a payment preference never survives on a
	// consultation draft, whatever order the patches arrived in.
	if d.IsConsultation {
		d.PaymentPreference = ""
		d.PaymentIntentID = ""
		d.PaymentClientSecret = ""
	}

	d.UpdatedAt = time.Now()
}

// Reset clears all selections but keeps the draft's identity and any
// reschedule already in flight.
func (d *Draft) Reset() {
	reschedule := d.RescheduleID
	*d = Draft{
		ID:           d.ID,
		IsGuest:      true,
		RescheduleID: reschedule,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    time.Now(),
	}
}

// AttachIdentity records the authenticated profile backing this draft.
func (d *Draft) AttachIdentity(clientID int64) {
	d.ClientID = clientID
	d.IsGuest = clientID == 0
	d.UpdatedAt = time.Now()
}

// ClearIntakeForm drops the form reference, e.g. when the stored form
// turns out to belong to someone else.
func (d *Draft) ClearIntakeForm() {
	d.IntakeFormID = 0
	d.IntakeFormType = ""
	d.UpdatedAt = time.Now()
}

func (d *Draft) Committed() bool {
	return d.AppointmentID != 0
}

func (d *Draft) hasService() bool {
	return d.Service != nil
}

func (d *Draft) hasSchedule() bool {
	return d.Date != "" && d.Slot != nil && !d.Slot.IsZero()
}

func (d *Draft) hasValidClientInfo() bool {
	return d.ClientInfo != nil && d.ClientInfo.Validate() == nil
}

func (d *Draft) intakeResolved() bool {
	return !d.IntakeRequired || d.IntakeFormID != 0
}

// ReadyToCommit reports whether the draft carries everything the commit
// orchestrator needs for the path this draft actually took.
func (d *Draft) ReadyToCommit() bool {
	if !d.hasService() || !d.hasSchedule() || !d.hasValidClientInfo() || !d.intakeResolved() {
		return false
	}
	if d.IsConsultation {
		return d.ConsultationType != ""
	}
	if d.PaymentPreference == "" {
		return false
	}
	if d.PaymentPreference == domain.PayNow {
		return d.PaymentIntentID != "" && d.PaymentConfirmed
	}
	return true
}
