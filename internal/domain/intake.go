package domain

import "time"

type IntakeFormType string

const (
	IntakeNewClient       IntakeFormType = "new_client"
	IntakeReturningClient IntakeFormType = "returning_client"
	IntakeQuickUpdate     IntakeFormType = "quick_update"
)

func ParseIntakeFormType(s string) (IntakeFormType, bool) {
	switch IntakeFormType(s) {
	case IntakeNewClient, IntakeReturningClient, IntakeQuickUpdate:
		return IntakeFormType(s), true
	default:
		return "", false
	}
}

type IntakeFormStatus string

const (
	IntakeDraft     IntakeFormStatus = "draft"
	IntakeSubmitted IntakeFormStatus = "submitted"
)

// IntakeForm is the health and preferences questionnaire. A draft form is
// created lazily once eligibility decides one is needed, and attached to
// the appointment at commit.
type IntakeForm struct {
	ID            int64            `json:"id"`
	ClientID      int64            `json:"client_id"`
	ClientEmail   string           `json:"client_email"`
	Type          IntakeFormType   `json:"type"`
	Status        IntakeFormStatus `json:"status"`
	AppointmentID *int64           `json:"appointment_id,omitempty"`
	Answers       map[string]any   `json:"answers,omitempty"`
	SubmittedAt   *time.Time       `json:"submitted_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// BelongsTo reports whether this form is owned by the given identity.
// Guests have no client ID, so ownership falls back to the email the
// form was opened with.
func (f *IntakeForm) BelongsTo(clientID int64, email string) bool {
	if f.ClientID != 0 && clientID != 0 {
		return f.ClientID == clientID
	}
	return f.ClientEmail != "" && f.ClientEmail == email
}
