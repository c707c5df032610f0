package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stillpoint/massage-bookings/internal/domain"
	"github.com/stillpoint/massage-bookings/pkg/events"
	"github.com/stillpoint/massage-bookings/pkg/logger"
)

var (
	// ErrDraftIncomplete means required selections are missing; the client
	// should be sent back to the step that lacks data.
	ErrDraftIncomplete = errors.New("booking draft is incomplete")

	// ErrCommitInProgress means a commit for this draft is already running.
	ErrCommitInProgress = errors.New("booking commit already in progress")
)

type AppointmentStore interface {
	Create(ctx context.Context, in *domain.AppointmentInput) (*domain.Appointment, error)
	CreateConsultation(ctx context.Context, appointmentID int64, typ domain.ConsultationType) (*domain.Consultation, error)
	SetConsultationRoom(ctx context.Context, consultationID int64, roomURL string) error
	Cancel(ctx context.Context, id int64) (bool, error)
	GetByID(ctx context.Context, id int64) (*domain.Appointment, error)
	AttachPaymentIntent(ctx context.Context, id int64, intentID string) error
}

type ClientStore interface {
	CreateGuest(ctx context.Context, in domain.GuestProfileInput) (int64, error)
}

type IntakeStore interface {
	AttachAppointment(ctx context.Context, formID, appointmentID int64) error
}

type IdempotencyStore interface {
	CheckOrCreate(ctx context.Context, draftID string, appointmentID int64) (existingAppointmentID int64, err error)
}

// RoomProvisioner creates a video room for a consultation. Provisioning
// lives outside the booking transaction: a failure never unbooks anyone.
type RoomProvisioner interface {
	CreateRoom(ctx context.Context, consultationID int64, participantNames []string) (string, error)
}

type CommitResult struct {
	AppointmentID      int64    `json:"appointment_id"`
	ConfirmationNumber string   `json:"confirmation_number"`
	ConsultationID     int64    `json:"consultation_id,omitempty"`
	RoomURL            string   `json:"room_url,omitempty"`
	RoomPending        bool     `json:"room_pending,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`
}

// Orchestrator turns a completed draft into persisted records. It is safe
// against duplicate invocation: an in-memory one-shot guard is taken
// before any network call, and the draft-keyed idempotency table backs it
// across restarts.
type Orchestrator struct {
	appointments AppointmentStore
	clients      ClientStore
	intake       IntakeStore
	idempotency  IdempotencyStore
	rooms        RoomProvisioner
	bus          events.Publisher

	mu       sync.Mutex
	inFlight map[string]struct{}
	results  map[string]*CommitResult
}

func NewOrchestrator(
	appointments AppointmentStore,
	clients ClientStore,
	intake IntakeStore,
	idempotency IdempotencyStore,
	rooms RoomProvisioner,
	bus events.Publisher,
) *Orchestrator {
	return &Orchestrator{
		appointments: appointments,
		clients:      clients,
		intake:       intake,
		idempotency:  idempotency,
		rooms:        rooms,
		bus:          bus,
		inFlight:     make(map[string]struct{}),
		results:      make(map[string]*CommitResult),
	}
}

// Commit runs the ordered booking sequence for a draft. Repeated calls
// for the same draft return the first result without creating anything.
func (o *Orchestrator) Commit(ctx context.Context, d *Draft) (*CommitResult, error) {
	o.mu.Lock()
	if res, ok := o.results[d.ID]; ok {
		o.mu.Unlock()
		return res, nil
	}
	if d.Committed() {
		res := &CommitResult{AppointmentID: d.AppointmentID, ConfirmationNumber: d.ConfirmationNumber}
		o.results[d.ID] = res
		o.mu.Unlock()
		return res, nil
	}
	if _, busy := o.inFlight[d.ID]; busy {
		o.mu.Unlock()
		return nil, ErrCommitInProgress
	}
	o.inFlight[d.ID] = struct{}{}
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.inFlight, d.ID)
		o.mu.Unlock()
	}()

	if !d.ReadyToCommit() {
		return nil, ErrDraftIncomplete
	}

	// The idempotency table catches duplicates that outlived this
	// process. Lookup errors are not fatal; the in-memory guard still
	// holds for the common case.
	if existingID, err := o.idempotency.CheckOrCreate(ctx, d.ID, 0); err != nil {
		logger.WarnContext(ctx, "Idempotency lookup failed before commit", "error", err, "draft_id", d.ID)
	} else if existingID > 0 {
		return o.adoptExisting(ctx, d, existingID)
	}

	res := &CommitResult{}

	// Step 1: best-effort cancellation of the appointment being replaced.
	if d.RescheduleID != 0 {
		if _, err := o.appointments.Cancel(ctx, d.RescheduleID); err != nil {
			logger.ErrorContext(ctx, "Failed to cancel rescheduled appointment", "error", err, "appointment_id", d.RescheduleID)
			res.Warnings = append(res.Warnings, "your previous appointment could not be canceled automatically; we will sort it out")
		}
	}

	// Step 2: create the appointment (and consultation pair). This is the
	// one fatal step: nothing before it persisted, everything after it
	// degrades gracefully.
	clientID := d.ClientID
	if clientID == 0 {
		id, err := o.clients.CreateGuest(ctx, domain.GuestProfileInput{
			FirstName: d.ClientInfo.FirstName,
			LastName:  d.ClientInfo.LastName,
			Email:     d.ClientInfo.Email,
			Phone:     d.ClientInfo.Phone,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create guest profile: %w", err)
		}
		clientID = id
	}

	appt, err := o.appointments.Create(ctx, o.appointmentInput(d, clientID))
	if err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	var consultation *domain.Consultation
	if d.IsConsultation {
		consultation, err = o.appointments.CreateConsultation(ctx, appt.ID, d.ConsultationType)
		if err != nil {
			// The pair is created together or not at all.
			if _, cerr := o.appointments.Cancel(ctx, appt.ID); cerr != nil {
				logger.ErrorContext(ctx, "Failed to roll back appointment after consultation error", "error", cerr, "appointment_id", appt.ID)
			}
			return nil, fmt.Errorf("failed to create consultation: %w", err)
		}
		res.ConsultationID = consultation.ID
	}

	if existingID, err := o.idempotency.CheckOrCreate(ctx, d.ID, appt.ID); err != nil {
		logger.ErrorContext(ctx, "Failed to store idempotency record", "error", err, "appointment_id", appt.ID)
	} else if existingID > 0 && existingID != appt.ID {
		logger.WarnContext(ctx, "Concurrent commit detected for draft", "draft_id", d.ID, "appointment_id", appt.ID, "existing_id", existingID)
	}

	// Step 3: link the intake form. The booking stands without it.
	if d.IntakeFormID != 0 {
		if err := o.intake.AttachAppointment(ctx, d.IntakeFormID, appt.ID); err != nil {
			logger.ErrorContext(ctx, "Failed to link intake form", "error", err, "form_id", d.IntakeFormID, "appointment_id", appt.ID)
			res.Warnings = append(res.Warnings, "your intake form could not be attached; please bring a copy or resubmit")
		}
	}

	// Step 4: pay-now flows arrive here with the intent already confirmed
	// by the payment step; record the reference on the appointment.
	if d.PaymentPreference == domain.PayNow && d.PaymentIntentID != "" {
		if err := o.appointments.AttachPaymentIntent(ctx, appt.ID, d.PaymentIntentID); err != nil {
			logger.ErrorContext(ctx, "Failed to attach payment intent", "error", err, "appointment_id", appt.ID, "intent_id", d.PaymentIntentID)
		}
	}

	// Step 5: video rooms are provisioned best-effort; the consultation
	// is booked either way and instructions follow by email.
	if consultation != nil && d.ConsultationType == domain.ConsultationVideo {
		roomURL, err := o.rooms.CreateRoom(ctx, consultation.ID, []string{d.ClientInfo.FullName()})
		if err != nil {
			logger.ErrorContext(ctx, "Video room provisioning failed", "error", err, "consultation_id", consultation.ID)
			res.RoomPending = true
			res.Warnings = append(res.Warnings, "you will receive meeting instructions by email")
		} else {
			res.RoomURL = roomURL
			if err := o.appointments.SetConsultationRoom(ctx, consultation.ID, roomURL); err != nil {
				logger.ErrorContext(ctx, "Failed to store room URL", "error", err, "consultation_id", consultation.ID)
			}
		}
	}

	// Step 6: confirmation notification, fire-and-forget via the bus.
	o.publishBooked(ctx, d, appt, res)

	// Step 7: the draft is now permanently committed.
	d.AppointmentID = appt.ID
	d.ConfirmationNumber = appt.ConfirmationNumber
	d.UpdatedAt = time.Now()

	res.AppointmentID = appt.ID
	res.ConfirmationNumber = appt.ConfirmationNumber

	o.mu.Lock()
	o.results[d.ID] = res
	o.mu.Unlock()

	logger.InfoContext(ctx, "Booking committed",
		"draft_id", d.ID,
		"appointment_id", appt.ID,
		"confirmation_number", appt.ConfirmationNumber,
		"is_consultation", d.IsConsultation,
	)

	return res, nil
}

func (o *Orchestrator) appointmentInput(d *Draft, clientID int64) *domain.AppointmentInput {
	in := &domain.AppointmentInput{
		ClientID:           clientID,
		ServiceID:          d.Service.ID,
		Date:               d.Date,
		StartsAt:           d.Slot.Start,
		EndsAt:             d.Slot.End,
		ConfirmationNumber: NewConfirmationNumber(),
	}
	if d.RescheduleID != 0 {
		rescheduleID := d.RescheduleID
		in.RescheduledFromID = &rescheduleID
	}
	if d.IsConsultation {
		in.PriceCents = 0
		in.PaymentStatus = domain.PaymentNotRequired
		return in
	}
	in.PriceCents = d.Service.PriceCents
	in.PaymentPreference = d.PaymentPreference
	if d.PaymentPreference == domain.PayNow {
		in.PaymentStatus = domain.PaymentPaid
	} else {
		in.PaymentStatus = domain.PaymentPendingCollection
	}
	return in
}

// adoptExisting rehydrates draft and result from an appointment a prior
// process already created for this draft.
func (o *Orchestrator) adoptExisting(ctx context.Context, d *Draft, appointmentID int64) (*CommitResult, error) {
	appt, err := o.appointments.GetByID(ctx, appointmentID)
	if err != nil || appt == nil {
		return nil, fmt.Errorf("draft already committed but appointment %d could not be loaded: %w", appointmentID, err)
	}

	d.AppointmentID = appt.ID
	d.ConfirmationNumber = appt.ConfirmationNumber
	d.UpdatedAt = time.Now()

	res := &CommitResult{AppointmentID: appt.ID, ConfirmationNumber: appt.ConfirmationNumber}
	o.mu.Lock()
	o.results[d.ID] = res
	o.mu.Unlock()
	return res, nil
}

func (o *Orchestrator) publishBooked(ctx context.Context, d *Draft, appt *domain.Appointment, res *CommitResult) {
	event := events.AppointmentBookedEvent{
		AppointmentID:      appt.ID,
		ConfirmationNumber: appt.ConfirmationNumber,
		ClientEmail:        d.ClientInfo.Email,
		ClientName:         d.ClientInfo.FullName(),
		ServiceName:        d.Service.Name,
		Date:               d.Date,
		StartsAt:           d.Slot.Start,
		EndsAt:             d.Slot.End,
		IsConsultation:     d.IsConsultation,
		RoomURL:            res.RoomURL,
		RoomPending:        res.RoomPending,
		PaymentPreference:  string(d.PaymentPreference),
		BookedAt:           time.Now(),
	}

	subject := events.AppointmentBooked
	if d.IsConsultation {
		subject = events.ConsultationBooked
	}

	if err := o.bus.Publish(ctx, subject, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking event", "error", err, "appointment_id", appt.ID)
		res.Warnings = append(res.Warnings, "confirmation email may be delayed")
	}
}
