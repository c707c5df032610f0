package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stillpoint/massage-bookings/internal/domain"
	"github.com/stillpoint/massage-bookings/internal/http/middleware"
	"github.com/stillpoint/massage-bookings/internal/http/response"
	"github.com/stillpoint/massage-bookings/pkg/events"
	"github.com/stillpoint/massage-bookings/pkg/logger"
)

// ListAppointments returns the session holder's appointments. Client
// sessions list by ID; guest sessions fall back to the verified email.
func (h *Handlers) ListAppointments(w http.ResponseWriter, r *http.Request) {
	claims := middleware.Claims(r)
	if claims == nil {
		response.Unauthorized(w, "Session required")
		return
	}

	limit, offset := parsePagination(r)

	var statusFilter *domain.AppointmentStatus
	if s := r.URL.Query().Get("status"); s != "" {
		status, ok := domain.ParseAppointmentStatus(s)
		if !ok {
			response.BadRequest(w, "Invalid status filter")
			return
		}
		statusFilter = &status
	}

	var (
		appts []domain.Appointment
		err   error
	)
	if claims.Sub != 0 {
		appts, err = h.appointments.ListByClient(r.Context(), claims.Sub, limit, offset, statusFilter)
	} else {
		appts, err = h.appointments.ListByEmail(r.Context(), claims.Email, limit, offset)
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to list appointments", "error", err)
		response.InternalError(w, "Failed to list appointments")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"appointments": appts,
		"limit":        limit,
		"offset":       offset,
	})
}

// GetAppointment returns one appointment, with its consultation record
// when one exists.
func (h *Handlers) GetAppointment(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.ownedAppointment(w, r)
	if !ok {
		return
	}

	body := map[string]any{"appointment": appt}
	if consult, err := h.appointments.GetConsultationByAppointment(r.Context(), appt.ID); err == nil && consult != nil {
		body["consultation"] = consult
	}

	writeJSON(w, http.StatusOK, body)
}

// CancelAppointment cancels inside the cutoff window and refunds any
// captured payment. The refund is best effort; the cancellation stands
// either way.
func (h *Handlers) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	appt, ok := h.ownedAppointment(w, r)
	if !ok {
		return
	}

	if !appt.CanCancel() {
		response.WriteError(w, http.StatusConflict,
			"Appointments can only be canceled up to 24 hours before the start time",
			response.CodeConflict)
		return
	}

	canceled, err := h.appointments.Cancel(r.Context(), appt.ID)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to cancel appointment", "error", err, "appointment_id", appt.ID)
		response.InternalError(w, "Failed to cancel appointment")
		return
	}
	if !canceled {
		response.Conflict(w, "Appointment is no longer cancelable")
		return
	}

	if appt.PaymentStatus == domain.PaymentPaid && appt.PaymentIntentID != "" {
		if err := h.payments.Refund(r.Context(), appt.PaymentIntentID); err != nil {
			logger.ErrorContext(r.Context(), "Refund failed after cancellation", "error", err, "appointment_id", appt.ID)
		} else if err := h.appointments.SetPaymentStatus(r.Context(), appt.ID, domain.PaymentRefunded); err != nil {
			logger.ErrorContext(r.Context(), "Failed to record refund", "error", err, "appointment_id", appt.ID)
		}
	}

	email := h.ownerEmail(r, appt)
	if err := h.bus.Publish(r.Context(), events.AppointmentCanceled, events.AppointmentCanceledEvent{
		AppointmentID: appt.ID,
		ClientEmail:   email,
		Reason:        "client_canceled",
		CanceledAt:    time.Now(),
	}); err != nil {
		logger.ErrorContext(r.Context(), "Failed to publish cancellation event", "error", err, "appointment_id", appt.ID)
	}

	writeJSON(w, http.StatusOK, map[string]any{"canceled": true})
}

// CompleteConsultation marks a consultation done and consumes the
// client's free consultation. Practitioner-side operation.
func (h *Handlers) CompleteConsultation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "consultationID"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid consultation ID")
		return
	}

	clientID, err := h.appointments.CompleteConsultation(r.Context(), id)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to complete consultation", "error", err, "consultation_id", id)
		response.InternalError(w, "Failed to complete consultation")
		return
	}
	if clientID == 0 {
		response.NotFound(w, "Consultation not found")
		return
	}

	if err := h.clients.MarkConsultationConsumed(r.Context(), clientID); err != nil {
		logger.ErrorContext(r.Context(), "Failed to mark consultation consumed", "error", err, "client_id", clientID)
	}

	if err := h.bus.Publish(r.Context(), events.ConsultationCompleted, events.ConsultationCompletedEvent{
		ConsultationID: id,
		ClientID:       clientID,
		CompletedAt:    time.Now(),
	}); err != nil {
		logger.ErrorContext(r.Context(), "Failed to publish consultation completion", "error", err, "consultation_id", id)
	}

	writeJSON(w, http.StatusOK, map[string]any{"completed": true})
}

// ownedAppointment loads the path appointment and checks it belongs to
// the session holder.
func (h *Handlers) ownedAppointment(w http.ResponseWriter, r *http.Request) (*domain.Appointment, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "appointmentID"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid appointment ID")
		return nil, false
	}

	appt, err := h.appointments.GetByID(r.Context(), id)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to load appointment", "error", err, "appointment_id", id)
		response.InternalError(w, "Failed to load appointment")
		return nil, false
	}
	if appt == nil {
		response.NotFound(w, "Appointment not found")
		return nil, false
	}

	if !h.sessionOwns(r, appt) {
		response.NotFound(w, "Appointment not found")
		return nil, false
	}

	return appt, true
}

// canTouchAppointment is the reschedule-time variant of the ownership
// check, keyed by ID rather than URL param.
func (h *Handlers) canTouchAppointment(w http.ResponseWriter, r *http.Request, id int64) bool {
	appt, err := h.appointments.GetByID(r.Context(), id)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to load appointment", "error", err, "appointment_id", id)
		response.InternalError(w, "Failed to load appointment")
		return false
	}
	if appt == nil || !h.sessionOwns(r, appt) {
		response.NotFound(w, "Appointment not found")
		return false
	}
	if !appt.CanReschedule() {
		response.Conflict(w, "Appointment can no longer be rescheduled")
		return false
	}
	return true
}

// sessionOwns resolves ownership for both session kinds. Guest sessions
// own an appointment when their verified email matches the appointment's
// client record.
func (h *Handlers) sessionOwns(r *http.Request, appt *domain.Appointment) bool {
	claims := middleware.Claims(r)
	if claims == nil {
		return false
	}
	if claims.Sub != 0 {
		return appt.IsOwner(claims.Sub)
	}

	client, err := h.clients.FindByID(r.Context(), appt.ClientID)
	if err != nil || client == nil {
		return false
	}
	return client.Email == claims.Email
}

func (h *Handlers) ownerEmail(r *http.Request, appt *domain.Appointment) string {
	if client, err := h.clients.FindByID(r.Context(), appt.ClientID); err == nil && client != nil {
		return client.Email
	}
	if claims := middleware.Claims(r); claims != nil {
		return claims.Email
	}
	return ""
}
