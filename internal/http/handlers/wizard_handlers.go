package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stillpoint/massage-bookings/internal/booking"
	"github.com/stillpoint/massage-bookings/internal/booking/draftstore"
	"github.com/stillpoint/massage-bookings/internal/domain"
	"github.com/stillpoint/massage-bookings/internal/http/middleware"
	"github.com/stillpoint/massage-bookings/internal/http/response"
	"github.com/stillpoint/massage-bookings/pkg/logger"
)

// draftView is the wire shape of a draft plus its position on the path.
// The client secret is included so the payment form can mount; the raw
// draft never leaves through any other surface.
type draftView struct {
	Draft   *booking.Draft `json:"draft"`
	Step    string         `json:"step,omitempty"`
	Current int            `json:"current_step"`
	Total   int            `json:"total_steps"`
}

func newDraftView(d *booking.Draft, step booking.Step) draftView {
	current, total := booking.Progress(step, d)
	return draftView{Draft: d, Step: step.String(), Current: current, Total: total}
}

type startDraftRequest struct {
	RescheduleID int64 `json:"reschedule_id,omitempty"`
}

// StartDraft opens a new booking draft. Works for anonymous visitors;
// a session, when present, binds the draft to that client.
func (h *Handlers) StartDraft(w http.ResponseWriter, r *http.Request) {
	var req startDraftRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "Invalid request body")
			return
		}
	}

	var clientID int64
	if claims := middleware.Claims(r); claims != nil {
		clientID = claims.Sub
	}

	if req.RescheduleID != 0 {
		if !h.canTouchAppointment(w, r, req.RescheduleID) {
			return
		}
	}

	d, err := h.wizard.Start(r.Context(), clientID, req.RescheduleID)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to start booking draft", "error", err)
		response.InternalError(w, "Failed to start booking")
		return
	}

	writeJSON(w, http.StatusCreated, newDraftView(d, booking.StepService))
}

// GetDraft returns the draft and its progress at the given step.
func (h *Handlers) GetDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := h.loadDraft(w, r)
	if !ok {
		return
	}

	step := booking.StepService
	if s, ok := booking.ParseStep(r.URL.Query().Get("step")); ok {
		step = s
	}

	writeJSON(w, http.StatusOK, newDraftView(d, step))
}

type draftPatchRequest struct {
	ServiceID         *int64             `json:"service_id,omitempty"`
	ConsultationType  *string            `json:"consultation_type,omitempty"`
	Date              *string            `json:"date,omitempty"`
	Slot              *domain.TimeSlot   `json:"slot,omitempty"`
	ClientInfo        *domain.ClientInfo `json:"client_info,omitempty"`
	PaymentPreference *string            `json:"payment_preference,omitempty"`
}

// PatchDraft merges step selections into the draft. Service is selected
// by ID and resolved against the catalogue so the draft always carries
// the current price and consultation flag.
func (h *Handlers) PatchDraft(w http.ResponseWriter, r *http.Request) {
	draftID := chi.URLParam(r, "draftID")

	var req draftPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	var patch booking.Patch

	if req.ServiceID != nil {
		svc, err := h.services.GetByID(r.Context(), *req.ServiceID)
		if err != nil {
			logger.ErrorContext(r.Context(), "Failed to load service", "error", err, "service_id", *req.ServiceID)
			response.InternalError(w, "Failed to load service")
			return
		}
		if svc == nil || !svc.Active {
			response.BadRequest(w, "Unknown service")
			return
		}
		patch.Service = svc
	}

	if req.ConsultationType != nil {
		ct, ok := domain.ParseConsultationType(*req.ConsultationType)
		if !ok {
			response.BadRequest(w, "Invalid consultation type")
			return
		}
		patch.ConsultationType = &ct
	}

	if req.PaymentPreference != nil {
		pp, ok := domain.ParsePaymentPreference(*req.PaymentPreference)
		if !ok {
			response.BadRequest(w, "Invalid payment preference")
			return
		}
		patch.PaymentPreference = &pp
	}

	if req.ClientInfo != nil {
		req.ClientInfo.Normalize()
		if err := req.ClientInfo.Validate(); err != nil {
			response.BadRequest(w, err.Error())
			return
		}
		patch.ClientInfo = req.ClientInfo
	}

	patch.Date = req.Date
	patch.Slot = req.Slot

	d, err := h.wizard.ApplyStep(r.Context(), draftID, patch)
	if err != nil {
		h.writeDraftError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newDraftView(d, booking.StepService))
}

type navigateRequest struct {
	From string `json:"from"`
}

// Advance moves the wizard forward from the given step. When the guards
// refuse the move the current step is returned unchanged.
func (h *Handlers) Advance(w http.ResponseWriter, r *http.Request) {
	draftID := chi.URLParam(r, "draftID")

	from, ok := h.parseNavigate(w, r)
	if !ok {
		return
	}

	next, d, err := h.wizard.Advance(r.Context(), draftID, from)
	if err != nil {
		h.writeDraftError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newDraftView(d, next))
}

// Back moves the wizard to the step that actually preceded the given one.
func (h *Handlers) Back(w http.ResponseWriter, r *http.Request) {
	draftID := chi.URLParam(r, "draftID")

	from, ok := h.parseNavigate(w, r)
	if !ok {
		return
	}

	prev, d, err := h.wizard.Back(r.Context(), draftID, from)
	if err != nil {
		h.writeDraftError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newDraftView(d, prev))
}

// PreparePayment raises the Stripe intent for a pay-now draft and hands
// back the client secret. Safe to call again on a re-rendered screen.
func (h *Handlers) PreparePayment(w http.ResponseWriter, r *http.Request) {
	draftID := chi.URLParam(r, "draftID")

	d, err := h.wizard.PreparePayment(r.Context(), draftID)
	if err != nil {
		h.writeDraftError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"payment_intent_id": d.PaymentIntentID,
		"client_secret":     d.PaymentClientSecret,
	})
}

type confirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

// ConfirmPayment records the Stripe confirmation callback on the draft.
func (h *Handlers) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	draftID := chi.URLParam(r, "draftID")

	var req confirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaymentIntentID == "" {
		response.BadRequest(w, "payment_intent_id is required")
		return
	}

	d, err := h.wizard.ConfirmPayment(r.Context(), draftID, req.PaymentIntentID)
	if err != nil {
		h.writeDraftError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newDraftView(d, booking.StepPayment))
}

// Commit finalizes the booking. Repeat calls for the same draft return
// the original confirmation instead of double-booking.
func (h *Handlers) Commit(w http.ResponseWriter, r *http.Request) {
	draftID := chi.URLParam(r, "draftID")

	res, err := h.wizard.Commit(r.Context(), draftID)
	if err != nil {
		switch {
		case errors.Is(err, draftstore.ErrNotFound):
			response.WriteError(w, http.StatusNotFound, "Booking draft not found or expired", response.CodeDraftExpired)
		case errors.Is(err, booking.ErrDraftIncomplete):
			response.WriteError(w, http.StatusBadRequest, "Booking is missing required selections", response.CodeDraftIncomplete)
		case errors.Is(err, booking.ErrCommitInProgress):
			response.WriteError(w, http.StatusConflict, "Booking is already being confirmed", response.CodeConflict)
		default:
			logger.ErrorContext(r.Context(), "Booking commit failed", "error", err, "draft_id", draftID)
			response.WriteError(w, http.StatusBadGateway, "Could not confirm booking, please retry", response.CodeCommitRetry)
		}
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

func (h *Handlers) loadDraft(w http.ResponseWriter, r *http.Request) (*booking.Draft, bool) {
	draftID := chi.URLParam(r, "draftID")

	d, err := h.wizard.Get(r.Context(), draftID)
	if err != nil {
		h.writeDraftError(w, r, err)
		return nil, false
	}
	return d, true
}

func (h *Handlers) parseNavigate(w http.ResponseWriter, r *http.Request) (booking.Step, bool) {
	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return 0, false
	}
	step, ok := booking.ParseStep(req.From)
	if !ok {
		response.BadRequest(w, "Unknown step")
		return 0, false
	}
	return step, true
}

func (h *Handlers) writeDraftError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, draftstore.ErrNotFound) {
		response.WriteError(w, http.StatusNotFound, "Booking draft not found or expired", response.CodeDraftExpired)
		return
	}
	logger.ErrorContext(r.Context(), "Draft operation failed", "error", err)
	response.BadRequest(w, err.Error())
}
