package handlers

import (
	"encoding/json"
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

// GetIntakeForm returns a form the session holder owns.
func (h *Handlers) GetIntakeForm(w http.ResponseWriter, r *http.Request) {
	form, ok := h.ownedIntakeForm(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, form)
}

type submitIntakeRequest struct {
	Answers map[string]any `json:"answers"`
}

// SubmitIntakeForm finalizes a draft form with the client's answers.
// Submitting twice is rejected; forms are immutable once submitted.
func (h *Handlers) SubmitIntakeForm(w http.ResponseWriter, r *http.Request) {
	form, ok := h.ownedIntakeForm(w, r)
	if !ok {
		return
	}

	if form.Status == domain.IntakeSubmitted {
		response.Conflict(w, "Intake form has already been submitted")
		return
	}

	var req submitIntakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Answers) == 0 {
		response.BadRequest(w, "answers are required")
		return
	}

	submitted, err := h.intake.Submit(r.Context(), form.ID, req.Answers)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to submit intake form", "error", err, "form_id", form.ID)
		response.InternalError(w, "Failed to submit intake form")
		return
	}

	if err := h.bus.Publish(r.Context(), events.IntakeSubmitted, events.IntakeSubmittedEvent{
		FormID:      submitted.ID,
		ClientID:    submitted.ClientID,
		FormType:    string(submitted.Type),
		SubmittedAt: time.Now(),
	}); err != nil {
		logger.ErrorContext(r.Context(), "Failed to publish intake submission", "error", err, "form_id", submitted.ID)
	}

	writeJSON(w, http.StatusOK, submitted)
}

func (h *Handlers) ownedIntakeForm(w http.ResponseWriter, r *http.Request) (*domain.IntakeForm, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "formID"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid intake form ID")
		return nil, false
	}

	form, err := h.intake.GetByID(r.Context(), id)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to load intake form", "error", err, "form_id", id)
		response.InternalError(w, "Failed to load intake form")
		return nil, false
	}
	if form == nil {
		response.NotFound(w, "Intake form not found")
		return nil, false
	}

	claims := middleware.Claims(r)
	if claims == nil || !form.BelongsTo(claims.Sub, claims.Email) {
		response.NotFound(w, "Intake form not found")
		return nil, false
	}

	return form, true
}
