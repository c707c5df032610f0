package handlers

import (
	"net/http"
	"time"

	"github.com/stillpoint/massage-bookings/internal/http/middleware"
	"github.com/stillpoint/massage-bookings/internal/http/response"
	"github.com/stillpoint/massage-bookings/pkg/logger"
)

// ListServices returns the bookable catalogue.
func (h *Handlers) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.services.List(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to list services", "error", err)
		response.InternalError(w, "Failed to list services")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

// IntakeEligibility reports whether the session holder owes an intake
// form for a candidate appointment date, and which variant.
func (h *Handlers) IntakeEligibility(w http.ResponseWriter, r *http.Request) {
	var clientID int64
	if claims := middleware.Claims(r); claims != nil {
		clientID = claims.Sub
	}

	candidate := time.Now()
	if s := r.URL.Query().Get("date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			response.BadRequest(w, "date must be YYYY-MM-DD")
			return
		}
		candidate = t
	}

	req := h.resolver.ResolveIntakeRequirement(r.Context(), clientID, candidate)
	writeJSON(w, http.StatusOK, req)
}

// ConsultationEligibility reports whether the session holder can still
// book the free consultation.
func (h *Handlers) ConsultationEligibility(w http.ResponseWriter, r *http.Request) {
	var clientID int64
	if claims := middleware.Claims(r); claims != nil {
		clientID = claims.Sub
	}

	elig := h.resolver.ResolveConsultationEligibility(r.Context(), clientID)
	writeJSON(w, http.StatusOK, elig)
}
