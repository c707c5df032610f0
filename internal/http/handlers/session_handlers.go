package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/stillpoint/massage-bookings/internal/account"
	"github.com/stillpoint/massage-bookings/internal/http/response"
	"github.com/stillpoint/massage-bookings/internal/utils"
	"github.com/stillpoint/massage-bookings/pkg/auth"
	"github.com/stillpoint/massage-bookings/pkg/logger"
)

type guestSessionRequest struct {
	Email string `json:"email"`
}

// GuestSession issues a short-lived token tied to an email address, so
// guests can view and manage the bookings made under it.
func (h *Handlers) GuestSession(w http.ResponseWriter, r *http.Request) {
	var req guestSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	email := utils.NormalizeEmail(req.Email)
	if !utils.IsValidEmail(email) {
		response.BadRequest(w, "A valid email address is required")
		return
	}

	token, err := auth.NewGuestSession(email, h.config.Auth.JWTSecret, h.config.Auth.GuestSessionTTL)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to issue guest session", "error", err)
		response.InternalError(w, "Failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"session_token": token,
		"expires_in":    int(h.config.Auth.GuestSessionTTL.Seconds()),
	})
}

// CreateAccount upgrades a guest profile to a full account by setting a
// password on it.
func (h *Handlers) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req account.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	session, err := h.accounts.CreateFromBooking(r.Context(), &req)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// Login exchanges credentials for a client session.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req account.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	session, err := h.accounts.Login(r.Context(), &req)
	if err != nil {
		response.Unauthorized(w, "Invalid email or password")
		return
	}

	writeJSON(w, http.StatusOK, session)
}
