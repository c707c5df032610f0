package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/stillpoint/massage-bookings/internal/account"
	"github.com/stillpoint/massage-bookings/internal/booking"
	"github.com/stillpoint/massage-bookings/internal/eligibility"
	"github.com/stillpoint/massage-bookings/internal/repo/postgres"
	"github.com/stillpoint/massage-bookings/pkg/config"
	"github.com/stillpoint/massage-bookings/pkg/events"
)

// Refunder is the slice of the payments client the handlers need.
type Refunder interface {
	Refund(ctx context.Context, paymentIntentID string) error
}

type Handlers struct {
	wizard       *booking.Wizard
	services     postgres.ServicesRepo
	appointments postgres.AppointmentsRepo
	clients      postgres.ClientsRepo
	intake       postgres.IntakeRepo
	resolver     *eligibility.Resolver
	accounts     *account.Service
	payments     Refunder
	bus          events.Publisher
	config       *config.Config
}

func New(
	wizard *booking.Wizard,
	services postgres.ServicesRepo,
	appointments postgres.AppointmentsRepo,
	clients postgres.ClientsRepo,
	intake postgres.IntakeRepo,
	resolver *eligibility.Resolver,
	accounts *account.Service,
	payments Refunder,
	bus events.Publisher,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		wizard:       wizard,
		services:     services,
		appointments: appointments,
		clients:      clients,
		intake:       intake,
		resolver:     resolver,
		accounts:     accounts,
		payments:     payments,
		bus:          bus,
		config:       cfg,
	}
}

// Helper functions for common response patterns
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// Helper to parse pagination parameters
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}
