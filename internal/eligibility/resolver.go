// Package eligibility decides whether a client owes an intake form before
// an appointment, which variant of the form applies, and whether the
// one-time free consultation is still on offer. All decisions are reads;
// nothing here mutates client state.
package eligibility

import (
	"context"
	"time"

	"github.com/stillpoint/massage-bookings/internal/domain"
	"github.com/stillpoint/massage-bookings/pkg/logger"
)

type IntakeLookup interface {
	LatestSubmitted(ctx context.Context, clientID int64) (*domain.IntakeForm, error)
}

type ProfileLookup interface {
	FindByID(ctx context.Context, id int64) (*domain.Client, error)
}

type IntakeRequirement struct {
	Required     bool                  `json:"required"`
	FormType     domain.IntakeFormType `json:"form_type"`
	LastFormDate *time.Time            `json:"last_form_date,omitempty"`
}

type ConsultationEligibility struct {
	IsEligible bool `json:"is_eligible"`
}

type Resolver struct {
	intake   IntakeLookup
	profiles ProfileLookup

	// The freshness windows are practice policy, injected from config.
	// Older than fullRefreshWindow: a returning client fills the full
	// form again. Older than quickUpdateWindow but within the full
	// window: a lighter quick-update form suffices.
	fullRefreshWindow time.Duration
	quickUpdateWindow time.Duration
}

func NewResolver(intake IntakeLookup, profiles ProfileLookup, fullRefreshWindow, quickUpdateWindow time.Duration) *Resolver {
	return &Resolver{
		intake:            intake,
		profiles:          profiles,
		fullRefreshWindow: fullRefreshWindow,
		quickUpdateWindow: quickUpdateWindow,
	}
}

// ResolveIntakeRequirement decides the intake obligation for a client and
// candidate appointment date. Lookup failures fail safe: we would rather
// collect a fresh full form than treat an unknown history as current.
func (r *Resolver) ResolveIntakeRequirement(ctx context.Context, clientID int64, candidateDate time.Time) IntakeRequirement {
	if clientID == 0 {
		// Guests have no history; always a new-client form.
		return IntakeRequirement{Required: true, FormType: domain.IntakeNewClient}
	}

	latest, err := r.intake.LatestSubmitted(ctx, clientID)
	if err != nil {
		logger.WarnContext(ctx, "Intake history lookup failed, requiring full form", "error", err, "client_id", clientID)
		return IntakeRequirement{Required: true, FormType: domain.IntakeNewClient}
	}
	if latest == nil || latest.SubmittedAt == nil {
		return IntakeRequirement{Required: true, FormType: domain.IntakeNewClient}
	}

	submitted := *latest.SubmittedAt
	age := candidateDate.Sub(submitted)

	req := IntakeRequirement{LastFormDate: &submitted}
	switch {
	case age > r.fullRefreshWindow:
		req.Required = true
		req.FormType = domain.IntakeReturningClient
	case age > r.quickUpdateWindow:
		req.Required = true
		req.FormType = domain.IntakeQuickUpdate
	default:
		req.Required = false
	}
	return req
}

// ResolveConsultationEligibility reports whether the client can still book
// the one-time free consultation. The flag is flipped elsewhere, when a
// consultation completes; this is a read.
func (r *Resolver) ResolveConsultationEligibility(ctx context.Context, clientID int64) ConsultationEligibility {
	if clientID == 0 {
		// No profile yet: the offer stands.
		return ConsultationEligibility{IsEligible: true}
	}

	profile, err := r.profiles.FindByID(ctx, clientID)
	if err != nil {
		logger.WarnContext(ctx, "Profile lookup failed, assuming consultation available", "error", err, "client_id", clientID)
		return ConsultationEligibility{IsEligible: true}
	}
	if profile == nil {
		return ConsultationEligibility{IsEligible: true}
	}

	eligible := !profile.HasHadFreeConsultation && profile.ConsultationCount == 0
	return ConsultationEligibility{IsEligible: eligible}
}
