package eligibility

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stillpoint/massage-bookings/internal/domain"
)

type mockIntakeLookup struct {
	form *domain.IntakeForm
	err  error
}

func (m *mockIntakeLookup) LatestSubmitted(context.Context, int64) (*domain.IntakeForm, error) {
	return m.form, m.err
}

type mockProfileLookup struct {
	client *domain.Client
	err    error
}

func (m *mockProfileLookup) FindByID(context.Context, int64) (*domain.Client, error) {
	return m.client, m.err
}

const (
	fullWindow  = 90 * 24 * time.Hour
	quickWindow = 30 * 24 * time.Hour
)

func submittedForm(age time.Duration, asOf time.Time) *domain.IntakeForm {
	at := asOf.Add(-age)
	return &domain.IntakeForm{ID: 1, ClientID: 5, Status: domain.IntakeSubmitted, SubmittedAt: &at}
}

func TestResolveIntakeRequirement(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		clientID     int64
		form         *domain.IntakeForm
		lookupErr    error
		wantRequired bool
		wantType     domain.IntakeFormType
	}{
		{
			name:         "guest always fills the new client form",
			clientID:     0,
			wantRequired: true,
			wantType:     domain.IntakeNewClient,
		},
		{
			name:         "no prior form means new client form",
			clientID:     5,
			form:         nil,
			wantRequired: true,
			wantType:     domain.IntakeNewClient,
		},
		{
			name:         "fresh form within quick window requires nothing",
			clientID:     5,
			form:         submittedForm(24*time.Hour, now),
			wantRequired: false,
		},
		{
			name:         "form at the quick window boundary still counts as fresh",
			clientID:     5,
			form:         submittedForm(quickWindow, now),
			wantRequired: false,
		},
		{
			name:         "form older than quick window wants a quick update",
			clientID:     5,
			form:         submittedForm(45*24*time.Hour, now),
			wantRequired: true,
			wantType:     domain.IntakeQuickUpdate,
		},
		{
			name:         "form older than full window wants the full returning form",
			clientID:     5,
			form:         submittedForm(120*24*time.Hour, now),
			wantRequired: true,
			wantType:     domain.IntakeReturningClient,
		},
		{
			name:         "lookup failure fails safe to the full new client form",
			clientID:     5,
			lookupErr:    errors.New("db down"),
			wantRequired: true,
			wantType:     domain.IntakeNewClient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(
				&mockIntakeLookup{form: tt.form, err: tt.lookupErr},
				&mockProfileLookup{},
				fullWindow, quickWindow,
			)

			req := r.ResolveIntakeRequirement(context.Background(), tt.clientID, now)

			assert.Equal(t, tt.wantRequired, req.Required)
			if tt.wantRequired {
				assert.Equal(t, tt.wantType, req.FormType)
			}
		})
	}
}

func TestResolveIntakeRequirementUsesCandidateDate(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	// 20 days old today, but 40 days old by the candidate appointment.
	r := NewResolver(
		&mockIntakeLookup{form: submittedForm(20*24*time.Hour, now)},
		&mockProfileLookup{},
		fullWindow, quickWindow,
	)

	req := r.ResolveIntakeRequirement(context.Background(), 5, now)
	assert.False(t, req.Required)

	req = r.ResolveIntakeRequirement(context.Background(), 5, now.Add(20*24*time.Hour))
	assert.True(t, req.Required)
	assert.Equal(t, domain.IntakeQuickUpdate, req.FormType)
}

func TestResolveConsultationEligibility(t *testing.T) {
	tests := []struct {
		name     string
		clientID int64
		client   *domain.Client
		err      error
		want     bool
	}{
		{
			name:     "guest with no profile is eligible",
			clientID: 0,
			want:     true,
		},
		{
			name:     "new client is eligible",
			clientID: 5,
			client:   &domain.Client{ID: 5},
			want:     true,
		},
		{
			name:     "flag consumed means ineligible",
			clientID: 5,
			client:   &domain.Client{ID: 5, HasHadFreeConsultation: true},
			want:     false,
		},
		{
			name:     "prior consultation count means ineligible",
			clientID: 5,
			client:   &domain.Client{ID: 5, ConsultationCount: 1},
			want:     false,
		},
		{
			name:     "lookup failure fails open",
			clientID: 5,
			err:      errors.New("db down"),
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(
				&mockIntakeLookup{},
				&mockProfileLookup{client: tt.client, err: tt.err},
				fullWindow, quickWindow,
			)

			elig := r.ResolveConsultationEligibility(context.Background(), tt.clientID)
			assert.Equal(t, tt.want, elig.IsEligible)
		})
	}
}
