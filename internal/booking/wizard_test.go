package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stillpoint/massage-bookings/internal/domain"
	"github.com/stillpoint/massage-bookings/internal/eligibility"
)

type mockDraftStore struct {
	drafts map[string]*Draft
}

func newMockDraftStore() *mockDraftStore {
	return &mockDraftStore{drafts: make(map[string]*Draft)}
}

func (m *mockDraftStore) Save(_ context.Context, d *Draft) error {
	copied := *d
	m.drafts[d.ID] = &copied
	return nil
}

func (m *mockDraftStore) Get(_ context.Context, id string) (*Draft, error) {
	d, ok := m.drafts[id]
	if !ok {
		return nil, errors.New("booking draft not found or expired")
	}
	copied := *d
	return &copied, nil
}

func (m *mockDraftStore) Delete(_ context.Context, id string) error {
	delete(m.drafts, id)
	return nil
}

type mockIntakeFormStore struct {
	nextID int64
	forms  map[int64]*domain.IntakeForm
}

func newMockIntakeFormStore() *mockIntakeFormStore {
	return &mockIntakeFormStore{nextID: 1, forms: make(map[int64]*domain.IntakeForm)}
}

func (m *mockIntakeFormStore) GetByID(_ context.Context, id int64) (*domain.IntakeForm, error) {
	return m.forms[id], nil
}

func (m *mockIntakeFormStore) CreateDraft(_ context.Context, clientID int64, email string, typ domain.IntakeFormType) (*domain.IntakeForm, error) {
	m.nextID++
	form := &domain.IntakeForm{
		ID:          m.nextID,
		ClientID:    clientID,
		ClientEmail: email,
		Type:        typ,
		Status:      domain.IntakeDraft,
	}
	m.forms[form.ID] = form
	return form, nil
}

type mockIntakeResolver struct {
	requirement eligibility.IntakeRequirement
}

func (m *mockIntakeResolver) ResolveIntakeRequirement(_ context.Context, _ int64, _ time.Time) eligibility.IntakeRequirement {
	return m.requirement
}

type mockPaymentIntents struct {
	calls int
	err   error
}

func (m *mockPaymentIntents) CreateIntent(_ context.Context, draftID string, _ int64, _ string) (string, string, error) {
	m.calls++
	if m.err != nil {
		return "", "", m.err
	}
	return "pi_" + draftID[:4], "secret_" + draftID[:4], nil
}

type wizardFixture struct {
	drafts   *mockDraftStore
	forms    *mockIntakeFormStore
	resolver *mockIntakeResolver
	payments *mockPaymentIntents
	commit   *commitFixture
	wizard   *Wizard
}

func newWizardFixture() *wizardFixture {
	f := &wizardFixture{
		drafts:   newMockDraftStore(),
		forms:    newMockIntakeFormStore(),
		resolver: &mockIntakeResolver{requirement: eligibility.IntakeRequirement{Required: true, FormType: domain.IntakeNewClient}},
		payments: &mockPaymentIntents{},
		commit:   newCommitFixture(),
	}
	f.wizard = NewWizard(f.drafts, f.forms, f.resolver, f.payments, f.commit.orchestrator)
	return f
}

func (f *wizardFixture) startWith(t *testing.T, build func() *Draft) *Draft {
	t.Helper()
	d := build()
	require.NoError(t, f.drafts.Save(context.Background(), d))
	return d
}

func TestAdvanceOpensIntakeFormLazily(t *testing.T) {
	f := newWizardFixture()
	d := f.startWith(t, func() *Draft { return withClientInfo(withSchedule(massageDraft())) })

	next, got, err := f.wizard.Advance(context.Background(), d.ID, StepClientInfo)
	require.NoError(t, err)

	assert.Equal(t, StepIntakeForm, next)
	assert.True(t, got.IntakeRequired)
	assert.Equal(t, domain.IntakeNewClient, got.IntakeFormType)
	assert.NotZero(t, got.IntakeFormID)

	form := f.forms.forms[got.IntakeFormID]
	require.NotNil(t, form)
	assert.Equal(t, "maya@example.com", form.ClientEmail)
}

func TestAdvanceSkipsFormWhenIntakeNotRequired(t *testing.T) {
	f := newWizardFixture()
	f.resolver.requirement = eligibility.IntakeRequirement{Required: false}
	d := f.startWith(t, func() *Draft { return withClientInfo(withSchedule(massageDraft())) })

	next, got, err := f.wizard.Advance(context.Background(), d.ID, StepClientInfo)
	require.NoError(t, err)

	assert.Equal(t, StepIntakeForm, next)
	assert.False(t, got.IntakeRequired)
	assert.Zero(t, got.IntakeFormID)
}

func TestAdvanceDiscardsFormOwnedByAnotherIdentity(t *testing.T) {
	f := newWizardFixture()

	// A form opened by a different client sits on the draft.
	other := &domain.IntakeForm{ID: 50, ClientID: 99, ClientEmail: "other@example.com", Type: domain.IntakeNewClient}
	f.forms.forms[50] = other

	d := f.startWith(t, func() *Draft {
		d := withClientInfo(withSchedule(massageDraft()))
		d.IntakeFormID = 50
		return d
	})

	_, got, err := f.wizard.Advance(context.Background(), d.ID, StepClientInfo)
	require.NoError(t, err)

	assert.NotEqual(t, int64(50), got.IntakeFormID, "a foreign form must never be reused")
	assert.NotZero(t, got.IntakeFormID, "a fresh form must be opened in its place")
}

func TestAdvanceStaysPutWhenGuardRefuses(t *testing.T) {
	f := newWizardFixture()
	d := f.startWith(t, func() *Draft { return NewDraft(0) })

	next, _, err := f.wizard.Advance(context.Background(), d.ID, StepService)
	require.NoError(t, err)
	assert.Equal(t, StepService, next)
}

func TestGetResetsStaleDraft(t *testing.T) {
	f := newWizardFixture()
	f.forms.forms[60] = &domain.IntakeForm{ID: 60, ClientID: 7, ClientEmail: "someone@example.com"}

	d := f.startWith(t, func() *Draft {
		d := withClientInfo(withSchedule(massageDraft()))
		d.IntakeFormID = 60 // belongs to client 7; draft is a guest
		return d
	})

	got, err := f.wizard.Get(context.Background(), d.ID)
	require.NoError(t, err)

	assert.Nil(t, got.Service, "a stale guest draft is reset wholesale")
	assert.Zero(t, got.IntakeFormID)
}

func TestGetKeepsRescheduleOnStaleDraft(t *testing.T) {
	f := newWizardFixture()
	f.forms.forms[60] = &domain.IntakeForm{ID: 60, ClientID: 7, ClientEmail: "someone@example.com"}

	d := f.startWith(t, func() *Draft {
		d := withClientInfo(withSchedule(massageDraft()))
		d.RescheduleID = 12
		d.IntakeFormID = 60
		return d
	})

	got, err := f.wizard.Get(context.Background(), d.ID)
	require.NoError(t, err)

	assert.NotNil(t, got.Service, "a reschedule in flight only drops the form reference")
	assert.Zero(t, got.IntakeFormID)
	assert.Equal(t, int64(12), got.RescheduleID)
}

func TestPreparePaymentIsIdempotent(t *testing.T) {
	f := newWizardFixture()
	d := f.startWith(t, func() *Draft {
		d := withClientInfo(withSchedule(massageDraft()))
		d.IntakeRequired = false
		pref := domain.PayNow
		d.Update(Patch{PaymentPreference: &pref})
		return d
	})

	first, err := f.wizard.PreparePayment(context.Background(), d.ID)
	require.NoError(t, err)
	require.NotEmpty(t, first.PaymentIntentID)

	second, err := f.wizard.PreparePayment(context.Background(), d.ID)
	require.NoError(t, err)

	assert.Equal(t, first.PaymentIntentID, second.PaymentIntentID)
	assert.Equal(t, 1, f.payments.calls, "a re-rendered payment screen must not raise a second intent")
}

func TestPreparePaymentRejectsNonPayNowDraft(t *testing.T) {
	f := newWizardFixture()
	d := f.startWith(t, func() *Draft {
		d := withClientInfo(withSchedule(massageDraft()))
		d.IntakeRequired = false
		pref := domain.PayCash
		d.Update(Patch{PaymentPreference: &pref})
		return d
	})

	_, err := f.wizard.PreparePayment(context.Background(), d.ID)
	assert.Error(t, err)
	assert.Zero(t, f.payments.calls)
}

func TestConfirmPaymentRequiresMatchingIntent(t *testing.T) {
	f := newWizardFixture()
	d := f.startWith(t, func() *Draft {
		d := withClientInfo(withSchedule(massageDraft()))
		d.IntakeRequired = false
		pref := domain.PayNow
		d.Update(Patch{PaymentPreference: &pref})
		d.PaymentIntentID = "pi_right"
		return d
	})

	_, err := f.wizard.ConfirmPayment(context.Background(), d.ID, "pi_wrong")
	assert.Error(t, err)

	got, err := f.wizard.ConfirmPayment(context.Background(), d.ID, "pi_right")
	require.NoError(t, err)
	assert.True(t, got.PaymentConfirmed)
}

func TestApplyStepRejectsCommittedDraft(t *testing.T) {
	f := newWizardFixture()
	d := f.startWith(t, func() *Draft {
		d := withClientInfo(withSchedule(massageDraft()))
		d.AppointmentID = 900
		return d
	})

	_, err := f.wizard.ApplyStep(context.Background(), d.ID, Patch{})
	assert.Error(t, err)
}

func TestWizardCommitPersistsCommittedDraft(t *testing.T) {
	f := newWizardFixture()
	d := f.startWith(t, func() *Draft { return readyMassageDraft() })

	res, err := f.wizard.Commit(context.Background(), d.ID)
	require.NoError(t, err)

	stored, err := f.drafts.Get(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, res.AppointmentID, stored.AppointmentID)
	assert.Equal(t, res.ConfirmationNumber, stored.ConfirmationNumber)
}
