package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/stillpoint/massage-bookings/internal/domain"
	"github.com/stillpoint/massage-bookings/internal/eligibility"
	"github.com/stillpoint/massage-bookings/pkg/logger"
)

// DraftStore persists drafts between wizard requests.
type DraftStore interface {
	Save(ctx context.Context, d *Draft) error
	Get(ctx context.Context, id string) (*Draft, error)
	Delete(ctx context.Context, id string) error
}

// IntakeFormStore is the wizard's view of intake persistence: open a
// draft form lazily, and load one back to verify ownership.
type IntakeFormStore interface {
	GetByID(ctx context.Context, id int64) (*domain.IntakeForm, error)
	CreateDraft(ctx context.Context, clientID int64, email string, typ domain.IntakeFormType) (*domain.IntakeForm, error)
}

// IntakeResolver is the slice of the eligibility resolver the wizard uses.
type IntakeResolver interface {
	ResolveIntakeRequirement(ctx context.Context, clientID int64, candidateDate time.Time) eligibility.IntakeRequirement
}

// PaymentIntents raises a Stripe payment intent for a pay-now draft.
type PaymentIntents interface {
	CreateIntent(ctx context.Context, draftID string, amountCents int64, description string) (intentID, clientSecret string, err error)
}

// Wizard is the top-level booking controller. It owns draft lifecycle,
// step navigation and the side effects that hang off particular steps;
// the transition rules themselves stay in the pure sequencer.
type Wizard struct {
	drafts       DraftStore
	intakeForms  IntakeFormStore
	resolver     IntakeResolver
	payments     PaymentIntents
	orchestrator *Orchestrator
}

func NewWizard(
	drafts DraftStore,
	intakeForms IntakeFormStore,
	resolver IntakeResolver,
	payments PaymentIntents,
	orchestrator *Orchestrator,
) *Wizard {
	return &Wizard{
		drafts:       drafts,
		intakeForms:  intakeForms,
		resolver:     resolver,
		payments:     payments,
		orchestrator: orchestrator,
	}
}

// Start opens a fresh draft. clientID is 0 for guests; rescheduleID links
// the prior appointment being replaced, when there is one.
func (w *Wizard) Start(ctx context.Context, clientID, rescheduleID int64) (*Draft, error) {
	d := NewDraft(rescheduleID)
	d.AttachIdentity(clientID)

	if err := w.drafts.Save(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to start booking draft: %w", err)
	}
	return d, nil
}

// Get loads a draft and re-checks the intake form reference against the
// draft's identity. A form that no longer belongs to this identity means
// the stored state is stale: the draft is reset, unless a reschedule is
// in flight, in which case only the form reference is dropped.
func (w *Wizard) Get(ctx context.Context, id string) (*Draft, error) {
	d, err := w.drafts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if d.IntakeFormID != 0 {
		form, ferr := w.intakeForms.GetByID(ctx, d.IntakeFormID)
		stale := ferr == nil && (form == nil || !w.formBelongsToDraft(form, d))
		if stale {
			logger.WarnContext(ctx, "Stale intake form on draft", "draft_id", d.ID, "form_id", d.IntakeFormID)
			if d.RescheduleID != 0 {
				d.ClearIntakeForm()
			} else {
				d.Reset()
			}
			if err := w.drafts.Save(ctx, d); err != nil {
				return nil, fmt.Errorf("failed to save draft: %w", err)
			}
		}
	}

	return d, nil
}

// ApplyStep merges a step's selections into the draft.
func (w *Wizard) ApplyStep(ctx context.Context, id string, p Patch) (*Draft, error) {
	d, err := w.drafts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Committed() {
		return nil, fmt.Errorf("booking is already confirmed")
	}

	d.Update(p)

	if err := w.drafts.Save(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}
	return d, nil
}

// Advance moves the wizard forward one step. Entering the intake step
// resolves eligibility and lazily opens the right form variant.
func (w *Wizard) Advance(ctx context.Context, id string, from Step) (Step, *Draft, error) {
	d, err := w.drafts.Get(ctx, id)
	if err != nil {
		return 0, nil, err
	}

	next := Next(from, d)
	if next == from {
		return from, d, nil
	}

	if next == StepIntakeForm {
		if err := w.ensureIntakeForm(ctx, d); err != nil {
			return from, d, err
		}
	}

	if err := w.drafts.Save(ctx, d); err != nil {
		return from, nil, fmt.Errorf("failed to save draft: %w", err)
	}
	return next, d, nil
}

// Back moves the wizard to the step that actually preceded the given one
// on this draft's path.
func (w *Wizard) Back(ctx context.Context, id string, from Step) (Step, *Draft, error) {
	d, err := w.drafts.Get(ctx, id)
	if err != nil {
		return 0, nil, err
	}
	return Prev(from, d), d, nil
}

// PreparePayment raises a payment intent for a pay-now draft. Calling it
// again with an intent already on the draft is a no-op, so a re-rendered
// payment screen does not double-charge.
func (w *Wizard) PreparePayment(ctx context.Context, id string) (*Draft, error) {
	d, err := w.drafts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanProceed(StepPayment, d) {
		return nil, fmt.Errorf("draft is not ready for payment")
	}
	if d.PaymentIntentID != "" {
		return d, nil
	}

	description := fmt.Sprintf("%s on %s", d.Service.Name, d.Date)
	intentID, clientSecret, err := w.payments.CreateIntent(ctx, d.ID, d.Service.PriceCents, description)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	d.PaymentIntentID = intentID
	d.PaymentClientSecret = clientSecret
	d.UpdatedAt = time.Now()

	if err := w.drafts.Save(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}
	return d, nil
}

// ConfirmPayment records the payment callback. The reported intent must
// be the one this draft raised.
func (w *Wizard) ConfirmPayment(ctx context.Context, id, intentID string) (*Draft, error) {
	d, err := w.drafts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if d.PaymentIntentID == "" || d.PaymentIntentID != intentID {
		return nil, fmt.Errorf("payment intent does not match this booking")
	}

	d.PaymentConfirmed = true
	d.UpdatedAt = time.Now()

	if err := w.drafts.Save(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}
	return d, nil
}

// Commit finalizes the draft through the orchestrator and persists the
// committed state.
func (w *Wizard) Commit(ctx context.Context, id string) (*CommitResult, error) {
	d, err := w.drafts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	res, err := w.orchestrator.Commit(ctx, d)
	if err != nil {
		return nil, err
	}

	if err := w.drafts.Save(ctx, d); err != nil {
		logger.ErrorContext(ctx, "Failed to save committed draft", "error", err, "draft_id", d.ID)
	}
	return res, nil
}

// ensureIntakeForm resolves the intake requirement for the draft and
// opens a form when one is owed. An existing reference that belongs to a
// different identity is discarded and recreated, never reused.
func (w *Wizard) ensureIntakeForm(ctx context.Context, d *Draft) error {
	candidate := time.Now()
	if d.Date != "" {
		if t, err := time.Parse("2006-01-02", d.Date); err == nil {
			candidate = t
		}
	}

	req := w.resolver.ResolveIntakeRequirement(ctx, d.ClientID, candidate)
	d.IntakeRequired = req.Required
	d.IntakeFormType = req.FormType

	if d.IntakeFormID != 0 {
		form, err := w.intakeForms.GetByID(ctx, d.IntakeFormID)
		if err != nil {
			return fmt.Errorf("failed to load intake form: %w", err)
		}
		if form == nil || !w.formBelongsToDraft(form, d) {
			logger.WarnContext(ctx, "Discarding intake form owned by another identity", "draft_id", d.ID, "form_id", d.IntakeFormID)
			d.ClearIntakeForm()
			d.IntakeRequired = req.Required
			d.IntakeFormType = req.FormType
		}
	}

	if req.Required && d.IntakeFormID == 0 {
		email := ""
		if d.ClientInfo != nil {
			email = d.ClientInfo.Email
		}
		form, err := w.intakeForms.CreateDraft(ctx, d.ClientID, email, req.FormType)
		if err != nil {
			return fmt.Errorf("failed to open intake form: %w", err)
		}
		d.IntakeFormID = form.ID
		d.UpdatedAt = time.Now()
	}

	return nil
}

func (w *Wizard) formBelongsToDraft(form *domain.IntakeForm, d *Draft) bool {
	email := ""
	if d.ClientInfo != nil {
		email = d.ClientInfo.Email
	}
	return form.BelongsTo(d.ClientID, email)
}
