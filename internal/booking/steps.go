package booking

import "github.com/stillpoint/massage-bookings/internal/domain"

// Step identifies a wizard screen. The raw values are stable across
// drafts; display numbering is computed per draft in Progress, since
// conditional steps drop out of the path.
type Step int

const (
	StepService Step = iota + 1
	StepConsultationType
	StepDateTime
	StepClientInfo
	StepIntakeForm
	StepPaymentPreference
	StepPayment
	StepConfirmation
)

var stepNames = map[Step]string{
	StepService:           "service",
	StepConsultationType:  "consultation_type",
	StepDateTime:          "date_time",
	StepClientInfo:        "client_info",
	StepIntakeForm:        "intake_form",
	StepPaymentPreference: "payment_preference",
	StepPayment:           "payment",
	StepConfirmation:      "confirmation",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "unknown"
}

func ParseStep(s string) (Step, bool) {
	for step, name := range stepNames {
		if name == s {
			return step, true
		}
	}
	return 0, false
}

// transition is one edge of the wizard graph. The first edge whose guard
// accepts the draft wins, so ordering within a step matters: specific
// guards come before the catch-all.
type transition struct {
	from  Step
	to    Step
	guard func(d *Draft) bool
}

func always(*Draft) bool { return true }

// transitions is the declarative form of the step-sequencing rules.
// Consultations skip the payment steps entirely; massage services skip
// the consultation-type step; the payment step only exists for pay-now.
var transitions = []transition{
	{StepService, StepConsultationType, func(d *Draft) bool { return d.IsConsultation }},
	{StepService, StepDateTime, always},

	{StepConsultationType, StepDateTime, always},
	{StepDateTime, StepClientInfo, always},
	{StepClientInfo, StepIntakeForm, always},

	{StepIntakeForm, StepConfirmation, func(d *Draft) bool { return d.IsConsultation }},
	{StepIntakeForm, StepPaymentPreference, always},

	{StepPaymentPreference, StepPayment, func(d *Draft) bool { return d.PaymentPreference == domain.PayNow }},
	{StepPaymentPreference, StepConfirmation, always},

	{StepPayment, StepConfirmation, always},
}

// forward resolves the raw successor of a step for this draft, ignoring
// prerequisite data checks.
func forward(step Step, d *Draft) (Step, bool) {
	for _, t := range transitions {
		if t.from == step && t.guard(d) {
			return t.to, true
		}
	}
	return step, false
}

// Next returns the step that follows the given one for this draft. When
// the successor's prerequisites are not met the call is a no-op and the
// current step is returned unchanged.
func Next(step Step, d *Draft) Step {
	to, ok := forward(step, d)
	if !ok {
		return step
	}
	if !CanProceed(to, d) {
		return step
	}
	return to
}

// Prev mirrors the forward edge that was actually taken: the predecessor
// of a step is whichever step forwards to it under this draft's guards.
func Prev(step Step, d *Draft) Step {
	for from := StepService; from < step; from++ {
		if to, ok := forward(from, d); ok && to == step {
			return from
		}
	}
	return step
}

// CanProceed reports whether the draft carries the data the target step
// requires. Jumping ahead without it is rejected.
func CanProceed(target Step, d *Draft) bool {
	switch target {
	case StepService:
		return true
	case StepConsultationType:
		return d.hasService() && d.IsConsultation
	case StepDateTime:
		if !d.hasService() {
			return false
		}
		if d.IsConsultation {
			return d.ConsultationType != ""
		}
		return true
	case StepClientInfo:
		return d.hasService() && d.hasSchedule()
	case StepIntakeForm:
		return d.hasValidClientInfo()
	case StepPaymentPreference:
		return !d.IsConsultation && d.hasValidClientInfo() && d.intakeResolved()
	case StepPayment:
		// Entering payment needs everything an appointment would need,
		// since the intent is raised against the draft's full price.
		return d.PaymentPreference == domain.PayNow &&
			d.hasService() && d.hasSchedule() && d.hasValidClientInfo()
	case StepConfirmation:
		if d.Committed() {
			return true
		}
		return d.ReadyToCommit()
	default:
		return false
	}
}

// path walks the wizard from the first step under this draft's guards.
// The walk depends only on the service kind and payment preference, so it
// is stable for a given draft shape.
func path(d *Draft) []Step {
	steps := []Step{StepService}
	cur := StepService
	for cur != StepConfirmation {
		to, ok := forward(cur, d)
		if !ok {
			break
		}
		steps = append(steps, to)
		cur = to
	}
	return steps
}

// Progress reports the display position of a step as "current of total",
// renumbered over the path this draft actually takes. Skipped steps never
// count. For consultations the confirmation screen shares the final slot
// with the intake form, so a consultation shows five steps in total.
func Progress(step Step, d *Draft) (current, total int) {
	p := path(d)

	total = len(p)
	if d.IsConsultation {
		total--
	}

	for i, s := range p {
		if s == step {
			current = i + 1
			break
		}
	}
	if current == 0 {
		return 0, total
	}
	if d.IsConsultation && current > total {
		current = total
	}
	return current, total
}
