package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stillpoint/massage-bookings/internal/account"
	"github.com/stillpoint/massage-bookings/internal/booking"
	"github.com/stillpoint/massage-bookings/internal/booking/draftstore"
	"github.com/stillpoint/massage-bookings/internal/domain"
	"github.com/stillpoint/massage-bookings/internal/eligibility"
	"github.com/stillpoint/massage-bookings/internal/http/handlers"
	httpmw "github.com/stillpoint/massage-bookings/internal/http/middleware"
	"github.com/stillpoint/massage-bookings/pkg/config"
)

// ---------- Mocks ----------

type mockServicesRepo struct {
	services map[int64]*domain.Service
}

func (m *mockServicesRepo) List(context.Context) ([]domain.Service, error) {
	var out []domain.Service
	for _, s := range m.services {
		out = append(out, *s)
	}
	return out, nil
}

func (m *mockServicesRepo) GetByID(_ context.Context, id int64) (*domain.Service, error) {
	return m.services[id], nil
}

type mockAppointmentsRepo struct {
	nextID       int64
	appointments map[int64]*domain.Appointment
}

func newMockAppointmentsRepo() *mockAppointmentsRepo {
	return &mockAppointmentsRepo{nextID: 500, appointments: make(map[int64]*domain.Appointment)}
}

func (m *mockAppointmentsRepo) Create(_ context.Context, in *domain.AppointmentInput) (*domain.Appointment, error) {
	m.nextID++
	appt := &domain.Appointment{
		ID:                 m.nextID,
		ClientID:           in.ClientID,
		ServiceID:          in.ServiceID,
		Status:             domain.AppointmentConfirmed,
		Date:               in.Date,
		StartsAt:           in.StartsAt,
		EndsAt:             in.EndsAt,
		PriceCents:         in.PriceCents,
		PaymentStatus:      in.PaymentStatus,
		ConfirmationNumber: in.ConfirmationNumber,
	}
	m.appointments[appt.ID] = appt
	return appt, nil
}

func (m *mockAppointmentsRepo) CreateConsultation(_ context.Context, appointmentID int64, typ domain.ConsultationType) (*domain.Consultation, error) {
	return &domain.Consultation{ID: appointmentID + 1, AppointmentID: appointmentID, Type: typ}, nil
}

func (m *mockAppointmentsRepo) SetConsultationRoom(context.Context, int64, string) error { return nil }

func (m *mockAppointmentsRepo) GetByID(_ context.Context, id int64) (*domain.Appointment, error) {
	return m.appointments[id], nil
}

func (m *mockAppointmentsRepo) GetConsultationByAppointment(context.Context, int64) (*domain.Consultation, error) {
	return nil, nil
}

func (m *mockAppointmentsRepo) ListByClient(_ context.Context, clientID int64, _, _ int, _ *domain.AppointmentStatus) ([]domain.Appointment, error) {
	var out []domain.Appointment
	for _, a := range m.appointments {
		if a.ClientID == clientID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockAppointmentsRepo) ListByEmail(context.Context, string, int, int) ([]domain.Appointment, error) {
	return nil, nil
}

func (m *mockAppointmentsRepo) Cancel(_ context.Context, id int64) (bool, error) {
	a, ok := m.appointments[id]
	if !ok || a.Status == domain.AppointmentCanceled {
		return false, nil
	}
	a.Status = domain.AppointmentCanceled
	return true, nil
}

func (m *mockAppointmentsRepo) AttachPaymentIntent(_ context.Context, id int64, intentID string) error {
	if a, ok := m.appointments[id]; ok {
		a.PaymentIntentID = intentID
	}
	return nil
}

func (m *mockAppointmentsRepo) SetPaymentStatus(_ context.Context, id int64, status domain.PaymentStatus) error {
	if a, ok := m.appointments[id]; ok {
		a.PaymentStatus = status
	}
	return nil
}

func (m *mockAppointmentsRepo) CompleteConsultation(context.Context, int64) (int64, error) {
	return 0, nil
}

type mockClientsRepo struct {
	nextID  int64
	clients map[int64]*domain.Client
	hashes  map[int64]string
}

func newMockClientsRepo() *mockClientsRepo {
	return &mockClientsRepo{nextID: 10, clients: make(map[int64]*domain.Client), hashes: make(map[int64]string)}
}

func (m *mockClientsRepo) FindByID(_ context.Context, id int64) (*domain.Client, error) {
	return m.clients[id], nil
}

func (m *mockClientsRepo) FindByEmail(_ context.Context, email string) (*domain.Client, error) {
	for _, c := range m.clients {
		if c.Email == email {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockClientsRepo) CreateGuest(_ context.Context, in domain.GuestProfileInput) (int64, error) {
	m.nextID++
	m.clients[m.nextID] = &domain.Client{ID: m.nextID, FirstName: in.FirstName, LastName: in.LastName, Email: in.Email, Phone: in.Phone}
	return m.nextID, nil
}

func (m *mockClientsRepo) MarkConsultationConsumed(_ context.Context, clientID int64) error {
	if c, ok := m.clients[clientID]; ok {
		c.HasHadFreeConsultation = true
	}
	return nil
}

func (m *mockClientsRepo) SetCredentials(_ context.Context, clientID int64, hash string) error {
	m.hashes[clientID] = hash
	return nil
}

func (m *mockClientsRepo) CredentialsByEmail(ctx context.Context, email string) (int64, string, error) {
	c, _ := m.FindByEmail(ctx, email)
	if c == nil {
		return 0, "", nil
	}
	return c.ID, m.hashes[c.ID], nil
}

type mockIntakeRepo struct {
	nextID int64
	forms  map[int64]*domain.IntakeForm
}

func newMockIntakeRepo() *mockIntakeRepo {
	return &mockIntakeRepo{nextID: 1, forms: make(map[int64]*domain.IntakeForm)}
}

func (m *mockIntakeRepo) GetByID(_ context.Context, id int64) (*domain.IntakeForm, error) {
	return m.forms[id], nil
}

func (m *mockIntakeRepo) LatestSubmitted(context.Context, int64) (*domain.IntakeForm, error) {
	return nil, nil
}

func (m *mockIntakeRepo) CreateDraft(_ context.Context, clientID int64, email string, typ domain.IntakeFormType) (*domain.IntakeForm, error) {
	m.nextID++
	form := &domain.IntakeForm{ID: m.nextID, ClientID: clientID, ClientEmail: email, Type: typ, Status: domain.IntakeDraft}
	m.forms[form.ID] = form
	return form, nil
}

func (m *mockIntakeRepo) Submit(_ context.Context, id int64, answers map[string]any) (*domain.IntakeForm, error) {
	form := m.forms[id]
	now := time.Now()
	form.Status = domain.IntakeSubmitted
	form.Answers = answers
	form.SubmittedAt = &now
	return form, nil
}

func (m *mockIntakeRepo) AttachAppointment(_ context.Context, formID, appointmentID int64) error {
	if f, ok := m.forms[formID]; ok {
		f.AppointmentID = &appointmentID
	}
	return nil
}

type mockPayments struct{}

func (m *mockPayments) CreateIntent(_ context.Context, draftID string, _ int64, _ string) (string, string, error) {
	return "pi_" + draftID[:6], "secret_test", nil
}

func (m *mockPayments) Refund(context.Context, string) error { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, interface{}) error { return nil }
func (nopPublisher) Close() error                                       { return nil }

type nopRooms struct{}

func (nopRooms) CreateRoom(context.Context, int64, []string) (string, error) {
	return "https://rooms.example/consult-test", nil
}

type memIdempotency struct {
	records map[string]int64
}

func (m *memIdempotency) CheckOrCreate(_ context.Context, draftID string, appointmentID int64) (int64, error) {
	if m.records == nil {
		m.records = make(map[string]int64)
	}
	if existing, ok := m.records[draftID]; ok {
		return existing, nil
	}
	if appointmentID != 0 {
		m.records[draftID] = appointmentID
	}
	return 0, nil
}

// ---------- Harness ----------

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.GuestSessionTTL = 30 * time.Minute
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Booking.IntakeFullRefreshWindow = 90 * 24 * time.Hour
	cfg.Booking.IntakeQuickUpdateWindow = 30 * 24 * time.Hour

	servicesRepo := &mockServicesRepo{services: map[int64]*domain.Service{
		1: {ID: 1, Name: "Deep Tissue 60", PriceCents: 12000, Active: true},
		9: {ID: 9, Name: "Free Consultation", IsConsultation: true, Active: true},
	}}
	appointmentsRepo := newMockAppointmentsRepo()
	clientsRepo := newMockClientsRepo()
	intakeRepo := newMockIntakeRepo()
	payments := &mockPayments{}

	resolver := eligibility.NewResolver(intakeRepo, clientsRepo,
		cfg.Booking.IntakeFullRefreshWindow, cfg.Booking.IntakeQuickUpdateWindow)
	orchestrator := booking.NewOrchestrator(appointmentsRepo, clientsRepo, intakeRepo,
		&memIdempotency{}, nopRooms{}, nopPublisher{})
	wizard := booking.NewWizard(draftstore.NewMemoryStore(45*time.Minute), intakeRepo, resolver, payments, orchestrator)
	accounts := account.NewService(clientsRepo, cfg)

	h := handlers.New(wizard, servicesRepo, appointmentsRepo, clientsRepo, intakeRepo,
		resolver, accounts, payments, nopPublisher{}, cfg)

	r := chi.NewRouter()
	r.Route("/bookings/drafts", func(r chi.Router) {
		r.Use(httpmw.OptionalSession(cfg.Auth.JWTSecret))
		r.Post("/", h.StartDraft)
		r.Route("/{draftID}", func(r chi.Router) {
			r.Get("/", h.GetDraft)
			r.Patch("/", h.PatchDraft)
			r.Post("/next", h.Advance)
			r.Post("/prev", h.Back)
			r.Post("/payment-intent", h.PreparePayment)
			r.Post("/payment-confirmation", h.ConfirmPayment)
			r.Post("/commit", h.Commit)
		})
	})
	r.Get("/services", h.ListServices)
	return r
}

type draftResponse struct {
	Draft struct {
		ID              string `json:"id"`
		IsConsultation  bool   `json:"is_consultation"`
		IntakeRequired  bool   `json:"intake_required"`
		IntakeFormID    int64  `json:"intake_form_id"`
		PaymentIntentID string `json:"payment_intent_id"`
	} `json:"draft"`
	Step    string `json:"step"`
	Current int    `json:"current_step"`
	Total   int    `json:"total_steps"`
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

// ---------- Tests ----------

func TestWizardFullGuestFlow(t *testing.T) {
	router := newTestRouter(t)

	// Start a draft.
	rec := do(t, router, http.MethodPost, "/bookings/drafts", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start draft: got %d, want 201: %s", rec.Code, rec.Body)
	}
	start := decode[draftResponse](t, rec)
	if start.Draft.ID == "" {
		t.Fatal("start draft: missing draft ID")
	}
	base := "/bookings/drafts/" + start.Draft.ID

	// Step 1: pick a massage.
	rec = do(t, router, http.MethodPatch, base, map[string]any{"service_id": 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch service: got %d: %s", rec.Code, rec.Body)
	}

	// Advance past scheduling and client info.
	rec = do(t, router, http.MethodPatch, base, map[string]any{
		"date": "2026-09-14",
		"slot": map[string]string{"start": "2026-09-14T10:00:00Z", "end": "2026-09-14T11:00:00Z"},
		"client_info": map[string]string{
			"first_name": "Maya", "last_name": "Chen",
			"email": "maya@example.com", "phone": "+15551234567",
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch details: got %d: %s", rec.Code, rec.Body)
	}

	// Entering the intake step opens a new-client form for a guest.
	rec = do(t, router, http.MethodPost, base+"/next", map[string]string{"from": "client_info"})
	if rec.Code != http.StatusOK {
		t.Fatalf("advance to intake: got %d: %s", rec.Code, rec.Body)
	}
	intake := decode[draftResponse](t, rec)
	if intake.Step != "intake_form" {
		t.Fatalf("advance to intake: landed on %q", intake.Step)
	}
	if !intake.Draft.IntakeRequired || intake.Draft.IntakeFormID == 0 {
		t.Fatalf("guest draft should have an intake form opened: %+v", intake.Draft)
	}

	// Choose to pay in cash and commit.
	rec = do(t, router, http.MethodPatch, base, map[string]any{"payment_preference": "pay_cash"})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch payment preference: got %d: %s", rec.Code, rec.Body)
	}

	rec = do(t, router, http.MethodPost, base+"/commit", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("commit: got %d: %s", rec.Code, rec.Body)
	}
	res := decode[booking.CommitResult](t, rec)
	if res.AppointmentID == 0 || res.ConfirmationNumber == "" {
		t.Fatalf("commit: incomplete result %+v", res)
	}

	// Committing again returns the same confirmation.
	rec = do(t, router, http.MethodPost, base+"/commit", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("re-commit: got %d: %s", rec.Code, rec.Body)
	}
	again := decode[booking.CommitResult](t, rec)
	if again.AppointmentID != res.AppointmentID {
		t.Fatalf("re-commit created a second appointment: %d vs %d", again.AppointmentID, res.AppointmentID)
	}
}

func TestWizardPayNowFlow(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/bookings/drafts", nil)
	start := decode[draftResponse](t, rec)
	base := "/bookings/drafts/" + start.Draft.ID

	do(t, router, http.MethodPatch, base, map[string]any{"service_id": 1})
	do(t, router, http.MethodPatch, base, map[string]any{
		"date": "2026-09-14",
		"slot": map[string]string{"start": "2026-09-14T10:00:00Z", "end": "2026-09-14T11:00:00Z"},
		"client_info": map[string]string{
			"first_name": "Maya", "last_name": "Chen",
			"email": "maya@example.com", "phone": "+15551234567",
		},
	})
	do(t, router, http.MethodPost, base+"/next", map[string]string{"from": "client_info"})
	do(t, router, http.MethodPatch, base, map[string]any{"payment_preference": "pay_now"})

	// Committing before payment is rejected.
	rec = do(t, router, http.MethodPost, base+"/commit", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("commit before payment: got %d, want 400: %s", rec.Code, rec.Body)
	}

	// Raise the intent; a second call reuses it.
	rec = do(t, router, http.MethodPost, base+"/payment-intent", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("payment intent: got %d: %s", rec.Code, rec.Body)
	}
	intent := decode[map[string]string](t, rec)
	if intent["payment_intent_id"] == "" || intent["client_secret"] == "" {
		t.Fatalf("payment intent: incomplete response %v", intent)
	}

	rec = do(t, router, http.MethodPost, base+"/payment-intent", nil)
	reused := decode[map[string]string](t, rec)
	if reused["payment_intent_id"] != intent["payment_intent_id"] {
		t.Fatal("payment intent was not reused")
	}

	// Wrong intent in the callback is rejected.
	rec = do(t, router, http.MethodPost, base+"/payment-confirmation", map[string]string{"payment_intent_id": "pi_spoofed"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("spoofed confirmation: got %d, want 400", rec.Code)
	}

	rec = do(t, router, http.MethodPost, base+"/payment-confirmation", map[string]string{"payment_intent_id": intent["payment_intent_id"]})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirmation: got %d: %s", rec.Code, rec.Body)
	}

	rec = do(t, router, http.MethodPost, base+"/commit", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("commit: got %d: %s", rec.Code, rec.Body)
	}
}

func TestWizardConsultationFlow(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/bookings/drafts", nil)
	start := decode[draftResponse](t, rec)
	base := "/bookings/drafts/" + start.Draft.ID

	rec = do(t, router, http.MethodPatch, base, map[string]any{"service_id": 9})
	patched := decode[draftResponse](t, rec)
	if !patched.Draft.IsConsultation {
		t.Fatal("consultation service should flag the draft")
	}

	// A consultation draft silently drops any payment preference.
	rec = do(t, router, http.MethodPatch, base, map[string]any{"payment_preference": "pay_now"})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: got %d: %s", rec.Code, rec.Body)
	}

	// The next step from service selection is the consultation type.
	rec = do(t, router, http.MethodPost, base+"/next", map[string]string{"from": "service"})
	next := decode[draftResponse](t, rec)
	if next.Step != "consultation_type" {
		t.Fatalf("next from service: landed on %q", next.Step)
	}
	if next.Total != 5 {
		t.Fatalf("consultation path should show 5 steps, got %d", next.Total)
	}
}

func TestWizardRejectsUnknownService(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/bookings/drafts", nil)
	start := decode[draftResponse](t, rec)

	rec = do(t, router, http.MethodPatch, "/bookings/drafts/"+start.Draft.ID, map[string]any{"service_id": 404})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown service: got %d, want 400", rec.Code)
	}
}

func TestWizardExpiredDraft(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/bookings/drafts/does-not-exist", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expired draft: got %d, want 404: %s", rec.Code, rec.Body)
	}
}
