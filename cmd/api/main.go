package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/stillpoint/massage-bookings/internal/account"
	"github.com/stillpoint/massage-bookings/internal/booking"
	"github.com/stillpoint/massage-bookings/internal/booking/draftstore"
	"github.com/stillpoint/massage-bookings/internal/eligibility"
	"github.com/stillpoint/massage-bookings/internal/http/handlers"
	httpmw "github.com/stillpoint/massage-bookings/internal/http/middleware"
	"github.com/stillpoint/massage-bookings/internal/platform/payments"
	"github.com/stillpoint/massage-bookings/internal/platform/video"
	"github.com/stillpoint/massage-bookings/internal/repo/postgres"
	"github.com/stillpoint/massage-bookings/pkg/config"
	"github.com/stillpoint/massage-bookings/pkg/database"
	"github.com/stillpoint/massage-bookings/pkg/events"
	"github.com/stillpoint/massage-bookings/pkg/logger"
	mw "github.com/stillpoint/massage-bookings/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	// Connect to database
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Draft store: redis when reachable, in-memory otherwise
	drafts := newDraftStore(ctx, cfg)

	// Repositories
	appointmentsRepo := postgres.NewAppointmentsRepo(pool)
	clientsRepo := postgres.NewClientsRepo(pool)
	intakeRepo := postgres.NewIntakeRepo(pool)
	idempotencyRepo := postgres.NewIdempotencyRepo(pool)
	servicesRepo := postgres.NewServicesRepo(pool)

	// Platform clients
	stripeClient := payments.NewStripeClient(cfg.Stripe)
	videoClient := video.NewClient(cfg.Video)

	// Domain services
	resolver := eligibility.NewResolver(intakeRepo, clientsRepo,
		cfg.Booking.IntakeFullRefreshWindow, cfg.Booking.IntakeQuickUpdateWindow)
	orchestrator := booking.NewOrchestrator(appointmentsRepo, clientsRepo, intakeRepo,
		idempotencyRepo, videoClient, eventBus)
	wizard := booking.NewWizard(drafts, intakeRepo, resolver, stripeClient, orchestrator)
	accounts := account.NewService(clientsRepo, cfg)

	h := handlers.New(wizard, servicesRepo, appointmentsRepo, clientsRepo, intakeRepo,
		resolver, accounts, stripeClient, eventBus, cfg)

	draftLimiter := httpmw.NewRateLimiter(pool, httpmw.RateLimitConfig{
		Requests: 20,
		Window:   time.Hour,
		KeyFunc:  httpmw.BookingRateLimitKeyFunc,
	})

	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("api"))
	r.Use(mw.Logging)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.ErrorContext(r.Context(), "Panic recovered", "error", err)
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	})

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000", "*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(mw.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/services", h.ListServices)

		// Booking wizard; drafts work for anonymous visitors, but a
		// session binds the draft to that identity when present.
		r.Route("/bookings/drafts", func(r chi.Router) {
			r.Use(httpmw.OptionalSession(cfg.Auth.JWTSecret))
			r.With(draftLimiter.Middleware()).Post("/", h.StartDraft)
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

		r.Route("/eligibility", func(r chi.Router) {
			r.Use(httpmw.OptionalSession(cfg.Auth.JWTSecret))
			r.Get("/intake", h.IntakeEligibility)
			r.Get("/consultation", h.ConsultationEligibility)
		})

		r.Route("/intake-forms", func(r chi.Router) {
			r.Use(httpmw.RequireSession(cfg.Auth.JWTSecret))
			r.Get("/{formID}", h.GetIntakeForm)
			r.Post("/{formID}/submit", h.SubmitIntakeForm)
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Use(httpmw.RequireSession(cfg.Auth.JWTSecret))
			r.Get("/", h.ListAppointments)
			r.Get("/{appointmentID}", h.GetAppointment)
			r.Delete("/{appointmentID}", h.CancelAppointment)
		})

		r.With(httpmw.RequireSession(cfg.Auth.JWTSecret)).
			Post("/consultations/{consultationID}/complete", h.CompleteConsultation)

		r.Post("/sessions/guest", h.GuestSession)
		r.Post("/sessions", h.Login)
		r.Post("/accounts", h.CreateAccount)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down api service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Api service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting api service", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Api service error", "error", err)
		os.Exit(1)
	}
}

// newDraftStore prefers redis so drafts survive restarts and are shared
// across instances; a dev box without redis gets the in-memory store.
func newDraftStore(ctx context.Context, cfg *config.Config) booking.DraftStore {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Warn("Invalid redis URL, using in-memory draft store", "error", err)
		return draftstore.NewMemoryStore(cfg.Booking.DraftTTL)
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	opts.DB = cfg.Redis.DB

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unreachable, using in-memory draft store", "error", err)
		return draftstore.NewMemoryStore(cfg.Booking.DraftTTL)
	}

	return draftstore.NewRedisStore(client, cfg.Booking.DraftTTL)
}
