package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/vet-appointment-scheduling/internal/appointment"
	"github.com/hackgods/vet-appointment-scheduling/internal/auth"
	"github.com/hackgods/vet-appointment-scheduling/internal/notify"
)

type AppointmentService interface {
	CreateAppointment(ctx context.Context, caller auth.Identity, req appointment.CreateRequest) (*appointment.Appointment, error)
	ListAppointments(ctx context.Context, caller auth.Identity, req appointment.ListRequest) (*appointment.ListResult, error)
	GetAppointment(ctx context.Context, caller auth.Identity, id uuid.UUID) (*appointment.Appointment, error)
	ChangeStatus(ctx context.Context, caller auth.Identity, id uuid.UUID, req appointment.StatusChangeRequest) (*appointment.Appointment, error)
	Reschedule(ctx context.Context, caller auth.Identity, id uuid.UUID, req appointment.RescheduleRequest) (*appointment.Appointment, error)
	Availability(ctx context.Context, vetID uuid.UUID, date appointment.Date) ([]time.Time, error)
}

type NotificationInbox interface {
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]notify.Notification, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) (*notify.Notification, error)
}

type RouterConfig struct {
	Service      AppointmentService
	Inbox        NotificationInbox
	Verifier     TokenVerifier
	Health       *HealthHandler
	Log          *zap.Logger
	CORSOrigins  []string
	RateLimitRPS int
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	r.Group(func(r chi.Router) {
		if cfg.RateLimitRPS > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitRPS, time.Second))
		}
		r.Use(AuthMiddleware(cfg.Verifier))

		// Appointment endpoints
		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", createAppointmentHandler(cfg.Service, log))
			r.Get("/", listAppointmentsHandler(cfg.Service, log))
			r.Get("/availability/{veterinarianId}", availabilityHandler(cfg.Service, log))
			r.Get("/{id}", getAppointmentHandler(cfg.Service, log))
			r.Patch("/{id}/status", updateStatusHandler(cfg.Service, log))
			r.Patch("/{id}/reschedule", rescheduleHandler(cfg.Service, log))
		})

		// Notification inbox
		if cfg.Inbox != nil {
			r.Get("/notifications", listNotificationsHandler(cfg.Inbox, log))
			r.Patch("/notifications/{id}/read", markNotificationReadHandler(cfg.Inbox, log))
		}
	})

	return r
}
