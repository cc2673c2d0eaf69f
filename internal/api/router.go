package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/caresched/hospital-scheduling/internal/directory"
	"github.com/caresched/hospital-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Scheduling *scheduling.Service
	Directory  *directory.Service
	PgPool     *pgxpool.Pool
	Redis      *redis.Client
	Env        string
	Version    string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Everything else requires a caller identity from the session layer
	r.Group(func(r chi.Router) {
		r.Use(ActorMiddleware)

		r.Route("/doctors", func(r chi.Router) {
			r.Get("/", searchDoctorsHandler(cfg.Directory))
			r.Post("/", createDoctorHandler(cfg.Directory))
			r.Get("/specialties", listSpecialtiesHandler(cfg.Directory))
			r.Get("/{id}", getDoctorHandler(cfg.Directory))
			r.Put("/{id}", updateDoctorHandler(cfg.Directory))
			r.Delete("/{id}", deleteDoctorHandler(cfg.Directory))
			r.Get("/{id}/slots", listFreeSlotsHandler(cfg.Directory))
			r.Post("/{id}/slots", openSlotsHandler(cfg.Directory))
			r.Get("/{id}/dashboard", doctorDashboardHandler(cfg.Scheduling))
		})

		r.Route("/patients", func(r chi.Router) {
			r.Get("/", listPatientsHandler(cfg.Directory))
			r.Post("/", createPatientHandler(cfg.Directory))
			r.Get("/{id}", getPatientHandler(cfg.Directory))
			r.Get("/{id}/history", patientHistoryHandler(cfg.Scheduling))
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", bookAppointmentHandler(cfg.Scheduling))
			r.Get("/", listAppointmentsHandler(cfg.Scheduling))
			r.Get("/{id}", getAppointmentHandler(cfg.Scheduling))
			r.Post("/{id}/cancel", cancelAppointmentHandler(cfg.Scheduling))
			r.Post("/{id}/reschedule", rescheduleAppointmentHandler(cfg.Scheduling))
			r.Post("/{id}/complete", completeAppointmentHandler(cfg.Scheduling))
		})

		r.Get("/admin/counts", directoryCountsHandler(cfg.Directory))
	})

	return r
}
