package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/jbxxnn/usebinda/internal/availability"
	"github.com/jbxxnn/usebinda/internal/booking"
)

type RouterConfig struct {
	Engine   *availability.Engine
	Settings availability.SettingsRepository
	Bookings *booking.Service
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Availability reads
	r.Get("/providers/{providerID}/services/{serviceID}/slots", getSlotsHandler(cfg.Engine))
	r.Get("/providers/{providerID}/services/{serviceID}/available-dates", getAvailableDatesHandler(cfg.Engine))

	// Availability settings
	r.Get("/providers/{providerID}/availability", getProfileHandler(cfg.Settings))
	r.Put("/providers/{providerID}/availability", putProfileHandler(cfg.Settings))
	r.Get("/providers/{providerID}/blocked-periods", listBlockedPeriodsHandler(cfg.Settings))
	r.Post("/providers/{providerID}/blocked-periods", createBlockedPeriodHandler(cfg.Settings))
	r.Delete("/providers/{providerID}/blocked-periods/{id}", deleteBlockedPeriodHandler(cfg.Settings))

	// Bookings
	r.Post("/bookings", createBookingHandler(cfg.Bookings))
	r.Get("/bookings/{id}", getBookingHandler(cfg.Bookings))
	r.Post("/bookings/{id}/confirm", confirmBookingHandler(cfg.Bookings))
	r.Post("/bookings/{id}/cancel", cancelBookingHandler(cfg.Bookings))
	r.Post("/bookings/{id}/reschedule", rescheduleBookingHandler(cfg.Bookings))
	r.Get("/providers/{providerID}/bookings", listProviderBookingsHandler(cfg.Bookings))

	return r
}
