// internal/handler/router.go
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/unclebandit/poster-scheduler/internal/controller"
)

// NewRouter wires the schedule API and the health probe.
func NewRouter(schedules *controller.ScheduleController, health *HealthHandler, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", health.ServeHTTP)

	r.Route("/schedules", func(r chi.Router) {
		r.Post("/create", schedules.CreateSchedule)
		r.Get("/customer/{customerId}", schedules.GetScheduleByCustomer)
		r.Get("/", schedules.ListSchedules)
		r.Delete("/{id}", schedules.DeleteSchedule)
	})

	return r
}

// RequestLogger logs one line per request with status and latency.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Str("request_id", middleware.GetReqID(r.Context())).
					Dur("took", time.Since(start)).
					Msg("http request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
