// internal/controller/schedule_controller.go
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/poster-scheduler/internal/errors"
	"github.com/unclebandit/poster-scheduler/internal/model"
)

// ScheduleAPI is the service surface the controller depends on.
type ScheduleAPI interface {
	CreateSchedules(ctx context.Context, req model.CreateScheduleRequest) ([]model.Schedule, error)
	ListSchedules(ctx context.Context, page, pageSize int, status string) ([]model.ScheduleView, map[string]int, error)
	ListByCustomer(ctx context.Context, customerID string) ([]model.Schedule, error)
	DeleteSchedule(ctx context.Context, id string) error
}

type ScheduleController struct {
	ScheduleService ScheduleAPI
	Log             zerolog.Logger
}

func (c *ScheduleController) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var body model.CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"message": "invalid body: " + err.Error()})
		return
	}

	created, err := c.ScheduleService.CreateSchedules(r.Context(), body)
	if err != nil {
		c.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Posters scheduled successfully",
		"schedules": created,
	})
}

func (c *ScheduleController) ListSchedules(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	schedules, pagination, err := c.ScheduleService.ListSchedules(r.Context(), page, pageSize, status)
	if err != nil {
		c.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       schedules,
		"pagination": pagination,
	})
}

func (c *ScheduleController) GetScheduleByCustomer(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerId")

	schedules, err := c.ScheduleService.ListByCustomer(r.Context(), customerID)
	if err != nil {
		c.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, schedules)
}

func (c *ScheduleController) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := c.ScheduleService.DeleteSchedule(r.Context(), id); err != nil {
		if appErrors.IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"message": "Schedule not found"})
			return
		}
		c.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Schedule deleted successfully"})
}

// writeError maps the error taxonomy onto status codes. Anything that is not
// a client mistake or a missing id is a 500.
func (c *ScheduleController) writeError(w http.ResponseWriter, err error) {
	var (
		validation *appErrors.ValidationError
		notFound   *appErrors.NotFoundError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		c.Log.Error().Err(err).Msg("schedule request failed")
	}
	writeJSON(w, status, map[string]interface{}{"message": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
