package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/unclebandit/poster-scheduler/internal/clock"
	appErrors "github.com/unclebandit/poster-scheduler/internal/errors"
	"github.com/unclebandit/poster-scheduler/internal/model"
)

// ScheduleStore is what the API side needs from persistence.
type ScheduleStore interface {
	InsertMany(ctx context.Context, records []model.Schedule) ([]model.Schedule, error)
	FindByCustomer(ctx context.Context, customerID string) ([]model.Schedule, error)
	FindAll(ctx context.Context, filter model.ScheduleFilter) ([]model.Schedule, int, error)
	DeleteByID(ctx context.Context, id string) error
}

type ScheduleService struct {
	Store    ScheduleStore
	Clock    *clock.Clock
	Validate *validator.Validate
	Log      zerolog.Logger
}

func NewScheduleService(store ScheduleStore, clk *clock.Clock, log zerolog.Logger) *ScheduleService {
	return &ScheduleService{
		Store:    store,
		Clock:    clk,
		Validate: validator.New(),
		Log:      log.With().Str("component", "schedule_service").Logger(),
	}
}

// CreateSchedules expands every entry into one record per category and date
// and stores them as a single batch. Duplicates are stored as submitted.
func (s *ScheduleService) CreateSchedules(ctx context.Context, req model.CreateScheduleRequest) ([]model.Schedule, error) {
	if len(req.Schedules) == 0 {
		return nil, appErrors.NewValidation("Schedules must be a non-empty array")
	}
	if err := s.Validate.Struct(req); err != nil {
		return nil, appErrors.NewValidation("invalid schedule request: %v", err)
	}

	entries := []model.Schedule{}
	for _, item := range req.Schedules {
		for _, category := range item.Categories {
			for _, raw := range item.Dates {
				date, tm, err := s.NormalizeDate(raw)
				if err != nil {
					return nil, err
				}
				s.Log.Debug().
					Str("raw", string(raw)).
					Str("date", date).
					Str("time", tm).
					Str("tz", s.Clock.Location().String()).
					Msg("normalized schedule date")

				entries = append(entries, model.Schedule{
					CustomerID:         req.CustomerID,
					PosterID:           item.PosterID,
					Category:           category,
					Date:               date,
					Time:               tm,
					Status:             model.StatusPending,
					SelectedPosterURLs: item.SelectedPosterURLs,
				})
			}
		}
	}

	created, err := s.Store.InsertMany(ctx, entries)
	if err != nil {
		return nil, err
	}
	s.Log.Info().Str("customer_id", req.CustomerID).Int("count", len(created)).Msg("posters scheduled")
	return created, nil
}

// NormalizeDate turns one submitted date value into the civil pair. Strings
// carrying Z or an offset are instants; strings without one are already
// civil time in the configured zone. Numbers are epoch milliseconds, and
// {"date","time"} objects are civil.
func (s *ScheduleService) NormalizeDate(raw json.RawMessage) (string, string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", "", appErrors.NewDateFormat(string(raw))
	}

	switch x := v.(type) {
	case string:
		date, tm, err := s.Clock.ParseDateString(x)
		if err != nil {
			return "", "", appErrors.NewDateFormat(x)
		}
		return date, tm, nil
	case float64:
		date, tm := s.Clock.FromEpochMillis(int64(x))
		return date, tm, nil
	case map[string]any:
		date, _ := x["date"].(string)
		tm, _ := x["time"].(string)
		if tm == "" {
			tm = "00:00"
		}
		d, t, err := s.Clock.ParseCivil(strings.TrimSpace(date) + " " + strings.TrimSpace(tm))
		if err != nil {
			return "", "", appErrors.NewDateFormat(string(raw))
		}
		return d, t, nil
	}
	return "", "", appErrors.NewDateFormat(string(raw))
}

// ListSchedules returns a page of records with the derived UTC/display fields.
func (s *ScheduleService) ListSchedules(ctx context.Context, page, pageSize int, status string) ([]model.ScheduleView, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	filter := model.ScheduleFilter{Offset: (page - 1) * pageSize, Limit: pageSize}
	if status != "" {
		st := model.ScheduleStatus(status)
		if !st.Valid() {
			return nil, nil, appErrors.NewValidation("unknown status %q", status)
		}
		filter.Status = st
	}

	records, total, err := s.Store.FindAll(ctx, filter)
	if err != nil {
		return nil, nil, err
	}

	views := make([]model.ScheduleView, len(records))
	for i, rec := range records {
		views[i] = s.Project(rec)
	}

	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": (total + pageSize - 1) / pageSize,
	}
	return views, pagination, nil
}

func (s *ScheduleService) ListByCustomer(ctx context.Context, customerID string) ([]model.Schedule, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, appErrors.NewValidation("customerId is required")
	}
	return s.Store.FindByCustomer(ctx, customerID)
}

func (s *ScheduleService) DeleteSchedule(ctx context.Context, id string) error {
	if err := s.Store.DeleteByID(ctx, id); err != nil {
		return err
	}
	s.Log.Info().Str("schedule_id", id).Msg("schedule deleted")
	return nil
}

// Project attaches the UTC pair and a display string in the configured zone.
// Records with a malformed civil pair keep the derived fields empty.
func (s *ScheduleService) Project(rec model.Schedule) model.ScheduleView {
	view := model.ScheduleView{Schedule: rec}
	at, err := s.Clock.CivilToInstant(rec.Date, rec.Time)
	if err != nil {
		s.Log.Warn().Str("schedule_id", rec.ID).Err(err).Msg("cannot project schedule time")
		return view
	}
	utc := at.UTC()
	view.DateUTC = utc.Format(clock.DateLayout)
	view.TimeUTC = utc.Format(clock.TimeLayout)
	view.DateDisplay = at.In(s.Clock.Location()).Format(clock.DisplayLayout)
	return view
}
