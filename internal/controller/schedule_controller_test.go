package controller_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/poster-scheduler/internal/controller"
	appErrors "github.com/unclebandit/poster-scheduler/internal/errors"
	"github.com/unclebandit/poster-scheduler/internal/model"
)

// --- Mock service ---

type mockScheduleAPI struct {
	createErr  error
	created    []model.Schedule
	gotRequest model.CreateScheduleRequest

	views      []model.ScheduleView
	pagination map[string]int
	listErr    error
	gotPage    [2]int
	gotStatus  string

	byCustomer []model.Schedule
	deleteErr  error
	deletedID  string
}

func (m *mockScheduleAPI) CreateSchedules(ctx context.Context, req model.CreateScheduleRequest) ([]model.Schedule, error) {
	m.gotRequest = req
	return m.created, m.createErr
}

func (m *mockScheduleAPI) ListSchedules(ctx context.Context, page, pageSize int, status string) ([]model.ScheduleView, map[string]int, error) {
	m.gotPage = [2]int{page, pageSize}
	m.gotStatus = status
	return m.views, m.pagination, m.listErr
}

func (m *mockScheduleAPI) ListByCustomer(ctx context.Context, customerID string) ([]model.Schedule, error) {
	out := []model.Schedule{}
	for _, s := range m.byCustomer {
		if s.CustomerID == customerID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockScheduleAPI) DeleteSchedule(ctx context.Context, id string) error {
	m.deletedID = id
	return m.deleteErr
}

func newController(api *mockScheduleAPI) *controller.ScheduleController {
	return &controller.ScheduleController{ScheduleService: api, Log: zerolog.Nop()}
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

// withParam routes through chi so URLParam resolves.
func withParam(method, pattern, target string, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

// --- Tests ---

func TestCreateScheduleCreated(t *testing.T) {
	api := &mockScheduleAPI{created: []model.Schedule{{ID: "a", Status: model.StatusPending}}}
	c := newController(api)

	body := `{"customerId":"c-1","schedules":[{"posterId":"p-1","categories":["festival"],"dates":["2024-05-01T03:30:00.000Z"]}]}`
	req := httptest.NewRequest(http.MethodPost, "/schedules/create", strings.NewReader(body))
	rr := httptest.NewRecorder()
	c.CreateSchedule(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	resp := decode(t, rr)
	assert.Equal(t, "Posters scheduled successfully", resp["message"])
	assert.Len(t, resp["schedules"], 1)

	require.Len(t, api.gotRequest.Schedules, 1)
	assert.Equal(t, `"2024-05-01T03:30:00.000Z"`, string(api.gotRequest.Schedules[0].Dates[0]))
}

func TestCreateScheduleErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		err     error
		code    int
		message string
	}{
		{"malformed body", `{"customerId":`, nil, http.StatusBadRequest, ""},
		{"empty batch", `{"customerId":"c-1","schedules":[]}`, appErrors.NewValidation("Schedules must be a non-empty array"), http.StatusBadRequest, "Schedules must be a non-empty array"},
		{"bad date", `{}`, appErrors.NewDateFormat("soon"), http.StatusInternalServerError, "Invalid date format: soon"},
		{"store failure", `{}`, appErrors.NewPersistence("insert schedules", errors.New("db down")), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newController(&mockScheduleAPI{createErr: tt.err})
			rr := httptest.NewRecorder()
			c.CreateSchedule(rr, httptest.NewRequest(http.MethodPost, "/schedules/create", strings.NewReader(tt.body)))

			assert.Equal(t, tt.code, rr.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, decode(t, rr)["message"])
			}
		})
	}
}

func TestListSchedules(t *testing.T) {
	api := &mockScheduleAPI{
		views: []model.ScheduleView{{
			Schedule:    model.Schedule{ID: "a", Date: "2024-05-01", Time: "09:00"},
			DateUTC:     "2024-05-01",
			TimeUTC:     "03:30",
			DateDisplay: "2024-05-01 09:00:00 IST",
		}},
		pagination: map[string]int{"page": 2, "page_size": 5, "total_count": 6, "total_pages": 2},
	}
	c := newController(api)

	rr := httptest.NewRecorder()
	c.ListSchedules(rr, httptest.NewRequest(http.MethodGet, "/schedules?page=2&page_size=5&status=Sent", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, [2]int{2, 5}, api.gotPage)
	assert.Equal(t, "Sent", api.gotStatus)

	resp := decode(t, rr)
	data := resp["data"].([]any)
	require.Len(t, data, 1)
	item := data[0].(map[string]any)
	assert.Equal(t, "03:30", item["timeUTC"])
	assert.Equal(t, "2024-05-01 09:00:00 IST", item["dateDisplay"])
	assert.Equal(t, "09:00", item["time"])
	assert.Equal(t, float64(6), resp["pagination"].(map[string]any)["total_count"])
}

func TestListSchedulesInvalidStatus(t *testing.T) {
	c := newController(&mockScheduleAPI{listErr: appErrors.NewValidation("unknown status %q", "Queued")})

	rr := httptest.NewRecorder()
	c.ListSchedules(rr, httptest.NewRequest(http.MethodGet, "/schedules?status=Queued", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetScheduleByCustomer(t *testing.T) {
	api := &mockScheduleAPI{byCustomer: []model.Schedule{
		{ID: "a", CustomerID: "c-1"},
		{ID: "b", CustomerID: "c-2"},
	}}
	c := newController(api)

	rr := withParam(http.MethodGet, "/schedules/customer/{customerId}", "/schedules/customer/c-1", c.GetScheduleByCustomer)

	require.Equal(t, http.StatusOK, rr.Code)
	var got []model.Schedule
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestDeleteSchedule(t *testing.T) {
	api := &mockScheduleAPI{}
	c := newController(api)

	rr := withParam(http.MethodDelete, "/schedules/{id}", "/schedules/abc", c.DeleteSchedule)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "abc", api.deletedID)
	assert.Equal(t, "Schedule deleted successfully", decode(t, rr)["message"])
}

func TestDeleteScheduleNotFound(t *testing.T) {
	c := newController(&mockScheduleAPI{deleteErr: appErrors.NewNotFound("schedule", "abc")})

	rr := withParam(http.MethodDelete, "/schedules/{id}", "/schedules/abc", c.DeleteSchedule)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Schedule not found", decode(t, rr)["message"])
}
