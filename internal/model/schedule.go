// internal/model/schedule.go
package model

import (
	"encoding/json"
	"time"
)

type ScheduleStatus string

const (
	StatusPending ScheduleStatus = "Pending"
	StatusSent    ScheduleStatus = "Sent"
	StatusFailed  ScheduleStatus = "Failed"
)

// Valid reports whether s is one of the known statuses.
func (s ScheduleStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further automatic transition may happen.
func (s ScheduleStatus) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

// Schedule is one requested future send. Date and Time are civil strings in
// the configured timezone ("2006-01-02", "15:04"), not instants.
type Schedule struct {
	ID                 string         `db:"id" json:"_id"`
	CustomerID         string         `db:"customer_id" json:"customerId"`
	PosterID           string         `db:"poster_id" json:"posterId"`
	Category           string         `db:"category" json:"category"`
	Date               string         `db:"date" json:"date"`
	Time               string         `db:"time" json:"time"`
	Status             ScheduleStatus `db:"status" json:"status"`
	SelectedPosterURLs []string       `db:"selected_poster_urls" json:"selectedPosterUrls,omitempty"`
	LastError          string         `db:"last_error" json:"lastError,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updatedAt"`

	// Populated by joins; nil when the reference does not resolve.
	Customer *Customer `db:"-" json:"customer,omitempty"`
	Poster   *Poster   `db:"-" json:"poster,omitempty"`
}

// ScheduleView is the listing projection. The extra fields are derived on
// read and never stored.
type ScheduleView struct {
	Schedule
	DateUTC     string `json:"dateUTC"`
	TimeUTC     string `json:"timeUTC"`
	DateDisplay string `json:"dateDisplay"`
}

// ScheduleFilter narrows FindAll. Zero values mean "no filter".
type ScheduleFilter struct {
	Status     ScheduleStatus
	CustomerID string
	Offset     int
	Limit      int
}

// CreateScheduleRequest is the body of the bulk creation call.
type CreateScheduleRequest struct {
	CustomerID          string          `json:"customerId" validate:"required"`
	Schedules           []ScheduleEntry `json:"schedules" validate:"dive"`
	CustomerPhoneNumber string          `json:"customerPhoneNumber"`
}

// ScheduleEntry expands into one Schedule per category and date. Each date is
// either an ISO-8601 instant, a civil "YYYY-MM-DD HH:mm" string, epoch
// milliseconds or a {"date","time"} object.
type ScheduleEntry struct {
	PosterID           string            `json:"posterId" validate:"required"`
	Categories         []string          `json:"categories" validate:"required,min=1,dive,required"`
	Dates              []json.RawMessage `json:"dates" validate:"required,min=1"`
	SelectedPosterURLs []string          `json:"selectedPosterUrls" validate:"omitempty,dive,url"`
}

// DispatchEvent is published after every dispatch attempt reaches a terminal status.
type DispatchEvent struct {
	ScheduleID string         `json:"scheduleId"`
	CustomerID string         `json:"customerId"`
	Status     ScheduleStatus `json:"status"`
	Error      string         `json:"error,omitempty"`
	Calls      int            `json:"calls"`
	At         time.Time      `json:"at"`
}
