// Package clock keeps every wall-clock decision in one configured civil
// timezone, whatever the host's local zone is.
package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	// Embedded zone database so minimal containers resolve IANA names.
	_ "time/tzdata"
)

const (
	DateLayout  = "2006-01-02"
	TimeLayout  = "15:04"
	civilLayout = DateLayout + " " + TimeLayout

	DisplayLayout = "2006-01-02 15:04:05 MST"
)

// civil layouts accepted for date values that carry no offset.
var civilInputLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	DateLayout,
}

// Clock is safe for concurrent use; it is immutable after New.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

type Option func(*Clock)

// WithNow replaces the time source, mostly for tests.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) { c.now = now }
}

// New loads the zone once. An unknown zone is a startup error.
func New(zone string, opts ...Option) (*Clock, error) {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return nil, fmt.Errorf("timezone required")
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	c := &Clock{loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Clock) Location() *time.Location { return c.loc }

// Now is the current instant expressed in the configured zone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// ToCivil formats t as date and minute-precision time in the configured zone.
// Seconds are dropped.
func (c *Clock) ToCivil(t time.Time) (date, clock string) {
	t = t.In(c.loc)
	return t.Format(DateLayout), t.Format(TimeLayout)
}

// CivilToInstant is the inverse of ToCivil. It is meant for display and audit;
// due-ness is decided on the civil strings.
func (c *Clock) CivilToInstant(date, clock string) (time.Time, error) {
	if !ValidCivil(date, clock) {
		return time.Time{}, fmt.Errorf("invalid civil date/time %q %q", date, clock)
	}
	return time.ParseInLocation(civilLayout, date+" "+clock, c.loc)
}

// ParseInstant reads an ISO-8601 instant (with Z or an offset) and returns
// its civil form in the configured zone.
func (c *Clock) ParseInstant(raw string) (date, clock string, err error) {
	s := strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04Z07:00"} {
		if t, perr := time.Parse(layout, s); perr == nil {
			date, clock = c.ToCivil(t)
			return date, clock, nil
		}
	}
	return "", "", fmt.Errorf("not an ISO-8601 instant: %q", raw)
}

// ParseCivil reads a value that is already wall-clock time in the configured
// zone. A bare date means midnight.
func (c *Clock) ParseCivil(raw string) (date, clock string, err error) {
	s := strings.TrimSpace(raw)
	for _, layout := range civilInputLayouts {
		if t, perr := time.ParseInLocation(layout, s, c.loc); perr == nil {
			return t.Format(DateLayout), t.Format(TimeLayout), nil
		}
	}
	return "", "", fmt.Errorf("not a civil date/time: %q", raw)
}

// ParseDateString accepts either form: instants first, civil second.
func (c *Clock) ParseDateString(raw string) (date, clock string, err error) {
	if date, clock, err = c.ParseInstant(raw); err == nil {
		return date, clock, nil
	}
	if date, clock, err = c.ParseCivil(raw); err == nil {
		return date, clock, nil
	}
	if ms, perr := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); perr == nil {
		date, clock = c.FromEpochMillis(ms)
		return date, clock, nil
	}
	return "", "", fmt.Errorf("unparseable date %q", raw)
}

// FromEpochMillis converts Unix milliseconds to the civil pair.
func (c *Clock) FromEpochMillis(ms int64) (date, clock string) {
	return c.ToCivil(time.UnixMilli(ms))
}

// ValidCivil reports whether date and clock are in canonical
// "YYYY-MM-DD" / "HH:mm" form. Non-padded or out-of-range values fail.
func ValidCivil(date, clock string) bool {
	d, err := time.Parse(DateLayout, date)
	if err != nil || d.Format(DateLayout) != date {
		return false
	}
	t, err := time.Parse(TimeLayout, clock)
	if err != nil || t.Format(TimeLayout) != clock {
		return false
	}
	return true
}
