package service

import (
	"context"
	"iter"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/poster-scheduler/internal/clock"
	"github.com/unclebandit/poster-scheduler/internal/model"
)

// PendingSource yields the Pending records with their references resolved.
type PendingSource interface {
	FindPending(ctx context.Context) iter.Seq2[model.Schedule, error]
}

// DueResolver picks the Pending records whose civil date and minute equal
// the current civil minute. It never writes.
//
// A record whose minute passes without a tick (process paused or down) is
// not picked up later and stays Pending until someone reconciles it.
type DueResolver struct {
	store PendingSource
	clock *clock.Clock
	log   zerolog.Logger
}

func NewDueResolver(store PendingSource, clk *clock.Clock, log zerolog.Logger) *DueResolver {
	return &DueResolver{
		store: store,
		clock: clk,
		log:   log.With().Str("component", "due_resolver").Logger(),
	}
}

// ResolveDue returns the due set for now. Any second inside the minute
// resolves to the same set. A store error aborts the whole resolution.
func (r *DueResolver) ResolveDue(ctx context.Context, now time.Time) ([]model.Schedule, error) {
	date, minute := r.clock.ToCivil(now)

	due := []model.Schedule{}
	skipped := 0
	for rec, err := range r.store.FindPending(ctx) {
		if err != nil {
			return nil, err
		}
		if rec.Status != model.StatusPending {
			continue
		}
		if !clock.ValidCivil(rec.Date, rec.Time) {
			skipped++
			continue
		}
		if IsDue(rec, date, minute) {
			due = append(due, rec)
		}
	}
	if skipped > 0 {
		r.log.Warn().Int("count", skipped).Msg("pending schedules with malformed date/time ignored")
	}
	return due, nil
}

// IsDue compares civil strings only; no instant arithmetic is involved.
func IsDue(rec model.Schedule, date, minute string) bool {
	return rec.Status == model.StatusPending && rec.Date == date && rec.Time == minute
}
