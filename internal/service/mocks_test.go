package service_test

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unclebandit/poster-scheduler/internal/clock"
	appErrors "github.com/unclebandit/poster-scheduler/internal/errors"
	"github.com/unclebandit/poster-scheduler/internal/messaging"
	"github.com/unclebandit/poster-scheduler/internal/model"
)

// fixedClock pins the Asia/Kolkata clock at the given UTC instant.
func fixedClock(t *testing.T, utc string) *clock.Clock {
	t.Helper()
	at, err := time.Parse(time.RFC3339Nano, utc)
	require.NoError(t, err)
	clk, err := clock.New("Asia/Kolkata", clock.WithNow(func() time.Time { return at }))
	require.NoError(t, err)
	return clk
}

// memStore is an in-memory schedule store with monotonic status updates.
type memStore struct {
	mu      sync.Mutex
	records map[string]model.Schedule
	order   []string

	findErr   error
	updateErr map[string]error
	// failSent makes writes of Sent fail while Failed still succeeds.
	failSent bool
	updates  []statusUpdate
}

type statusUpdate struct {
	ID        string
	Status    model.ScheduleStatus
	LastError string
}

func newMemStore(recs ...model.Schedule) *memStore {
	s := &memStore{records: map[string]model.Schedule{}, updateErr: map[string]error{}}
	for _, r := range recs {
		s.put(r)
	}
	return s
}

func (s *memStore) put(r model.Schedule) {
	if _, ok := s.records[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.records[r.ID] = r
}

func (s *memStore) get(id string) model.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id]
}

func (s *memStore) FindPending(ctx context.Context) iter.Seq2[model.Schedule, error] {
	return func(yield func(model.Schedule, error) bool) {
		s.mu.Lock()
		if s.findErr != nil {
			err := s.findErr
			s.mu.Unlock()
			yield(model.Schedule{}, err)
			return
		}
		var pending []model.Schedule
		for _, id := range s.order {
			if r := s.records[id]; r.Status == model.StatusPending {
				pending = append(pending, r)
			}
		}
		s.mu.Unlock()
		for _, r := range pending {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (s *memStore) UpdateStatus(ctx context.Context, id string, status model.ScheduleStatus, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, statusUpdate{id, status, lastError})
	if err := s.updateErr[id]; err != nil {
		return err
	}
	if s.failSent && status == model.StatusSent {
		return errors.New("write rejected")
	}
	r, ok := s.records[id]
	if !ok {
		return appErrors.NewNotFound("schedule", id)
	}
	if r.Status.Terminal() {
		return appErrors.NewTransition(id, string(r.Status), string(status))
	}
	r.Status = status
	r.LastError = lastError
	s.records[id] = r
	return nil
}

func (s *memStore) InsertMany(ctx context.Context, recs []model.Schedule) ([]model.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(recs) == 0 {
		return nil, appErrors.NewPersistence("insert schedules", errors.New("empty batch"))
	}
	out := make([]model.Schedule, len(recs))
	for i, r := range recs {
		if r.ID == "" {
			r.ID = fmt.Sprintf("gen-%d", len(s.order)+1)
		}
		s.put(r)
		out[i] = r
	}
	return out, nil
}

func (s *memStore) FindByCustomer(ctx context.Context, customerID string) ([]model.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Schedule{}
	for _, id := range s.order {
		if r := s.records[id]; r.CustomerID == customerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) FindAll(ctx context.Context, f model.ScheduleFilter) ([]model.Schedule, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := []model.Schedule{}
	for _, id := range s.order {
		r := s.records[id]
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		matched = append(matched, r)
	}
	total := len(matched)
	if f.Offset >= len(matched) {
		return []model.Schedule{}, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (s *memStore) DeleteByID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return appErrors.NewNotFound("schedule", id)
	}
	delete(s.records, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// fakeSender records every call and answers through respond.
type fakeSender struct {
	mu      sync.Mutex
	calls   []messaging.Message
	respond func(ctx context.Context, msg messaging.Message) (*messaging.Response, error)
}

func (f *fakeSender) Send(ctx context.Context, msg messaging.Message) (*messaging.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, msg)
	respond := f.respond
	f.mu.Unlock()
	if respond == nil {
		return &messaging.Response{Success: true}, nil
	}
	return respond(ctx, msg)
}

func (f *fakeSender) sent() []messaging.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]messaging.Message(nil), f.calls...)
}

func pending(id, date, tm, whatsapp string) model.Schedule {
	rec := model.Schedule{
		ID:         id,
		CustomerID: "cust-" + id,
		PosterID:   "poster-1",
		Category:   "festival",
		Date:       date,
		Time:       tm,
		Status:     model.StatusPending,
		Poster:     &model.Poster{ID: "poster-1", Title: "Diwali Sale"},
	}
	if whatsapp != "-" {
		rec.Customer = &model.Customer{ID: rec.CustomerID, CompanyName: "Acme", WhatsApp: whatsapp}
	}
	return rec
}
