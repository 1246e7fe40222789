package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/poster-scheduler/internal/clock"
	"github.com/unclebandit/poster-scheduler/internal/config"
	appErrors "github.com/unclebandit/poster-scheduler/internal/errors"
	"github.com/unclebandit/poster-scheduler/internal/messaging"
	"github.com/unclebandit/poster-scheduler/internal/model"
	"github.com/unclebandit/poster-scheduler/internal/queue"
)

// ErrDispatchInProgress is returned when another attempt for the same
// schedule id has not finished yet. The record is left to that attempt.
var ErrDispatchInProgress = errors.New("dispatch already in progress")

const statusWriteTimeout = 10 * time.Second

// StatusWriter persists the terminal status of one record.
type StatusWriter interface {
	UpdateStatus(ctx context.Context, id string, status model.ScheduleStatus, lastError string) error
}

// Sender is the outbound messaging capability.
type Sender interface {
	Send(ctx context.Context, msg messaging.Message) (*messaging.Response, error)
}

type WorkerOptions struct {
	// MediaMode is config.MediaModePlaceholder or config.MediaModeSelected.
	MediaMode           string
	MessageTemplate     string
	PlaceholderMediaURL string
	CountryCode         string
	Timeout             time.Duration
}

func WorkerOptionsFromConfig(cfg *config.Config) WorkerOptions {
	return WorkerOptions{
		MediaMode:           cfg.Dispatch.MediaMode,
		MessageTemplate:     cfg.Msgwapi.Message,
		PlaceholderMediaURL: cfg.Msgwapi.PlaceholderMediaURL,
		CountryCode:         cfg.Msgwapi.CountryCode,
		Timeout:             cfg.Dispatch.Timeout,
	}
}

// Outcome describes one finished dispatch attempt.
type Outcome struct {
	ScheduleID string
	Status     model.ScheduleStatus
	// Calls counts requests that reached the gateway.
	Calls      int
	Err        error
	PersistErr error
}

// Worker sends one due schedule and records Sent or Failed for it.
type Worker struct {
	store  StatusWriter
	sender Sender
	events queue.Queue
	clock  *clock.Clock
	opts   WorkerOptions
	log    zerolog.Logger

	inflight sync.Map
}

// NewWorker builds a Worker. events may be nil.
func NewWorker(store StatusWriter, sender Sender, events queue.Queue, clk *clock.Clock, opts WorkerOptions, log zerolog.Logger) *Worker {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MediaMode == "" {
		opts.MediaMode = config.MediaModePlaceholder
	}
	return &Worker{
		store:  store,
		sender: sender,
		events: events,
		clock:  clk,
		opts:   opts,
		log:    log.With().Str("component", "dispatch_worker").Logger(),
	}
}

// DispatchOne runs a single attempt to completion. Unless another attempt for
// the same id is running, the record ends in Sent or Failed.
func (w *Worker) DispatchOne(ctx context.Context, rec model.Schedule) Outcome {
	if _, busy := w.inflight.LoadOrStore(rec.ID, struct{}{}); busy {
		return Outcome{ScheduleID: rec.ID, Status: rec.Status, Err: ErrDispatchInProgress}
	}
	defer w.inflight.Delete(rec.ID)

	out := Outcome{ScheduleID: rec.ID}

	receiver := ""
	if rec.Customer != nil {
		receiver = messaging.NormalizeReceiver(rec.Customer.WhatsApp, w.opts.CountryCode)
	}
	if receiver == "" {
		out.Err = appErrors.NewMissingContact(rec.ID, rec.CustomerID)
		return w.finish(ctx, rec, out, model.StatusFailed)
	}
	if rec.Poster == nil {
		out.Err = appErrors.NewUnresolvedReference(rec.ID, "poster", rec.PosterID)
		return w.finish(ctx, rec, out, model.StatusFailed)
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.opts.Timeout)
	defer cancel()

	text := RenderTemplate(w.opts.MessageTemplate, messageData(rec))
	var errs []error
	for _, mediaURL := range w.mediaURLs(rec) {
		msg := messaging.Message{Receiver: receiver, Text: text, MediaURL: mediaURL}
		err := w.send(sendCtx, msg)
		if !errors.Is(err, messaging.ErrNotSent) {
			out.Calls++
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", mediaURL, err))
		}
	}
	if len(errs) > 0 {
		out.Err = appErrors.NewRemoteDispatch(rec.ID, errors.Join(errs...))
		return w.finish(ctx, rec, out, model.StatusFailed)
	}
	return w.finish(ctx, rec, out, model.StatusSent)
}

// mediaURLs is one placeholder URL, or in selected mode every URL the
// customer picked at creation time.
func (w *Worker) mediaURLs(rec model.Schedule) []string {
	if w.opts.MediaMode == config.MediaModeSelected && len(rec.SelectedPosterURLs) > 0 {
		return rec.SelectedPosterURLs
	}
	return []string{w.opts.PlaceholderMediaURL}
}

func (w *Worker) send(ctx context.Context, msg messaging.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panic: %v", r)
		}
	}()
	_, err = w.sender.Send(ctx, msg)
	return err
}

// finish writes the terminal status. A failed Sent write falls back to
// Failed; if that write fails too the error is logged and returned in the
// outcome, never raised.
func (w *Worker) finish(ctx context.Context, rec model.Schedule, out Outcome, status model.ScheduleStatus) Outcome {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()

	lastError := ""
	if out.Err != nil {
		lastError = out.Err.Error()
	}

	if err := w.store.UpdateStatus(writeCtx, rec.ID, status, lastError); err != nil {
		w.log.Error().Err(err).Str("schedule_id", rec.ID).Str("status", string(status)).Msg("failed to persist dispatch status")
		out.PersistErr = err
		if status == model.StatusSent {
			status = model.StatusFailed
			out.Err = appErrors.NewPersistence("mark sent", err)
			if err2 := w.store.UpdateStatus(writeCtx, rec.ID, status, out.Err.Error()); err2 != nil {
				w.log.Error().Err(err2).Str("schedule_id", rec.ID).Msg("failed to persist fallback Failed status")
				out.PersistErr = errors.Join(err, err2)
			}
		}
	}
	out.Status = status

	ev := w.log.Info()
	if out.Err != nil {
		ev = w.log.Error().Err(out.Err)
	}
	ev.Str("schedule_id", rec.ID).
		Str("customer_id", rec.CustomerID).
		Str("status", string(status)).
		Int("calls", out.Calls).
		Str("target", rec.Date+" "+rec.Time).
		Msg("dispatch finished")

	w.publish(rec, out)
	return out
}

func (w *Worker) publish(rec model.Schedule, out Outcome) {
	if w.events == nil {
		return
	}
	ev := model.DispatchEvent{
		ScheduleID: rec.ID,
		CustomerID: rec.CustomerID,
		Status:     out.Status,
		Calls:      out.Calls,
		At:         w.clock.Now(),
	}
	if out.Err != nil {
		ev.Error = out.Err.Error()
	}
	if err := w.events.Publish(queue.TopicDispatches, ev); err != nil {
		w.log.Warn().Err(err).Str("schedule_id", rec.ID).Msg("failed to publish dispatch event")
	}
}
