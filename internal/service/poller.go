package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/unclebandit/poster-scheduler/internal/clock"
	"github.com/unclebandit/poster-scheduler/internal/logging"
	"github.com/unclebandit/poster-scheduler/internal/model"
)

// DefaultCadence fires once per minute, matching the minute-precision due check.
const DefaultCadence = "* * * * *"

type DueSetResolver interface {
	ResolveDue(ctx context.Context, now time.Time) ([]model.Schedule, error)
}

type RecordDispatcher interface {
	DispatchOne(ctx context.Context, rec model.Schedule) Outcome
}

// TickReport summarizes one dispatch tick.
type TickReport struct {
	Date    string
	Time    string
	Due     int
	Sent    int
	Failed  int
	Skipped int
	Took    time.Duration
	Err     error
	// Overlapped is set when the tick was dropped because the previous one
	// was still running.
	Overlapped bool
}

// Poller drives resolve-then-dispatch on a fixed cron cadence evaluated in
// the configured timezone. Ticks never overlap and never stop the loop.
type Poller struct {
	clock      *clock.Clock
	resolver   DueSetResolver
	dispatcher RecordDispatcher
	cadence    string
	log        zerolog.Logger

	tickMu sync.Mutex

	mu   sync.Mutex
	cron *cron.Cron
}

func NewPoller(clk *clock.Clock, resolver DueSetResolver, dispatcher RecordDispatcher, cadence string, log zerolog.Logger) (*Poller, error) {
	if cadence == "" {
		cadence = DefaultCadence
	}
	if _, err := cron.ParseStandard(cadence); err != nil {
		return nil, fmt.Errorf("invalid dispatch cadence %q: %w", cadence, err)
	}
	return &Poller{
		clock:      clk,
		resolver:   resolver,
		dispatcher: dispatcher,
		cadence:    cadence,
		log:        log.With().Str("component", "poller").Logger(),
	}, nil
}

// Start registers the tick and starts the cron loop. ctx is handed to every
// tick and should outlive Stop: cancelling it ends the running tick early.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return nil
	}

	cl := logging.CronLogger(p.log)
	c := cron.New(
		cron.WithLocation(p.clock.Location()),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(p.cadence, func() { p.Tick(ctx) }); err != nil {
		return fmt.Errorf("register dispatch tick: %w", err)
	}
	c.Start()
	p.cron = c

	p.log.Info().Str("cadence", p.cadence).Str("tz", p.clock.Location().String()).Msg("poller started")
	return nil
}

// Stop stops scheduling new ticks. The returned context is done once a
// running tick has finished.
func (p *Poller) Stop() context.Context {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()

	if c == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	p.log.Info().Msg("poller stopping")
	return c.Stop()
}

// Tick runs one resolve-and-dispatch pass. Records are dispatched
// sequentially; a failing record does not stop the rest, and a failing
// resolution only ends this tick. Once ctx is done no further record is
// started and the rest stay Pending.
func (p *Poller) Tick(ctx context.Context) (report TickReport) {
	if !p.tickMu.TryLock() {
		p.log.Warn().Msg("previous tick still running, skipping")
		return TickReport{Overlapped: true}
	}
	defer p.tickMu.Unlock()

	start := time.Now()
	now := p.clock.Now()
	report.Date, report.Time = p.clock.ToCivil(now)

	defer func() {
		if r := recover(); r != nil {
			report.Err = fmt.Errorf("tick panic: %v", r)
			p.log.Error().Err(report.Err).Msg("dispatch tick aborted")
		}
		report.Took = time.Since(start)
	}()

	p.log.Debug().Str("date", report.Date).Str("time", report.Time).Msg("checking scheduled messages")

	due, err := p.resolver.ResolveDue(ctx, now)
	if err != nil {
		report.Err = err
		p.log.Error().Err(err).Msg("error fetching schedules")
		return report
	}
	report.Due = len(due)
	if len(due) == 0 {
		p.log.Debug().Msg("no pending messages to send at this time")
		return report
	}

	for i, rec := range due {
		if err := ctx.Err(); err != nil {
			report.Skipped += len(due) - i
			p.log.Warn().Err(err).Int("left_pending", len(due)-i).Msg("tick interrupted, remaining schedules stay pending")
			break
		}
		out := p.dispatchIsolated(ctx, rec)
		switch out.Status {
		case model.StatusSent:
			report.Sent++
		case model.StatusFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}

	p.log.Info().
		Str("date", report.Date).
		Str("time", report.Time).
		Int("due", report.Due).
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Dur("took", time.Since(start)).
		Msg("dispatch tick finished")
	return report
}

func (p *Poller) dispatchIsolated(ctx context.Context, rec model.Schedule) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Str("schedule_id", rec.ID).Interface("panic", r).Msg("dispatch panicked")
			out = Outcome{ScheduleID: rec.ID, Status: rec.Status, Err: fmt.Errorf("dispatch panic: %v", r)}
		}
	}()
	return p.dispatcher.DispatchOne(ctx, rec)
}
