package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/poster-scheduler/internal/clock"
	"github.com/unclebandit/poster-scheduler/internal/config"
	"github.com/unclebandit/poster-scheduler/internal/db"
	"github.com/unclebandit/poster-scheduler/internal/logging"
	"github.com/unclebandit/poster-scheduler/internal/messaging"
	"github.com/unclebandit/poster-scheduler/internal/queue"
	"github.com/unclebandit/poster-scheduler/internal/repository"
	"github.com/unclebandit/poster-scheduler/internal/service"
)

const drainTimeout = 2 * time.Minute

// Run exactly one worker per database: ticks are serialized in-process only.
func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	log := logging.New(cfg.Log).With().Str("process", "worker").Logger()

	if err := cfg.RequireToken(); err != nil {
		log.Fatal().Err(err).Msg("messaging API not configured")
	}

	clk, err := clock.New(cfg.App.Timezone)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid timezone")
	}
	log.Info().
		Str("tz", clk.Location().String()).
		Time("now", clk.Now()).
		Time("host_now", time.Now()).
		Msg("timezone loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	events, closeEvents := openEvents(cfg, log)
	defer closeEvents()

	scheduleRepo := &repository.ScheduleRepository{DB: conn}
	sender := messaging.NewClient(cfg.Msgwapi, log)

	resolver := service.NewDueResolver(scheduleRepo, clk, log)
	worker := service.NewWorker(scheduleRepo, sender, events, clk, service.WorkerOptionsFromConfig(cfg), log)

	poller, err := service.NewPoller(clk, resolver, worker, cfg.Dispatch.Cron, log)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid dispatch cadence")
	}
	// Ticks get their own context so a signal lets the running tick finish.
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	if err := poller.Start(runCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to start poller")
	}
	log.Info().Str("media_mode", cfg.Dispatch.MediaMode).Msg("worker running, checking scheduled messages")

	<-ctx.Done()

	stopped := poller.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(drainTimeout):
		log.Warn().Msg("tick still running at shutdown, interrupting")
		cancelRun()
		<-stopped.Done()
	}
	log.Info().Msg("worker stopped")
}

// openEvents returns the dispatch outcome bus: RabbitMQ when AMQP_URL is set,
// otherwise an in-process queue that only logs outcomes.
func openEvents(cfg *config.Config, log zerolog.Logger) (queue.Queue, func()) {
	if cfg.AMQP.URL != "" {
		q, err := queue.NewAMQPQueue(cfg.AMQP.URL, log)
		if err == nil {
			log.Info().Str("queue", cfg.AMQP.Queue).Msg("publishing dispatch outcomes to RabbitMQ")
			return topicQueue{Queue: q, name: cfg.AMQP.Queue}, func() { q.Close() }
		}
		log.Error().Err(err).Msg("RabbitMQ unavailable, falling back to in-memory events")
	}

	q := queue.NewInMemoryQueue(log)
	if err := queue.StartDispatchLogSubscriber(q, log); err != nil {
		log.Error().Err(err).Msg("failed to subscribe dispatch logger")
	}
	return q, func() {}
}

// topicQueue routes the dispatch topic to the configured AMQP queue name.
type topicQueue struct {
	queue.Queue
	name string
}

func (t topicQueue) Publish(topic string, payload any) error {
	if topic == queue.TopicDispatches {
		topic = t.name
	}
	return t.Queue.Publish(topic, payload)
}
