package queue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/poster-scheduler/internal/model"
)

// TopicDispatches carries a model.DispatchEvent per terminal dispatch outcome.
const TopicDispatches = "schedule_dispatches"

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// InMemoryQueue delivers to subscribers in-process with retry
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error

	MaxRetries int
	Backoff    time.Duration
	log        zerolog.Logger
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(log zerolog.Logger) *InMemoryQueue {
	return &InMemoryQueue{
		handlers:   make(map[string][]func(payload any) error),
		MaxRetries: 3,
		Backoff:    500 * time.Millisecond,
		log:        log.With().Str("component", "queue").Logger(),
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Topic      string
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish hands the payload to every subscriber of topic
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := append([]func(payload any) error(nil), q.handlers[topic]...)
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		job := JobPayload{Topic: topic, Payload: payload, MaxRetries: q.MaxRetries}
		go q.processJob(handler, job)
	}

	return nil
}

// processJob retries a failing handler with linear backoff
func (q *InMemoryQueue) processJob(handler func(payload any) error, job JobPayload) {
	for {
		err := handler(job.Payload)
		if err == nil {
			return
		}

		job.RetryCount++
		if job.RetryCount > job.MaxRetries {
			q.log.Error().Err(err).Str("topic", job.Topic).Int("attempts", job.RetryCount).Msg("job permanently failed")
			return
		}
		q.log.Warn().Err(err).Str("topic", job.Topic).Int("attempt", job.RetryCount).Int("max_retries", job.MaxRetries).Msg("job failed, retrying")

		time.Sleep(time.Duration(job.RetryCount) * q.Backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// StartDispatchLogSubscriber logs every dispatch outcome published on q.
func StartDispatchLogSubscriber(q Queue, log zerolog.Logger) error {
	return q.Subscribe(TopicDispatches, func(payload any) error {
		ev, err := decodeDispatchEvent(payload)
		if err != nil {
			log.Warn().Err(err).Str("type", fmt.Sprintf("%T", payload)).Msg("unexpected dispatch payload")
			return nil
		}
		log.Info().
			Str("schedule_id", ev.ScheduleID).
			Str("customer_id", ev.CustomerID).
			Str("status", string(ev.Status)).
			Str("error", ev.Error).
			Int("calls", ev.Calls).
			Time("at", ev.At).
			Msg("dispatch outcome")
		return nil
	})
}

// decodeDispatchEvent accepts the event itself (in-memory queue) or its JSON
// body (AMQP deliveries).
func decodeDispatchEvent(payload any) (model.DispatchEvent, error) {
	switch p := payload.(type) {
	case model.DispatchEvent:
		return p, nil
	case json.RawMessage:
		var ev model.DispatchEvent
		err := json.Unmarshal(p, &ev)
		return ev, err
	case []byte:
		var ev model.DispatchEvent
		err := json.Unmarshal(p, &ev)
		return ev, err
	}
	return model.DispatchEvent{}, fmt.Errorf("unsupported payload %T", payload)
}
