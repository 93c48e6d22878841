package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"dataguard/internal/platform/kafka/producer"
)

const (
	defaultMaxFailures uint32 = 5
	defaultOpenTimeout        = 30 * time.Second
	defaultInterval           = time.Minute
)

// BreakerConfig controls when the Kafka sink stops calling the broker.
type BreakerConfig struct {
	MaxFailures uint32
	Timeout     time.Duration
	Interval    time.Duration
}

// KafkaSink publishes notifications as JSON keyed by tenant. Repeated publish
// failures open a circuit so a broker outage fails fast instead of stalling
// purge runs.
type KafkaSink struct {
	publisher producer.Publisher
	topic     string
	breaker   *gobreaker.CircuitBreaker[struct{}]
}

func NewKafkaSink(publisher producer.Publisher, topic string, cfg BreakerConfig, logger *slog.Logger) *KafkaSink {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultOpenTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultInterval
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "notify:" + topic,
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return &KafkaSink{publisher: publisher, topic: topic, breaker: cb}
}

func (s *KafkaSink) Notify(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.publisher.Produce(ctx, &producer.Message{
			Topic:   s.topic,
			Key:     []byte(ev.TenantID.String()),
			Value:   body,
			Headers: map[string]string{"event_type": ev.Type},
		})
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("notification sink %q circuit open: %w", s.topic, err)
	}
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// State reports the breaker state for health checks.
func (s *KafkaSink) State() gobreaker.State {
	return s.breaker.State()
}
