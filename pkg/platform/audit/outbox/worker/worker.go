package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dataguard/internal/platform/kafka/producer"
	"dataguard/pkg/platform/audit/outbox"
	"dataguard/pkg/platform/audit/outbox/metrics"
	"dataguard/pkg/platform/tx"
)

// Worker polls the outbox table and publishes audit events to Kafka.
type Worker struct {
	store        outbox.Store
	publisher    producer.Publisher
	runner       tx.Runner
	topic        string
	batchSize    int
	pollInterval time.Duration
	keepFor      time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastTrim time.Time
}

// Option configures the Worker.
type Option func(*Worker)

// WithTopic sets the Kafka topic for publishing.
func WithTopic(topic string) Option {
	return func(w *Worker) {
		w.topic = topic
	}
}

// WithBatchSize sets the maximum number of entries to fetch per poll.
func WithBatchSize(size int) Option {
	return func(w *Worker) {
		w.batchSize = size
	}
}

// WithPollInterval sets the interval between polls.
func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		w.pollInterval = interval
	}
}

// WithRunner makes each poll a transaction so fetched rows stay locked until
// they are marked processed.
func WithRunner(r tx.Runner) Option {
	return func(w *Worker) {
		w.runner = r
	}
}

// WithRetention sets how long processed entries are kept before deletion.
// Zero disables the cleanup.
func WithRetention(d time.Duration) Option {
	return func(w *Worker) {
		w.keepFor = d
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// New creates a new outbox worker.
func New(store outbox.Store, pub producer.Publisher, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		store:        store,
		publisher:    pub,
		topic:        "dataguard.audit.events",
		batchSize:    100,
		pollInterval: 500 * time.Millisecond,
		keepFor:      7 * 24 * time.Hour,
		logger:       slog.Default(),
		ctx:          ctx,
		cancel:       cancel,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Start begins the polling loop in a background goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case <-ticker.C:
			w.PollOnce(w.ctx)
			w.trim(w.ctx)
			if err := w.UpdateMetrics(w.ctx); err != nil {
				w.logger.DebugContext(w.ctx, "failed to refresh outbox gauges", "error", err)
			}
		}
	}
}

// PollOnce fetches one batch and publishes it. It returns the number of
// entries published.
func (w *Worker) PollOnce(ctx context.Context) int {
	start := time.Now()
	published, fetched := 0, 0

	err := w.inTx(ctx, func(ctx context.Context) error {
		entries, err := w.store.FetchUnprocessed(ctx, w.batchSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		fetched = len(entries)

		for _, entry := range entries {
			if err := w.publishEntry(ctx, entry); err != nil {
				w.logger.ErrorContext(ctx, "failed to publish outbox entry",
					"id", entry.ID,
					"event_type", entry.EventType,
					"error", err,
				)
				if w.metrics != nil {
					w.metrics.Failed(metrics.StagePublish)
				}
				// Stop here so later entries of the same tenant are not published out of order.
				return nil
			}

			if err := w.store.MarkProcessed(ctx, entry.ID, time.Now().UTC()); err != nil {
				// Published but not marked: it will be re-published and consumers dedupe on the key.
				w.logger.ErrorContext(ctx, "failed to mark entry as processed",
					"id", entry.ID,
					"error", err,
				)
				if w.metrics != nil {
					w.metrics.Failed(metrics.StageMark)
				}
				return nil
			}

			published++
		}
		return nil
	})
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to fetch outbox entries", "error", err)
		if w.metrics != nil {
			w.metrics.Failed(metrics.StageFetch)
		}
	}

	if w.metrics != nil {
		w.metrics.Cycle(fetched, time.Since(start).Seconds())
	}
	return published
}

func (w *Worker) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if w.runner == nil {
		return fn(ctx)
	}
	return w.runner.RunInTx(ctx, fn)
}

func (w *Worker) publishEntry(ctx context.Context, entry *outbox.Entry) error {
	start := time.Now()

	msg := &producer.Message{
		Topic:   w.topic,
		Key:     entry.Key(),
		Value:   entry.Payload,
		Headers: entry.Headers(),
	}

	if err := w.publisher.Produce(ctx, msg); err != nil {
		return err
	}

	if w.metrics != nil {
		w.metrics.Relayed(entry.EventType, time.Since(start).Seconds())
	}
	return nil
}

// trim deletes processed entries older than the retention window, at most
// once per hour.
func (w *Worker) trim(ctx context.Context) {
	if w.keepFor <= 0 || time.Since(w.lastTrim) < time.Hour {
		return
	}
	w.lastTrim = time.Now()
	n, err := w.store.DeleteProcessedBefore(ctx, time.Now().UTC().Add(-w.keepFor))
	if err != nil {
		w.logger.WarnContext(ctx, "failed to trim outbox", "error", err)
		return
	}
	if n > 0 {
		w.logger.InfoContext(ctx, "trimmed processed outbox entries", "deleted", n)
	}
}

// drain processes remaining entries during shutdown.
func (w *Worker) drain() {
	w.logger.Info("draining outbox worker")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for ctx.Err() == nil {
		if w.PollOnce(ctx) == 0 {
			return
		}
	}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateMetrics refreshes the pending depth and oldest-pending age gauges.
func (w *Worker) UpdateMetrics(ctx context.Context) error {
	if w.metrics == nil {
		return nil
	}

	count, err := w.store.CountPending(ctx)
	if err != nil {
		return err
	}
	age, err := w.store.OldestPendingAge(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	w.metrics.Backlog(count, age.Seconds())
	return nil
}
