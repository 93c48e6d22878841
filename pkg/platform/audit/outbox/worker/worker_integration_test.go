//go:build integration

package worker_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"dataguard/internal/platform/kafka/producer"
	id "dataguard/pkg/domain"
	"dataguard/pkg/platform/audit"
	outboxpostgres "dataguard/pkg/platform/audit/outbox/store/postgres"
	"dataguard/pkg/platform/audit/outbox/worker"
	auditpostgres "dataguard/pkg/platform/audit/store/postgres"
	"dataguard/pkg/platform/tx"
	"dataguard/pkg/testutil/containers"
)

type WorkerIntegrationSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	kafka    *containers.KafkaContainer
	outbox   *outboxpostgres.Store
	trail    *audit.Trail
	runner   *tx.PostgresRunner
	producer *producer.Producer
}

func TestWorkerIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(WorkerIntegrationSuite))
}

func (s *WorkerIntegrationSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.kafka = mgr.GetKafka(s.T())

	s.runner = tx.NewPostgresRunner(s.postgres.DB, 5*time.Second)
	s.outbox = outboxpostgres.New(s.postgres.DB)
	s.trail = audit.NewTrail(auditpostgres.New(s.postgres.DB, s.runner, auditpostgres.WithOutbox(s.outbox)), nil)

	prod, err := producer.New(producer.Config{
		Brokers:         s.kafka.Brokers,
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	}, nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *WorkerIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		_ = s.producer.Close()
	}
}

func (s *WorkerIntegrationSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *WorkerIntegrationSuite) startWorker(topic string, interval time.Duration) *worker.Worker {
	w := worker.New(s.outbox, s.producer,
		worker.WithTopic(topic),
		worker.WithPollInterval(interval),
		worker.WithBatchSize(10),
		worker.WithRunner(s.runner),
	)
	w.Start()
	return w
}

func (s *WorkerIntegrationSuite) stop(w *worker.Worker) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.Require().NoError(w.Stop(ctx))
}

func (s *WorkerIntegrationSuite) pending() int64 {
	n, err := s.outbox.CountPending(context.Background())
	s.Require().NoError(err)
	return n
}

// TestAuditEventReachesKafka follows an event from the audit append through
// the outbox to the topic.
func (s *WorkerIntegrationSuite) TestAuditEventReachesKafka() {
	ctx := context.Background()
	topic := "test-audit-relay"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 1, 1))
	tenant := id.NewTenantID()

	ev, err := s.trail.Append(ctx, audit.Event{
		TenantID:   tenant,
		Action:     audit.ActionDSRRequested,
		TargetType: audit.TargetDSR,
		TargetID:   "r-1",
	})
	s.Require().NoError(err)
	s.Equal(int64(1), s.pending())

	w := s.startWorker(topic, 50*time.Millisecond)
	s.Eventually(func() bool { return s.pending() == 0 }, 5*time.Second, 50*time.Millisecond)
	s.stop(w)

	consumer, err := s.kafka.NewConsumer(ctx, "test-audit-relay-consumer", topic)
	s.Require().NoError(err)
	defer consumer.Close()

	record := s.kafka.WaitForMessage(ctx, consumer, 5*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == tenant.String()
	})
	s.Require().NotNil(record, "audit event should be on the topic")

	var relayed audit.Event
	s.Require().NoError(json.Unmarshal(record.Value, &relayed))
	s.Equal(ev.Hash, relayed.Hash)
	s.Equal(int64(1), relayed.Seq)

	headers := make(map[string]string)
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	s.Equal(audit.TargetTenant, headers["aggregate_type"])
	s.Equal(string(audit.ActionDSRRequested), headers["event_type"])
}

// TestRolledBackAppendLeavesNoOutboxRow checks the outbox row shares the
// audit transaction.
func (s *WorkerIntegrationSuite) TestRolledBackAppendLeavesNoOutboxRow() {
	ctx := context.Background()

	_ = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		_, err := s.trail.Append(ctx, audit.Event{TenantID: id.NewTenantID(), Action: audit.ActionRecordPurged})
		s.Require().NoError(err)
		return context.Canceled
	})

	s.Zero(s.pending())
}

func (s *WorkerIntegrationSuite) TestDrainOnShutdown() {
	ctx := context.Background()
	topic := "test-audit-drain"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 1, 1))

	w := s.startWorker(topic, 10*time.Second)
	_, err := s.trail.Append(ctx, audit.Event{TenantID: id.NewTenantID(), Action: audit.ActionConsentRecorded})
	s.Require().NoError(err)
	s.Equal(int64(1), s.pending())

	s.stop(w)

	s.Zero(s.pending())
}

// TestConcurrentWorkersShareTheBacklog relies on FOR UPDATE SKIP LOCKED.
func (s *WorkerIntegrationSuite) TestConcurrentWorkersShareTheBacklog() {
	ctx := context.Background()
	topic := "test-audit-concurrent"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 1, 1))

	for i := 0; i < 20; i++ {
		_, err := s.trail.Append(ctx, audit.Event{TenantID: id.NewTenantID(), Action: audit.ActionRecordPurged})
		s.Require().NoError(err)
	}

	w1 := s.startWorker(topic, 50*time.Millisecond)
	w2 := s.startWorker(topic, 50*time.Millisecond)
	s.Eventually(func() bool { return s.pending() == 0 }, 15*time.Second, 100*time.Millisecond)
	s.stop(w1)
	s.stop(w2)
}
