//go:build integration

package consumer_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dataguard/internal/platform/kafka/consumer"
	"dataguard/internal/platform/kafka/producer"
	"dataguard/pkg/testutil/containers"
)

type ConsumerIntegrationSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
	logger   *slog.Logger
}

func TestConsumerIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ConsumerIntegrationSuite))
}

func (s *ConsumerIntegrationSuite) SetupSuite() {
	s.kafka = containers.GetManager().GetKafka(s.T())
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	prod, err := producer.New(producer.Config{Brokers: s.kafka.Brokers}, s.logger)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *ConsumerIntegrationSuite) TearDownSuite() {
	_ = s.producer.Close()
}

func (s *ConsumerIntegrationSuite) TestRedeliversAfterHandlerError() {
	ctx := context.Background()
	topic := "consumer-redelivery"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 1, 1))

	var attempts, handled atomic.Int32
	handler := consumer.HandlerFunc(func(_ context.Context, msg *consumer.Message) error {
		if attempts.Add(1) == 1 {
			return context.DeadlineExceeded
		}
		handled.Add(1)
		return nil
	})

	s.Require().NoError(s.producer.Produce(ctx, &producer.Message{Topic: topic, Value: []byte("x")}))

	c, err := consumer.New(consumer.Config{Brokers: s.kafka.Brokers, GroupID: "redelivery", Topics: []string{topic}}, handler, s.logger)
	s.Require().NoError(err)
	c.Start(ctx)
	defer func() { _ = c.Stop(ctx) }()

	s.Eventually(func() bool { return handled.Load() == 1 }, 30*time.Second, 100*time.Millisecond)
	s.GreaterOrEqual(attempts.Load(), int32(2))
}
