//go:build integration

package producer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"voxid/internal/platform/kafka/producer"
	"voxid/pkg/testutil/containers"
)

type ProducerIntegrationSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
}

func TestProducerIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProducerIntegrationSuite))
}

func (s *ProducerIntegrationSuite) SetupSuite() {
	s.kafka = containers.GetManager().GetKafka(s.T())

	cfg := producer.DefaultConfig([]string{s.kafka.Brokers})
	cfg.DeliveryTimeout = 10 * time.Second
	prod, err := producer.New(cfg, nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *ProducerIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close(5 * time.Second)
	}
}

func (s *ProducerIntegrationSuite) TestProduceDeliversRecord() {
	ctx := context.Background()
	topic := "voxid-producer-test"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 1, 1))

	err := s.producer.Produce(ctx, &producer.Message{
		Topic:   topic,
		Key:     []byte("identity-1"),
		Value:   []byte(`{"action":"voice_enrolled"}`),
		Headers: map[string]string{"event": "voice_enrolled"},
	})
	s.Require().NoError(err)

	consumer, err := s.kafka.NewConsumer(ctx, "voxid-producer-test-group", topic)
	s.Require().NoError(err)
	defer consumer.Close()

	rec := s.kafka.WaitForMessage(ctx, consumer, 15*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == "identity-1"
	})
	s.Require().NotNil(rec)
	s.Equal(`{"action":"voice_enrolled"}`, string(rec.Value))
}

func (s *ProducerIntegrationSuite) TestPingAndClose() {
	ctx := context.Background()
	s.Require().NoError(s.producer.Ping(ctx))

	cfg := producer.DefaultConfig([]string{s.kafka.Brokers})
	p, err := producer.New(cfg, nil)
	s.Require().NoError(err)
	p.Close(time.Second)

	s.ErrorIs(p.Ping(ctx), producer.ErrClosed)
	s.ErrorIs(p.Produce(ctx, &producer.Message{Topic: "x"}), producer.ErrClosed)
}
