//go:build integration

package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"onboard/internal/platform/config"
	"onboard/internal/platform/kafka"
	"onboard/pkg/testutil/containers"
)

func TestKafkaPublisher(t *testing.T) {
	broker := containers.NewRedpandaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	const topic = "onboarding.status"
	producer, err := kafka.NewProducer(config.KafkaConfig{Brokers: broker.Brokers, Topic: topic})
	require.NoError(t, err)
	defer producer.Close()
	require.NoError(t, kafka.EnsureTopic(ctx, producer, topic, 1))
	require.NoError(t, kafka.EnsureTopic(ctx, producer, topic, 1), "creating an existing topic is not an error")

	pub := NewKafkaPublisher(producer, topic)
	sent := Event{ProcessID: "5b0f4c1e", Status: "COMPLETED", OccurredAt: time.Now().UTC().Truncate(time.Millisecond)}
	require.NoError(t, pub.Publish(ctx, sent))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())
	records := fetches.Records()
	require.Len(t, records, 1)

	assert.Equal(t, sent.ProcessID, string(records[0].Key))
	var got Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, sent.Status, got.Status)
	assert.True(t, sent.OccurredAt.Equal(got.OccurredAt))
}
