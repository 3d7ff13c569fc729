package kafka

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/azizikri/deal-claim/internal/config"
)

// EnsureTopics creates the request, retry, DLQ and reply topics for this
// instance. Topics that already exist are left alone.
func EnsureTopics(ctx context.Context, client *kgo.Client, cfg config.KafkaConfig, logger zerolog.Logger) error {
	adm := kadm.NewClient(client)

	var topics []string
	for _, t := range RequestTopics() {
		topics = append(topics, t, t+TopicDLQSuffix)
	}
	topics = append(topics, RetryTopics()...)
	topics = append(topics, ReplyTopic(cfg.InstanceID))

	for _, topic := range topics {
		p := cfg.TopicPartitions
		if strings.HasSuffix(topic, TopicRetrySuffix) || strings.HasSuffix(topic, TopicDLQSuffix) {
			p = cfg.RetryPartitions
		}

		resp, err := adm.CreateTopics(ctx, int32(p), int16(cfg.ReplicationFactor), nil, topic)
		if err != nil {
			return fmt.Errorf("failed to create topic %s: %w", topic, err)
		}
		for _, detail := range resp {
			if detail.Err != nil && !strings.Contains(detail.Err.Error(), "already exists") {
				return fmt.Errorf("failed to create topic %s: %w", detail.Topic, detail.Err)
			}
		}
	}

	logger.Info().Int("topics", len(topics)).Msg("kafka topics ensured")
	return nil
}
