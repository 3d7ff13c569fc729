package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/azizikri/deal-claim/internal/config"
	"github.com/azizikri/deal-claim/internal/domain"
	"github.com/azizikri/deal-claim/internal/usecase"
)

type outcome int

const (
	outcomeReply outcome = iota
	outcomeRetry
	outcomeDead
)

// Consumer serves claim requests from the request topics and answers on the
// caller's reply topic. Transient ledger failures are parked on the retry
// topic; records that cannot be decoded go to the DLQ.
type Consumer struct {
	client *kgo.Client
	cfg    config.KafkaConfig
	ledger usecase.ClaimGateway
	logger zerolog.Logger
	now    func() time.Time
}

func NewConsumer(cfg config.KafkaConfig, client *kgo.Client, ledger usecase.ClaimGateway, logger zerolog.Logger) *Consumer {
	return &Consumer{
		client: client,
		cfg:    cfg,
		ledger: ledger,
		logger: logger.With().Str("component", "kafka_consumer").Logger(),
		now:    time.Now,
	}
}

func (c *Consumer) Start(ctx context.Context) {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error().Err(err).Str("topic", topic).Int32("partition", partition).Msg("poll failed")
		})

		iter := fetches.RecordIter()
		for !iter.Done() {
			c.processRecord(ctx, iter.Next())
		}

		if err := c.client.CommitRecords(ctx, fetches.Records()...); err != nil {
			c.logger.Error().Err(err).Msg("commit failed")
		}
	}
}

// StartRetry moves parked records back onto their request topic once their
// x-next-at time has passed.
func (c *Consumer) StartRetry(ctx context.Context) {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		iter := fetches.RecordIter()
		for !iter.Done() {
			record := iter.Next()

			if nextAt, ok := retryNextAt(record); ok {
				if wait := nextAt.Sub(c.now()); wait > 0 {
					select {
					case <-time.After(wait):
					case <-ctx.Done():
						return
					}
				}
			}

			requeued := &kgo.Record{
				Topic:   requestTopicFor(record.Topic),
				Key:     record.Key,
				Value:   record.Value,
				Headers: record.Headers,
			}
			if err := c.client.ProduceSync(ctx, requeued).FirstErr(); err != nil {
				c.logger.Error().Err(err).Str("topic", requeued.Topic).Msg("requeue failed")
			}
		}
		if err := c.client.CommitRecords(ctx, fetches.Records()...); err != nil {
			c.logger.Error().Err(err).Msg("commit retry records failed")
		}
	}
}

func (c *Consumer) processRecord(ctx context.Context, record *kgo.Record) {
	req, resp, out := c.handle(ctx, record)
	switch out {
	case outcomeRetry:
		c.requeue(ctx, record)
	case outcomeDead:
		c.deadLetter(ctx, record, resp.ErrorMessage)
		if req.ReplyTo != "" {
			c.sendResponse(ctx, req.ReplyTo, resp)
		}
	default:
		c.sendResponse(ctx, req.ReplyTo, resp)
	}
}

// handle decodes and executes one request without touching Kafka.
func (c *Consumer) handle(ctx context.Context, record *kgo.Record) (RequestPayload, *ResponsePayload, outcome) {
	var req RequestPayload
	if err := json.Unmarshal(record.Value, &req); err != nil {
		return req, errorResponse("", fmt.Errorf("%w: malformed payload", domain.ErrInvalidRequest)), outcomeDead
	}
	if req.SchemaVersion != SchemaVersion {
		return req, errorResponse(req.CorrelationID,
			fmt.Errorf("%w: unsupported schema version %d", domain.ErrInvalidRequest, req.SchemaVersion)), outcomeDead
	}

	resp := successResponse(req.CorrelationID)
	var err error
	switch record.Topic {
	case TopicIssueRequest:
		resp.Claim, err = c.ledger.IssueClaim(ctx, req.Identity, req.DealID)
	case TopicAdvanceRequest:
		resp.Claim, err = c.ledger.AdvanceStatus(ctx, req.Identity, req.ClaimID, req.TargetStatus, req.Notes)
	case TopicListRequest:
		resp.Claims, err = c.ledger.ListUserClaims(ctx, req.Identity)
	case TopicGetRequest:
		resp.Claim, err = c.ledger.GetClaim(ctx, req.Identity, req.ClaimID)
	default:
		return req, errorResponse(req.CorrelationID,
			fmt.Errorf("%w: unknown topic %s", domain.ErrInvalidRequest, record.Topic)), outcomeDead
	}

	if err != nil {
		if errors.Is(err, domain.ErrTransient) && attemptOf(record) < c.cfg.MaxRetryAttempts {
			return req, nil, outcomeRetry
		}
		return req, errorResponse(req.CorrelationID, err), outcomeReply
	}
	return req, resp, outcomeReply
}

func (c *Consumer) requeue(ctx context.Context, record *kgo.Record) {
	attempt := attemptOf(record) + 1
	retry := &kgo.Record{
		Topic:   retryTopicFor(record.Topic),
		Key:     record.Key,
		Value:   record.Value,
		Headers: retryHeaders(record.Headers, c.now().Add(c.cfg.RetryDelay), attempt),
	}
	if err := c.client.ProduceSync(ctx, retry).FirstErr(); err != nil {
		c.logger.Error().Err(err).Str("topic", retry.Topic).Msg("park for retry failed")
		return
	}
	c.logger.Debug().Str("topic", record.Topic).Int("attempt", attempt).Msg("request parked for retry")
}

func (c *Consumer) sendResponse(ctx context.Context, topic string, resp *ResponsePayload) {
	if topic == "" {
		return
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error().Err(err).Msg("encode response failed")
		return
	}
	record := &kgo.Record{
		Topic: topic,
		Value: payload,
	}
	if err := c.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		c.logger.Error().Err(err).Str("topic", topic).Msg("send response failed")
	}
}

func (c *Consumer) deadLetter(ctx context.Context, record *kgo.Record, reason string) {
	dlq := &kgo.Record{
		Topic: record.Topic + TopicDLQSuffix,
		Key:   record.Key,
		Value: record.Value,
		Headers: []kgo.RecordHeader{
			{Key: ErrorHeaderKey, Value: []byte(reason)},
		},
	}
	if err := c.client.ProduceSync(ctx, dlq).FirstErr(); err != nil {
		c.logger.Error().Err(err).Str("topic", dlq.Topic).Msg("dead-letter failed")
	}
}

func headerValue(record *kgo.Record, key string) (string, bool) {
	for _, h := range record.Headers {
		if h.Key == key {
			return string(h.Value), true
		}
	}
	return "", false
}

func retryNextAt(record *kgo.Record) (time.Time, bool) {
	v, ok := headerValue(record, RetryHeaderNextAt)
	if !ok {
		return time.Time{}, false
	}
	nextAt, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false
	}
	return nextAt, true
}

func attemptOf(record *kgo.Record) int {
	v, ok := headerValue(record, AttemptHeader)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// retryHeaders replaces the retry bookkeeping headers and keeps the rest.
func retryHeaders(in []kgo.RecordHeader, nextAt time.Time, attempt int) []kgo.RecordHeader {
	out := make([]kgo.RecordHeader, 0, len(in)+2)
	for _, h := range in {
		if h.Key == RetryHeaderNextAt || h.Key == AttemptHeader {
			continue
		}
		out = append(out, h)
	}
	return append(out,
		kgo.RecordHeader{Key: RetryHeaderNextAt, Value: []byte(nextAt.UTC().Format(time.RFC3339Nano))},
		kgo.RecordHeader{Key: AttemptHeader, Value: []byte(strconv.Itoa(attempt))},
	)
}

func retryTopicFor(requestTopic string) string {
	return strings.TrimSuffix(requestTopic, TopicRequestSuffix) + TopicRetrySuffix
}

func requestTopicFor(retryTopic string) string {
	return strings.TrimSuffix(retryTopic, TopicRetrySuffix) + TopicRequestSuffix
}
