package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/azizikri/deal-claim/internal/config"
	"github.com/azizikri/deal-claim/internal/domain"
	"github.com/azizikri/deal-claim/internal/usecase"
)

// Gateway implements usecase.ClaimGateway over Kafka request/reply. Replies
// arrive on this instance's reply topic and are matched by correlation id.
type Gateway struct {
	client      *kgo.Client
	cfg         config.KafkaConfig
	logger      zerolog.Logger
	pendingResp sync.Map
}

func NewGateway(cfg config.KafkaConfig, client *kgo.Client, logger zerolog.Logger) *Gateway {
	return &Gateway{
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("component", "kafka_gateway").Logger(),
	}
}

func (g *Gateway) newRequest(id domain.Identity) RequestPayload {
	return RequestPayload{
		SchemaVersion: SchemaVersion,
		CorrelationID: uuid.New().String(),
		ReplyTo:       ReplyTopic(g.cfg.InstanceID),
		Identity:      id,
	}
}

// IssueClaim keys the request by deal id so every claim on one deal lands on
// the same partition.
func (g *Gateway) IssueClaim(ctx context.Context, id domain.Identity, dealID string) (*domain.Claim, error) {
	req := g.newRequest(id)
	req.DealID = dealID

	resp, err := g.requestReply(ctx, TopicIssueRequest, []byte(dealID), req)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Claim, nil
}

func (g *Gateway) AdvanceStatus(ctx context.Context, actor domain.Identity, claimID string, target domain.ClaimStatus, notes string) (*domain.Claim, error) {
	req := g.newRequest(actor)
	req.ClaimID = claimID
	req.TargetStatus = target
	req.Notes = notes

	resp, err := g.requestReply(ctx, TopicAdvanceRequest, []byte(claimID), req)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Claim, nil
}

func (g *Gateway) ListUserClaims(ctx context.Context, id domain.Identity) ([]domain.ClaimView, error) {
	resp, err := g.requestReply(ctx, TopicListRequest, []byte(id.UserID), g.newRequest(id))
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	if resp.Claims == nil {
		return []domain.ClaimView{}, nil
	}
	return resp.Claims, nil
}

func (g *Gateway) GetClaim(ctx context.Context, actor domain.Identity, claimID string) (*domain.Claim, error) {
	req := g.newRequest(actor)
	req.ClaimID = claimID

	resp, err := g.requestReply(ctx, TopicGetRequest, []byte(claimID), req)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Claim, nil
}

func (g *Gateway) requestReply(ctx context.Context, topic string, key []byte, req RequestPayload) (*ResponsePayload, error) {
	respChan := make(chan *ResponsePayload, 1)
	g.pendingResp.Store(req.CorrelationID, respChan)
	defer g.pendingResp.Delete(req.CorrelationID)

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	record := &kgo.Record{
		Topic: topic,
		Key:   key,
		Value: payload,
	}

	if err := g.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return nil, fmt.Errorf("%w: produce %s: %v", domain.ErrTransient, topic, err)
	}

	return g.await(ctx, req.CorrelationID, respChan)
}

func (g *Gateway) await(ctx context.Context, correlationID string, respChan <-chan *ResponsePayload) (*ResponsePayload, error) {
	timer := time.NewTimer(g.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case resp := <-respChan:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%w: no reply for %s within %s", domain.ErrTransient, correlationID, g.cfg.RequestTimeout)
	}
}

func (g *Gateway) HandleResponse(payload []byte) {
	var resp ResponsePayload
	if err := json.Unmarshal(payload, &resp); err != nil {
		g.logger.Warn().Err(err).Msg("undecodable reply")
		return
	}

	if ch, ok := g.pendingResp.Load(resp.CorrelationID); ok {
		select {
		case ch.(chan *ResponsePayload) <- &resp:
		default:
		}
		return
	}

	g.logger.Debug().Str("correlation_id", resp.CorrelationID).Msg("no pending request for reply")
}

// ConsumeReplies feeds records from the reply topic into HandleResponse until
// the client is closed or ctx ends.
func (g *Gateway) ConsumeReplies(ctx context.Context, client *kgo.Client) {
	for {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		iter := fetches.RecordIter()
		for !iter.Done() {
			g.HandleResponse(iter.Next().Value)
		}
	}
}

var _ usecase.ClaimGateway = (*Gateway)(nil)
