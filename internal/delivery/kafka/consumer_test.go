package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/azizikri/deal-claim/internal/config"
	"github.com/azizikri/deal-claim/internal/domain"
)

type fakeLedger struct {
	issueFn   func(ctx context.Context, id domain.Identity, dealID string) (*domain.Claim, error)
	advanceFn func(ctx context.Context, actor domain.Identity, claimID string, target domain.ClaimStatus, notes string) (*domain.Claim, error)
	listFn    func(ctx context.Context, id domain.Identity) ([]domain.ClaimView, error)
	getFn     func(ctx context.Context, actor domain.Identity, claimID string) (*domain.Claim, error)
}

func (f *fakeLedger) IssueClaim(ctx context.Context, id domain.Identity, dealID string) (*domain.Claim, error) {
	return f.issueFn(ctx, id, dealID)
}

func (f *fakeLedger) AdvanceStatus(ctx context.Context, actor domain.Identity, claimID string, target domain.ClaimStatus, notes string) (*domain.Claim, error) {
	return f.advanceFn(ctx, actor, claimID, target, notes)
}

func (f *fakeLedger) ListUserClaims(ctx context.Context, id domain.Identity) ([]domain.ClaimView, error) {
	return f.listFn(ctx, id)
}

func (f *fakeLedger) GetClaim(ctx context.Context, actor domain.Identity, claimID string) (*domain.Claim, error) {
	return f.getFn(ctx, actor, claimID)
}

func newTestConsumer(ledger *fakeLedger) *Consumer {
	return NewConsumer(config.KafkaConfig{MaxRetryAttempts: 2, RetryDelay: time.Second}, nil, ledger, zerolog.Nop())
}

func requestRecord(t *testing.T, topic string, req RequestPayload, headers ...kgo.RecordHeader) *kgo.Record {
	t.Helper()
	b, err := json.Marshal(req)
	require.NoError(t, err)
	return &kgo.Record{Topic: topic, Value: b, Headers: headers}
}

var verifiedUser = domain.Identity{UserID: "u1", IsVerified: true}

func TestHandle_IssueSuccess(t *testing.T) {
	ledger := &fakeLedger{
		issueFn: func(ctx context.Context, id domain.Identity, dealID string) (*domain.Claim, error) {
			assert.Equal(t, verifiedUser, id)
			return &domain.Claim{ID: "c1", UserID: id.UserID, DealID: dealID, Status: domain.StatusPending}, nil
		},
	}
	rec := requestRecord(t, TopicIssueRequest, RequestPayload{
		SchemaVersion: SchemaVersion, CorrelationID: "corr-1", ReplyTo: "claim.reply.a",
		Identity: verifiedUser, DealID: "d1",
	})

	req, resp, out := newTestConsumer(ledger).handle(context.Background(), rec)
	require.Equal(t, outcomeReply, out)
	assert.Equal(t, "claim.reply.a", req.ReplyTo)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "corr-1", resp.CorrelationID)
	require.NotNil(t, resp.Claim)
	assert.Equal(t, "d1", resp.Claim.DealID)
	assert.NoError(t, resp.Err())
}

func TestHandle_BusinessErrorIsReplied(t *testing.T) {
	ledger := &fakeLedger{
		issueFn: func(ctx context.Context, id domain.Identity, dealID string) (*domain.Claim, error) {
			return nil, domain.DenyAccess(domain.ReasonVerificationRequired)
		},
	}
	rec := requestRecord(t, TopicIssueRequest, RequestPayload{SchemaVersion: SchemaVersion, CorrelationID: "c", DealID: "d1"})

	_, resp, out := newTestConsumer(ledger).handle(context.Background(), rec)
	require.Equal(t, outcomeReply, out)
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, domain.CodeAccessDenied, resp.ErrorCode)
	assert.Equal(t, domain.ReasonVerificationRequired, resp.Reason)

	err := resp.Err()
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	assert.Equal(t, domain.ReasonVerificationRequired, domain.ReasonOf(err))
}

func TestHandle_TransientIsParkedUntilBudgetSpent(t *testing.T) {
	ledger := &fakeLedger{
		advanceFn: func(ctx context.Context, actor domain.Identity, claimID string, target domain.ClaimStatus, notes string) (*domain.Claim, error) {
			return nil, fmt.Errorf("%w: lock timeout", domain.ErrTransient)
		},
	}
	c := newTestConsumer(ledger)
	payload := RequestPayload{SchemaVersion: SchemaVersion, CorrelationID: "c", ClaimID: "c1", TargetStatus: domain.StatusApproved}

	_, _, out := c.handle(context.Background(), requestRecord(t, TopicAdvanceRequest, payload))
	assert.Equal(t, outcomeRetry, out)

	_, _, out = c.handle(context.Background(), requestRecord(t, TopicAdvanceRequest, payload,
		kgo.RecordHeader{Key: AttemptHeader, Value: []byte("1")}))
	assert.Equal(t, outcomeRetry, out)

	_, resp, out := c.handle(context.Background(), requestRecord(t, TopicAdvanceRequest, payload,
		kgo.RecordHeader{Key: AttemptHeader, Value: []byte("2")}))
	require.Equal(t, outcomeReply, out)
	assert.Equal(t, domain.CodeTransient, resp.ErrorCode)
	assert.ErrorIs(t, resp.Err(), domain.ErrTransient)
}

func TestHandle_MalformedGoesToDLQ(t *testing.T) {
	c := newTestConsumer(&fakeLedger{})

	_, resp, out := c.handle(context.Background(), &kgo.Record{Topic: TopicIssueRequest, Value: []byte("{not json")})
	assert.Equal(t, outcomeDead, out)
	assert.Equal(t, domain.CodeInvalidRequest, resp.ErrorCode)

	_, resp, out = c.handle(context.Background(), requestRecord(t, TopicIssueRequest, RequestPayload{SchemaVersion: 99}))
	assert.Equal(t, outcomeDead, out)
	assert.Equal(t, domain.CodeInvalidRequest, resp.ErrorCode)

	_, _, out = c.handle(context.Background(), requestRecord(t, "claim.unknown.req", RequestPayload{SchemaVersion: SchemaVersion}))
	assert.Equal(t, outcomeDead, out)
}

func TestHandle_ListAndGet(t *testing.T) {
	ledger := &fakeLedger{
		listFn: func(ctx context.Context, id domain.Identity) ([]domain.ClaimView, error) {
			return []domain.ClaimView{{Claim: domain.Claim{ID: "c2"}}, {Claim: domain.Claim{ID: "c1"}}}, nil
		},
		getFn: func(ctx context.Context, actor domain.Identity, claimID string) (*domain.Claim, error) {
			return nil, domain.ErrNotFound
		},
	}
	c := newTestConsumer(ledger)

	_, resp, _ := c.handle(context.Background(), requestRecord(t, TopicListRequest, RequestPayload{SchemaVersion: SchemaVersion, Identity: verifiedUser}))
	require.Len(t, resp.Claims, 2)
	assert.Equal(t, "c2", resp.Claims[0].ID)

	_, resp, _ = c.handle(context.Background(), requestRecord(t, TopicGetRequest, RequestPayload{SchemaVersion: SchemaVersion, ClaimID: "x"}))
	assert.ErrorIs(t, resp.Err(), domain.ErrNotFound)
}

func TestRetryHeaders(t *testing.T) {
	nextAt := time.Date(2025, 5, 1, 10, 0, 0, 123, time.UTC)
	in := []kgo.RecordHeader{
		{Key: "trace", Value: []byte("abc")},
		{Key: AttemptHeader, Value: []byte("1")},
		{Key: RetryHeaderNextAt, Value: []byte("stale")},
	}
	rec := &kgo.Record{Headers: retryHeaders(in, nextAt, 2)}

	assert.Len(t, rec.Headers, 3)
	assert.Equal(t, 2, attemptOf(rec))
	got, ok := retryNextAt(rec)
	require.True(t, ok)
	assert.True(t, got.Equal(nextAt))
	v, ok := headerValue(rec, "trace")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
}

func TestHeaderParsingTolerance(t *testing.T) {
	rec := &kgo.Record{Headers: []kgo.RecordHeader{
		{Key: AttemptHeader, Value: []byte("nope")},
		{Key: RetryHeaderNextAt, Value: []byte("yesterday")},
	}}
	assert.Equal(t, 0, attemptOf(rec))
	_, ok := retryNextAt(rec)
	assert.False(t, ok)
	assert.Equal(t, 0, attemptOf(&kgo.Record{}))
}

func TestTopicNaming(t *testing.T) {
	assert.Equal(t, TopicIssueRetry, retryTopicFor(TopicIssueRequest))
	assert.Equal(t, TopicGetRequest, requestTopicFor(TopicGetRetry))
	assert.Equal(t, "claim.reply.node-1", ReplyTopic("node-1"))
	for i, req := range RequestTopics() {
		assert.Equal(t, RetryTopics()[i], retryTopicFor(req))
	}
}

func TestResponseErr_UnknownCode(t *testing.T) {
	resp := &ResponsePayload{Status: StatusError, ErrorCode: "SOMETHING_NEW", ErrorMessage: "boom"}
	err := resp.Err()
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
	assert.False(t, errors.Is(err, domain.ErrTransient))
}
