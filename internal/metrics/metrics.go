package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	claimsIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "claims_issued_total",
			Help: "Claims created by the ledger.",
		},
	)

	claimRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_rejections_total",
			Help: "Claim requests refused, by error code.",
		},
		[]string{"code"},
	)

	txRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_tx_retries_total",
			Help: "Ledger transactions retried after a transient store failure.",
		},
		[]string{"op"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_transitions_total",
			Help: "Successful claim status transitions by target status.",
		},
		[]string{"to"},
	)

	cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deal_snapshot_cache_requests_total",
			Help: "Deal snapshot cache lookups by result (hit/miss/error).",
		},
		[]string{"result"},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(claimsIssued, claimRejections, txRetries, transitions, cacheRequests)
	})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncClaimIssued() {
	claimsIssued.Inc()
}

func IncClaimRejected(code string) {
	claimRejections.WithLabelValues(code).Inc()
}

func IncTxRetry(op string) {
	txRetries.WithLabelValues(norm(op)).Inc()
}

func IncTransition(to string) {
	transitions.WithLabelValues(norm(to)).Inc()
}

func IncCacheRequest(result string) {
	cacheRequests.WithLabelValues(norm(result)).Inc()
}
