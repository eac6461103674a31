package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ledgerDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupchat_ledger_decisions_total",
			Help: "Quota pre-checks by outcome (allowed, denied).",
		},
		[]string{"outcome"},
	)

	tokensReconciled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupchat_tokens_reconciled_total",
			Help: "Tokens charged to accounts by cost category and usage source (reported, estimated).",
		},
		[]string{"category", "source"},
	)

	reservationsReclaimed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groupchat_reservations_reclaimed_total",
			Help: "Abandoned reservations released by the watchdog.",
		},
	)

	summarizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groupchat_summarizations_total",
			Help: "Summarization job runs by outcome.",
		},
		[]string{"outcome"},
	)

	contextTokens = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "groupchat_context_tokens",
			Help:    "Estimated tokens of assembled context windows.",
			Buckets: prometheus.ExponentialBuckets(64, 2, 10), // 64..32k
		},
	)

	lmLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groupchat_lm_call_duration_seconds",
			Help:    "Language model call latency by purpose (chat, summarization) and result.",
			Buckets: []float64{.25, .5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"purpose", "result"},
	)
)

func init() {
	prometheus.MustRegister(ledgerDecisions, tokensReconciled, reservationsReclaimed, summarizations, contextTokens, lmLatency)
}

// LedgerDecision counts a quota pre-check.
func LedgerDecision(allowed bool) {
	if allowed {
		ledgerDecisions.WithLabelValues("allowed").Inc()
		return
	}
	ledgerDecisions.WithLabelValues("denied").Inc()
}

// TokensReconciled counts tokens charged under category.
func TokensReconciled(category string, tokens int64, reported bool) {
	source := "estimated"
	if reported {
		source = "reported"
	}
	tokensReconciled.WithLabelValues(category, source).Add(float64(tokens))
}

// ReservationsReclaimed counts watchdog releases.
func ReservationsReclaimed(n int) { reservationsReclaimed.Add(float64(n)) }

// Summarization counts a job run; outcome is succeeded, failed, aborted or empty.
func Summarization(outcome string) { summarizations.WithLabelValues(outcome).Inc() }

// ContextTokens observes an assembled window's estimate.
func ContextTokens(n int) { contextTokens.Observe(float64(n)) }

// LMCall observes the latency of a model call.
func LMCall(purpose string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	lmLatency.WithLabelValues(purpose, result).Observe(time.Since(start).Seconds())
}
