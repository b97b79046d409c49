// Package metrics holds the prometheus collectors for ledger activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	LedgerPostings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_postings_total",
			Help: "Ledger mutations committed, by operation",
		},
		[]string{"op"},
	)
	Settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Settled sales, by payment method",
		},
		[]string{"payment_method"},
	)
	Transfers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transfers_completed_total",
			Help: "Completed peer-to-peer transfers",
		},
	)
	WithdrawalTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "withdrawal_transitions_total",
			Help: "Withdrawal state changes, by resulting status",
		},
		[]string{"status"},
	)
	Rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "operations_rejected_total",
			Help: "Operations rejected with a domain error, by operation and kind",
		},
		[]string{"operation", "kind"},
	)
	OutboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_events_total",
			Help: "Outbox relay results, by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(LedgerPostings)
	prometheus.MustRegister(Settlements)
	prometheus.MustRegister(Transfers)
	prometheus.MustRegister(WithdrawalTransitions)
	prometheus.MustRegister(Rejections)
	prometheus.MustRegister(OutboxPublished)
}
