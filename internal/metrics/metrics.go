package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dex_gateway_submissions_total", Help: "Transactions submitted, by kind and outcome"},
		[]string{"kind", "outcome"},
	)
	QuoteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "dex_gateway_quote_duration_seconds", Help: "Router quote round-trip duration"},
		[]string{"flow"},
	)
	QuotesSuperseded = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dex_gateway_quotes_superseded_total", Help: "Quote responses discarded because the input changed mid-flight"},
	)
	PriceFetchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dex_gateway_price_fetch_failures_total", Help: "Price feed fetches that returned no usable price"},
		[]string{"symbol"},
	)
	LedgerReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dex_gateway_ledger_reads_total", Help: "Contract reads, by function and result"},
		[]string{"function", "result"},
	)
)

func init() {
	prometheus.MustRegister(SubmissionsTotal, QuoteDuration, QuotesSuperseded, PriceFetchFailures, LedgerReads)
}
