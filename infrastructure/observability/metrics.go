package observability

import (
	"net/http"
	"strconv"
	"time"

	"coinbet/domain/entities"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records betting and operator API measurements in Prometheus
type Metrics struct {
	betsPlaced         prometheus.Counter
	coinsStaked        prometheus.Counter
	betsCancelled      prometheus.Counter
	betsSettled        *prometheus.CounterVec
	coinsPaidOut       prometheus.Counter
	settlementFailures prometheus.Counter
	settlementDuration prometheus.Histogram
	stakesReplayed     prometheus.Counter
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// NewMetrics registers every collector on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		betsPlaced: factory.NewCounter(prometheus.CounterOpts{
			Name: BetsPlacedTotal,
			Help: "Total number of accepted bets",
		}),
		coinsStaked: factory.NewCounter(prometheus.CounterOpts{
			Name: CoinsStakedTotal,
			Help: "Total coins debited for accepted bets",
		}),
		betsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: BetsCancelledTotal,
			Help: "Total number of bets cancelled by their owners",
		}),
		betsSettled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: BetsSettledTotal,
			Help: "Total number of bets settled, by outcome",
		}, []string{LabelStatus}),
		coinsPaidOut: factory.NewCounter(prometheus.CounterOpts{
			Name: CoinsPaidOutTotal,
			Help: "Total coins credited to winning bets",
		}),
		settlementFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: SettlementFailuresTotal,
			Help: "Settlements that stopped part way and were left for reconciliation",
		}),
		settlementDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    SettlementDuration,
			Help:    "Time to settle every bet of a market",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		stakesReplayed: factory.NewCounter(prometheus.CounterOpts{
			Name: StakesReplayedTotal,
			Help: "Stakes recorded by the reconciliation worker instead of the placement path",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: HTTPRequestsTotal,
			Help: "Total number of operator API requests",
		}, []string{LabelMethod, LabelRoute, LabelStatus}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    HTTPRequestDuration,
			Help:    "Operator API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{LabelMethod, LabelRoute}),
	}
}

func (m *Metrics) RecordBetPlaced(amount int64) {
	m.betsPlaced.Inc()
	m.coinsStaked.Add(float64(amount))
}

func (m *Metrics) RecordBetCancelled() {
	m.betsCancelled.Inc()
}

func (m *Metrics) RecordBetSettled(status entities.BetStatus, payout int64) {
	m.betsSettled.WithLabelValues(string(status)).Inc()
	if payout > 0 {
		m.coinsPaidOut.Add(float64(payout))
	}
}

func (m *Metrics) RecordSettlementFailure() {
	m.settlementFailures.Inc()
}

func (m *Metrics) RecordStakeReplayed() {
	m.stakesReplayed.Inc()
}

func (m *Metrics) ObserveSettlementDuration(d time.Duration) {
	m.settlementDuration.Observe(d.Seconds())
}

// ObserveHTTPRequest records one operator API request. route is the matched pattern, not the raw path.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// WrapResponseWriter returns a writer that remembers the status code written through it
func WrapResponseWriter(w http.ResponseWriter) (http.ResponseWriter, func() int) {
	rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
	return rec, func() int { return rec.statusCode }
}
