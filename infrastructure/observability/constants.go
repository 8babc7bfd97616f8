package observability

// Metric name prefixes
const (
	MetricPrefix = "coinbet"
)

// Metric names
const (
	// Betting metrics
	BetsPlacedTotal    = MetricPrefix + "_bets_placed_total"
	CoinsStakedTotal   = MetricPrefix + "_coins_staked_total"
	BetsCancelledTotal = MetricPrefix + "_bets_cancelled_total"
	BetsSettledTotal   = MetricPrefix + "_bets_settled_total"
	CoinsPaidOutTotal  = MetricPrefix + "_coins_paid_out_total"

	// Settlement metrics
	SettlementFailuresTotal = MetricPrefix + "_settlement_failures_total"
	SettlementDuration      = MetricPrefix + "_settlement_duration_seconds"
	StakesReplayedTotal     = MetricPrefix + "_stakes_replayed_total"

	// HTTP metrics
	HTTPRequestsTotal   = MetricPrefix + "_http_requests_total"
	HTTPRequestDuration = MetricPrefix + "_http_request_duration_seconds"
)

// Label keys
const (
	LabelStatus = "status"
	LabelMethod = "method"
	LabelRoute  = "route"
)
