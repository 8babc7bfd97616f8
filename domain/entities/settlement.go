package entities

// SettlementTotals aggregates the settled bets of a market
type SettlementTotals struct {
	Settled     int   `json:"settled"`
	Won         int   `json:"won"`
	Lost        int   `json:"lost"`
	TotalPayout int64 `json:"totalPayout"`
}

// SettlementResult is returned by market settlement.
// Totals cover every settled bet of the market so repeated runs report the same numbers.
// NewlySettled counts only the bets this run moved out of active.
type SettlementResult struct {
	MarketID     int64  `json:"marketId"`
	Result       string `json:"result"`
	SettlementTotals
	NewlySettled int `json:"newlySettled"`
	Failed       int `json:"failed"`
}

// OptionSummary aggregates the bets placed on one option
type OptionSummary struct {
	Name            string  `json:"name"`
	Odds            float64 `json:"odds"`
	Count           int64   `json:"count"`
	Amount          int64   `json:"amount"`
	PotentialPayout int64   `json:"potentialPayout"`
}

// MarketSummary is the administrative audit view of a market's bets
type MarketSummary struct {
	MarketID    int64            `json:"marketId"`
	Title       string           `json:"title"`
	Status      MarketStatus     `json:"status"`
	Result      *string          `json:"result,omitempty"`
	TotalBets   int64            `json:"totalBets"`
	TotalAmount int64            `json:"totalAmount"`
	Options     []*OptionSummary `json:"options"`
}

// BetSettlement is the outcome of settling one bet.
// Applied is false when the bet had already left the active state.
type BetSettlement struct {
	Bet     *Bet
	Payout  int64
	Applied bool
}
