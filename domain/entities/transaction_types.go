package entities

// TransactionType represents the type of balance change
type TransactionType string

const (
	TransactionTypeInitial         TransactionType = "initial"
	TransactionTypeBetPlaced       TransactionType = "bet_placed"
	TransactionTypeBetRefund       TransactionType = "bet_refund"
	TransactionTypeBetVoid         TransactionType = "bet_void"
	TransactionTypeBetWin          TransactionType = "bet_win"
	TransactionTypeAdminAdjustment TransactionType = "admin_adjustment"
)

// IsWinType returns true if the transaction type represents a win
func (tt TransactionType) IsWinType() bool {
	return tt == TransactionTypeBetWin
}

// IsBettingRelated returns true for debits and credits caused by bets
func (tt TransactionType) IsBettingRelated() bool {
	switch tt {
	case TransactionTypeBetPlaced, TransactionTypeBetRefund, TransactionTypeBetVoid, TransactionTypeBetWin:
		return true
	}
	return false
}

// IsSystemGenerated returns true for changes not caused by the user's own actions
func (tt TransactionType) IsSystemGenerated() bool {
	return tt == TransactionTypeInitial || tt == TransactionTypeAdminAdjustment
}
