package entities

import (
	"errors"
	"time"
)

// RelatedType represents what type of entity the related_id refers to
type RelatedType string

const (
	RelatedTypeBet    RelatedType = "bet"
	RelatedTypeMarket RelatedType = "market"
)

// BalanceHistory represents a historical balance change
type BalanceHistory struct {
	ID                  int64           `db:"id"`
	UserID              int64           `db:"user_id"`
	BalanceBefore       int64           `db:"balance_before"`
	BalanceAfter        int64           `db:"balance_after"`
	ChangeAmount        int64           `db:"change_amount"`
	TransactionType     TransactionType `db:"transaction_type"`
	TransactionMetadata map[string]any  `db:"transaction_metadata"`
	RelatedID           *int64          `db:"related_id"`
	RelatedType         *RelatedType    `db:"related_type"`
	CreatedAt           time.Time       `db:"created_at"`
}

// RelatedTo links the history entry to another entity
func (bh *BalanceHistory) RelatedTo(relatedType RelatedType, id int64) *BalanceHistory {
	bh.RelatedType = &relatedType
	bh.RelatedID = &id
	return bh
}

// ValidateTransaction performs basic validation on the transaction
func (bh *BalanceHistory) ValidateTransaction() error {
	if bh.ChangeAmount == 0 && bh.TransactionType != TransactionTypeInitial {
		return errors.New("change amount cannot be zero")
	}

	if bh.BalanceAfter != bh.BalanceBefore+bh.ChangeAmount {
		return errors.New("balance calculation is inconsistent")
	}

	if bh.BalanceAfter < 0 {
		return errors.New("balance cannot go negative")
	}

	return nil
}

// LedgerEntry describes why a balance moves
type LedgerEntry struct {
	TransactionType TransactionType
	RelatedType     *RelatedType
	RelatedID       *int64
	Metadata        map[string]any
}

// NewLedgerEntry creates an entry linked to a related entity
func NewLedgerEntry(transactionType TransactionType, relatedType RelatedType, relatedID int64) LedgerEntry {
	return LedgerEntry{
		TransactionType: transactionType,
		RelatedType:     &relatedType,
		RelatedID:       &relatedID,
	}
}
