package services

import (
	"context"
	"fmt"

	"coinbet/domain"
	"coinbet/domain/entities"
	"coinbet/domain/interfaces"
	"coinbet/domain/utils"

	"github.com/jonboulle/clockwork"
)

type ledgerService struct {
	userRepo           interfaces.UserRepository
	balanceHistoryRepo interfaces.BalanceHistoryRepository
	eventPublisher     interfaces.EventPublisher
	clock              clockwork.Clock
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	userRepo interfaces.UserRepository,
	balanceHistoryRepo interfaces.BalanceHistoryRepository,
	eventPublisher interfaces.EventPublisher,
	clock clockwork.Clock,
) interfaces.LedgerService {
	return &ledgerService{
		userRepo:           userRepo,
		balanceHistoryRepo: balanceHistoryRepo,
		eventPublisher:     eventPublisher,
		clock:              clock,
	}
}

// Debit removes amount from a user's balance
func (s *ledgerService) Debit(ctx context.Context, userID int64, amount int64, entry entities.LedgerEntry) (int64, error) {
	return s.apply(ctx, userID, -amount, amount, entry)
}

// Credit adds amount to a user's balance
func (s *ledgerService) Credit(ctx context.Context, userID int64, amount int64, entry entities.LedgerEntry) (int64, error) {
	return s.apply(ctx, userID, amount, amount, entry)
}

func (s *ledgerService) apply(ctx context.Context, userID int64, change int64, amount int64, entry entities.LedgerEntry) (int64, error) {
	if amount <= 0 {
		return 0, domain.NewError(domain.CodeInvalidAmount, "amount must be positive, got %d", amount)
	}

	// The row lock is held until the surrounding transaction ends
	user, err := s.userRepo.GetByIDForUpdate(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return 0, domain.NewError(domain.CodeNotFound, "user %d not found", userID)
	}

	if change < 0 && !user.HasSufficientBalance(amount) {
		return 0, domain.NewError(domain.CodeInsufficientFunds, "insufficient balance: have %d, need %d", user.Balance, amount).
			WithDetail("balance", user.Balance).
			WithDetail("required", amount)
	}

	newBalance := user.CalculateNewBalance(change)
	if err := s.userRepo.UpdateBalance(ctx, userID, newBalance); err != nil {
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}

	history := &entities.BalanceHistory{
		UserID:              userID,
		BalanceBefore:       user.Balance,
		BalanceAfter:        newBalance,
		ChangeAmount:        change,
		TransactionType:     entry.TransactionType,
		TransactionMetadata: entry.Metadata,
		RelatedID:           entry.RelatedID,
		RelatedType:         entry.RelatedType,
		CreatedAt:           s.clock.Now(),
	}
	if err := utils.RecordBalanceChange(ctx, s.balanceHistoryRepo, s.eventPublisher, history); err != nil {
		return 0, err
	}

	return newBalance, nil
}
